// Package resolver maps a database uuid to the handle that owns it within a team.
//
// Each engine keeps its records in its own catalog table, so a lookup probes
// one repository per engine type in models.ProbeOrder and the first record
// found wins. uuids are expected to be unique across tables; the fixed order
// makes the outcome deterministic when they are not.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/apperrors"
	"DBAdminDO/internal/pkg/logger"
)

// TeamScopedRepository finds one engine's records filtered to a team.
// A missing record is reported as (nil, nil) or apperrors.ErrNotFound.
type TeamScopedRepository interface {
	Engine() models.EngineType
	FindByUUID(ctx context.Context, uuid string, teamID int64) (*models.DatabaseHandle, error)
}

// Resolver probes repositories in a fixed engine order
type Resolver struct {
	repos map[models.EngineType]TeamScopedRepository
	order []models.EngineType
}

// New creates a resolver over repos, probed in models.ProbeOrder.
// Engines without a repository are skipped.
func New(repos ...TeamScopedRepository) *Resolver {
	r := &Resolver{
		repos: make(map[models.EngineType]TeamScopedRepository, len(repos)),
		order: models.ProbeOrder,
	}
	for _, repo := range repos {
		r.repos[repo.Engine()] = repo
	}
	return r
}

// FindByUUID returns the handle owning uuid in the caller's team, or
// apperrors.ErrNotFound when no repository has it
func (r *Resolver) FindByUUID(ctx context.Context, uuid string, teamID int64) (*models.DatabaseHandle, error) {
	if uuid == "" {
		return nil, apperrors.ErrNotFound
	}

	for _, engine := range r.order {
		repo, ok := r.repos[engine]
		if !ok {
			continue
		}

		handle, err := repo.FindByUUID(ctx, uuid, teamID)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up %s database: %w", engine, err)
		}
		if handle == nil {
			continue
		}

		// The table a record lives in decides its engine
		handle.Engine = engine
		logger.Debug("Resolved database",
			logger.Database(uuid, string(engine)),
			logger.Int64("team_id", teamID))
		return handle, nil
	}

	return nil, apperrors.ErrNotFound
}
