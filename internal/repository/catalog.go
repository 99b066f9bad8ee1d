// Package repository reads managed database records from the control-plane
// catalog database. The catalog is MySQL or PostgreSQL, reached through
// database/sql with go-sql-driver/mysql or the pgx stdlib driver.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/apperrors"
	"DBAdminDO/internal/pkg/config"
	"DBAdminDO/internal/pkg/logger"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Catalog drivers
const (
	DriverMySQL = "mysql"
	DriverPgx   = "pgx"
)

// Catalog is the control-plane database holding every engine's records
type Catalog struct {
	db     *sql.DB
	driver string
}

// Open connects to the catalog described by cfg
func Open(ctx context.Context, cfg *config.CatalogConfig) (*Catalog, error) {
	dsn := cfg.DSN
	if cfg.Driver == DriverMySQL {
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid catalog dsn: %w", err)
		}
		if parsed.Timeout == 0 {
			parsed.Timeout = 10 * time.Second
		}
		dsn = parsed.FormatDSN()
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping catalog: %w", err)
	}

	logger.Info("Catalog connected", logger.String("driver", cfg.Driver))
	return &Catalog{db: db, driver: cfg.Driver}, nil
}

// NewCatalog wraps an existing connection
func NewCatalog(db *sql.DB, driver string) *Catalog {
	return &Catalog{db: db, driver: driver}
}

// Close closes the catalog connection
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Repositories returns one team-scoped repository per engine, in probe order
func (c *Catalog) Repositories() []*EngineRepository {
	repos := make([]*EngineRepository, 0, len(tables))
	for _, engine := range models.ProbeOrder {
		if t, ok := tableFor(engine); ok {
			repos = append(repos, &EngineRepository{catalog: c, table: t})
		}
	}
	return repos
}

// UpdatePassword stores a new admin password on the handle's record
func (c *Catalog) UpdatePassword(ctx context.Context, handle *models.DatabaseHandle, password string) error {
	t, ok := tableFor(handle.Engine)
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrUnsupported, handle.Engine)
	}

	res, err := c.db.ExecContext(ctx, rebind(c.driver, t.updatePasswordQuery()), password, handle.ID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// EngineRepository finds one engine's records
type EngineRepository struct {
	catalog *Catalog
	table   table
}

// Engine returns the engine whose records this repository holds
func (r *EngineRepository) Engine() models.EngineType {
	return r.table.engine
}

// FindByUUID returns the record with uuid owned by teamID, or (nil, nil)
func (r *EngineRepository) FindByUUID(ctx context.Context, uuid string, teamID int64) (*models.DatabaseHandle, error) {
	query := rebind(r.catalog.driver, r.table.findQuery())

	h := &models.DatabaseHandle{Engine: r.table.engine, Server: &models.Server{}}
	err := r.catalog.db.QueryRowContext(ctx, query, uuid, teamID).Scan(
		&h.ID, &h.UUID, &h.Name, &h.TeamID,
		&h.Credentials.AdminUser, &h.Credentials.AdminPassword, &h.Credentials.Database,
		&h.Status.State, &h.Status.Health,
		&h.Server.ID, &h.Server.Name, &h.Server.Host, &h.Server.Port, &h.Server.User,
		&h.Server.PrivateKey, &h.Server.Reachable, &h.Server.Functional,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.table.name, err)
	}

	if h.Credentials.AdminUser == "" {
		h.Credentials.AdminUser = r.table.defaultUser
	}
	return h, nil
}
