package resolver

import (
	"context"
	"errors"
	"testing"

	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	engine  models.EngineType
	records map[string]int64 // uuid -> team
	err     error
	calls   *[]models.EngineType
}

func (s stubRepo) Engine() models.EngineType { return s.engine }

func (s stubRepo) FindByUUID(ctx context.Context, uuid string, teamID int64) (*models.DatabaseHandle, error) {
	if s.calls != nil {
		*s.calls = append(*s.calls, s.engine)
	}
	if s.err != nil {
		return nil, s.err
	}
	team, ok := s.records[uuid]
	if !ok || team != teamID {
		return nil, nil
	}
	return &models.DatabaseHandle{UUID: uuid, TeamID: team}, nil
}

func TestFindByUUID_FirstMatchInProbeOrderWins(t *testing.T) {
	var calls []models.EngineType
	r := New(
		stubRepo{engine: models.EngineRedis, records: map[string]int64{"abc": 1}, calls: &calls},
		stubRepo{engine: models.EngineMySQL, records: map[string]int64{"abc": 1}, calls: &calls},
		stubRepo{engine: models.EnginePostgreSQL, calls: &calls},
	)

	handle, err := r.FindByUUID(context.Background(), "abc", 1)
	require.NoError(t, err)
	assert.Equal(t, models.EngineMySQL, handle.Engine)
	assert.Equal(t, []models.EngineType{models.EnginePostgreSQL, models.EngineMySQL}, calls)
}

func TestFindByUUID_ScopedToTeam(t *testing.T) {
	r := New(stubRepo{engine: models.EngineMongoDB, records: map[string]int64{"abc": 1}})

	_, err := r.FindByUUID(context.Background(), "abc", 2)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFindByUUID_NotFound(t *testing.T) {
	r := New(
		stubRepo{engine: models.EnginePostgreSQL},
		stubRepo{engine: models.EngineClickHouse, err: apperrors.ErrNotFound},
	)

	handle, err := r.FindByUUID(context.Background(), "missing", 1)
	assert.Nil(t, handle)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = r.FindByUUID(context.Background(), "", 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFindByUUID_RepositoryFailure(t *testing.T) {
	r := New(stubRepo{engine: models.EnginePostgreSQL, err: errors.New("connection refused")})

	_, err := r.FindByUUID(context.Background(), "abc", 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "connection refused")
}
