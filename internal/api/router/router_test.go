package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"DBAdminDO/internal/authz"
	"DBAdminDO/internal/engines/registry"
	"DBAdminDO/internal/gateway"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/apperrors"
	"DBAdminDO/internal/pkg/config"
	"DBAdminDO/internal/restart"
	"DBAdminDO/internal/transport/transporttest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const team = int64(7)

type stubResolver map[string]*models.DatabaseHandle

func (s stubResolver) FindByUUID(_ context.Context, uuid string, teamID int64) (*models.DatabaseHandle, error) {
	h, ok := s[uuid]
	if !ok || h.TeamID != teamID {
		return nil, apperrors.ErrNotFound
	}
	copied := *h
	return &copied, nil
}

type noCredentials struct{}

func (noCredentials) UpdatePassword(context.Context, *models.DatabaseHandle, string) error {
	return nil
}

func testHandle(uuid string, engine models.EngineType) *models.DatabaseHandle {
	return &models.DatabaseHandle{
		ID:          1,
		UUID:        uuid,
		Engine:      engine,
		TeamID:      team,
		Credentials: models.Credentials{AdminUser: "admin", AdminPassword: "secret"},
		Server:      &models.Server{ID: 1, Host: "10.0.0.1", Functional: true},
	}
}

func newTestRouter(t *testing.T, role string, fake *transporttest.Fake) *Router {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.API.Auth.Enabled = false
	cfg.API.Auth.Static.TeamID = team
	cfg.API.Auth.Static.Role = role

	gw := gateway.New(gateway.Deps{
		Resolver: stubResolver{
			"pg": testHandle("pg", models.EnginePostgreSQL),
			"rd": testHandle("rd", models.EngineRedis),
		},
		Authorizer:  authz.New(),
		Services:    registry.New(fake),
		Runner:      fake,
		Credentials: noCredentials{},
		Restarter:   restart.NewDirect(fake, time.Second),
	}, &cfg.Gateway)

	return New(cfg, gw, nil).Initialize()
}

func do(t *testing.T, r *Router, method, path, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, authz.RoleOwner, transporttest.New())

	code, body := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body, "uptime_seconds")
}

func TestStatusMapping(t *testing.T) {
	fake := transporttest.New()
	fake.On("--csv", "id,name\n1,alice\n")
	r := newTestRouter(t, authz.RoleOwner, fake)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		key    string
		want   any
	}{
		{"unknown database", http.MethodGet, "/api/databases/nope/tables", "", http.StatusNotFound, "error", "Database not found"},
		{"query ok", http.MethodPost, "/api/databases/pg/query", `{"query":"SELECT id, name FROM users"}`, http.StatusOK, "success", true},
		{"query missing", http.MethodPost, "/api/databases/pg/query", `{}`, http.StatusUnprocessableEntity, "error", "query is required"},
		{"blocked query", http.MethodPost, "/api/databases/pg/query", `{"query":"DROP DATABASE app"}`, http.StatusUnprocessableEntity, "success", false},
		{"unsupported read", http.MethodGet, "/api/databases/rd/tables", "", http.StatusOK, "unsupported", true},
		{"bad order dir", http.MethodGet, "/api/databases/pg/tables/users/data?order_dir=sideways", "", http.StatusUnprocessableEntity, "error", "order_dir must be asc or desc"},
		{"bad flush scope", http.MethodPost, "/api/databases/rd/flush", `{"scope":"everything"}`, http.StatusUnprocessableEntity, "success", false},
		{"protected user", http.MethodDelete, "/api/databases/pg/users/postgres", "", http.StatusUnprocessableEntity, "success", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code, body)
			assert.Equal(t, tt.want, body[tt.key])
		})
	}
}

func TestFailedReadStays200FailedWriteIs500(t *testing.T) {
	fake := transporttest.New()
	fake.Fail("psql", errors.New("ssh: handshake failed"))
	r := newTestRouter(t, authz.RoleOwner, fake)

	code, body := do(t, r, http.MethodGet, "/api/databases/pg/tables", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["available"])
	assert.Equal(t, "Failed to list tables: ssh: handshake failed", body["error"])

	code, body = do(t, r, http.MethodPost, "/api/databases/pg/users", `{"username":"bob","password":"pw12345"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, false, body["success"])
}

func TestViewerIsForbiddenToWrite(t *testing.T) {
	fake := transporttest.New()
	fake.On("pg_stat_activity", "[]")
	r := newTestRouter(t, authz.RoleViewer, fake)

	code, body := do(t, r, http.MethodPost, "/api/databases/pg/query", `{"query":"SELECT 1"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "This action is unauthorized.", body["error"])

	code, body = do(t, r, http.MethodGet, "/api/databases/pg/connections", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["available"])
}

func TestMalformedInputReportedAfterResolveAndAuthorize(t *testing.T) {
	owner := newTestRouter(t, authz.RoleOwner, transporttest.New())

	code, body := do(t, owner, http.MethodPost, "/api/databases/nope/query", `{}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Database not found", body["error"])
	assert.Equal(t, false, body["success"])

	code, body = do(t, owner, http.MethodPost, "/api/databases/nope/flush", `{"scope":"everything"}`)
	assert.Equal(t, http.StatusNotFound, code, body)

	code, body = do(t, owner, http.MethodGet, "/api/databases/nope/tables/users/data?order_dir=sideways", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["available"])

	viewer := newTestRouter(t, authz.RoleViewer, transporttest.New())
	code, body = do(t, viewer, http.MethodPost, "/api/databases/pg/query", `{}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "This action is unauthorized.", body["error"])

	code, _ = do(t, owner, http.MethodPost, "/api/databases/pg/query", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestJWTRequiredWhenAuthEnabled(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.API.Auth.JWTSecret = "s3cret"
	fake := transporttest.New()
	gw := gateway.New(gateway.Deps{
		Resolver:    stubResolver{},
		Authorizer:  authz.New(),
		Services:    registry.New(fake),
		Runner:      fake,
		Credentials: noCredentials{},
		Restarter:   restart.NewDirect(fake, time.Second),
	}, &cfg.Gateway)
	r := New(cfg, gw, nil).Initialize()

	code, _ := do(t, r, http.MethodGet, "/api/databases/pg/tables", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
}
