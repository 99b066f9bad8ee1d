package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"DBAdminDO/internal/authz"
	"DBAdminDO/internal/engines"
	"DBAdminDO/internal/engines/registry"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/apperrors"
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

type stubCredentials struct {
	saved map[string]string
	err   error
}

func (s *stubCredentials) UpdatePassword(_ context.Context, h *models.DatabaseHandle, password string) error {
	if s.err != nil {
		return s.err
	}
	s.saved[h.UUID] = password
	return nil
}

type fixture struct {
	gw          *Gateway
	fake        *transporttest.Fake
	credentials *stubCredentials
	restarter   *restart.Direct
}

func handle(uuid string, engine models.EngineType) *models.DatabaseHandle {
	return &models.DatabaseHandle{
		ID:     1,
		UUID:   uuid,
		Engine: engine,
		TeamID: team,
		Credentials: models.Credentials{
			AdminUser:     "admin",
			AdminPassword: "secret",
		},
		Server: &models.Server{ID: 1, Host: "10.0.0.1", Functional: true},
	}
}

func newFixture(handles ...*models.DatabaseHandle) *fixture {
	resolver := stubResolver{}
	for _, h := range handles {
		resolver[h.UUID] = h
	}
	fake := transporttest.New()
	credentials := &stubCredentials{saved: map[string]string{}}
	restarter := restart.NewDirect(fake, time.Second)

	gw := New(Deps{
		Resolver:    resolver,
		Authorizer:  authz.New(),
		Services:    registry.New(fake),
		Runner:      fake,
		Credentials: credentials,
		Restarter:   restarter,
	}, nil)
	return &fixture{gw: gw, fake: fake, credentials: credentials, restarter: restarter}
}

func owner() *models.Caller {
	return &models.Caller{Username: "ops", TeamID: team, Role: authz.RoleOwner}
}

func req(uuid string) Request {
	return Request{Caller: owner(), UUID: uuid}
}

func TestEveryOperation_NotFoundNeverRaises(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))
	ctx := context.Background()
	r := req("missing")

	ops := map[string]func() Result{
		"metrics":        func() Result { return f.gw.Metrics(ctx, r, "1h") },
		"logs":           func() Result { return f.gw.Logs(ctx, r, 50) },
		"tables":         func() Result { return f.gw.Tables(ctx, r) },
		"columns":        func() Result { return f.gw.Columns(ctx, r, "users") },
		"data":           func() Result { return f.gw.Data(ctx, r, DataQuery{Table: "users"}) },
		"users":          func() Result { return f.gw.Users(ctx, r) },
		"connections":    func() Result { return f.gw.Connections(ctx, r) },
		"extensions":     func() Result { return f.gw.Extensions(ctx, r) },
		"settings":       func() Result { return f.gw.Settings(ctx, r) },
		"collections":    func() Result { return f.gw.Collections(ctx, r) },
		"indexes":        func() Result { return f.gw.Indexes(ctx, r, "orders") },
		"replica_status": func() Result { return f.gw.ReplicaStatus(ctx, r) },
		"keys":           func() Result { return f.gw.Keys(ctx, r, "*", 10) },
		"key":            func() Result { return f.gw.Key(ctx, r, "k") },
		"memory":         func() Result { return f.gw.Memory(ctx, r) },
		"query_log":      func() Result { return f.gw.QueryLog(ctx, r, 10) },
		"merges":         func() Result { return f.gw.Merges(ctx, r) },
		"replication":    func() Result { return f.gw.Replication(ctx, r) },
		"query":          func() Result { return f.gw.ExecuteQuery(ctx, r, "SELECT 1") },
		"create_row":     func() Result { return f.gw.CreateRow(ctx, r, "users", map[string]any{"a": 1}) },
		"update_row":     func() Result { return f.gw.UpdateRow(ctx, r, "users", map[string]any{"id": 1}, map[string]any{"a": 1}) },
		"delete_row":     func() Result { return f.gw.DeleteRow(ctx, r, "users", map[string]any{"id": 1}) },
		"create_user":    func() Result { return f.gw.CreateUser(ctx, r, "bob", "pw") },
		"delete_user":    func() Result { return f.gw.DeleteUser(ctx, r, "bob") },
		"kill":           func() Result { return f.gw.KillConnection(ctx, r, "12") },
		"extension":      func() Result { return f.gw.SetExtension(ctx, r, "pgcrypto", true) },
		"maintenance":    func() Result { return f.gw.Maintenance(ctx, r, "vacuum", "") },
		"create_index":   func() Result { return f.gw.CreateIndex(ctx, r, "orders", engines.IndexSpec{}) },
		"set_key":        func() Result { return f.gw.SetKey(ctx, r, "k", "v", 0) },
		"delete_key":     func() Result { return f.gw.DeleteKey(ctx, r, "k") },
		"flush":          func() Result { return f.gw.Flush(ctx, r, "db") },
		"password":       func() Result { return f.gw.RegeneratePassword(ctx, r) },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			var res Result
			require.NotPanics(t, func() { res = op() })
			assert.Equal(t, OutcomeNotFound, res.Outcome)
			assert.Equal(t, "Database not found", res.Body["error"])
			if _, isRead := res.Body["available"]; isRead {
				assert.Equal(t, false, res.Body["available"])
			} else {
				assert.Equal(t, false, res.Body["success"])
			}
		})
	}
	assert.Empty(t, f.fake.Commands())
}

func TestOtherTeamIsNotFound(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))
	caller := &models.Caller{TeamID: team + 1, Role: authz.RoleOwner}

	res := f.gw.Tables(context.Background(), Request{Caller: caller, UUID: "pg"})
	assert.Equal(t, OutcomeNotFound, res.Outcome)
}

func TestExecuteQuery_BlocklistFailsFast(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))

	for _, q := range []string{
		"DROP DATABASE app",
		"  drop user bob",
		"SELECT 1; DROP TABLE users",
		"select 1;\ntruncate orders",
	} {
		res := f.gw.ExecuteQuery(context.Background(), req("pg"), q)
		assert.Equal(t, OutcomeInvalid, res.Outcome, q)
		assert.Equal(t, false, res.Body["success"])
	}
	assert.Empty(t, f.fake.Commands())
}

func TestExecuteQuery_QuotedAndCommentedStatementsBlocked(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL), handle("kv", models.EngineRedis))

	for uuid, queries := range map[string][]string{
		"kv": {`"FLUSHALL"`, "'CONFIG' SET dir /tmp", `flush"all"`},
		"pg": {"/* x */ DROP DATABASE app", "--\nDROP ROLE admin"},
	} {
		for _, q := range queries {
			res := f.gw.ExecuteQuery(context.Background(), req(uuid), q)
			assert.Equal(t, OutcomeInvalid, res.Outcome, q)
		}
	}
	assert.Empty(t, f.fake.Commands())
}

func TestAdmit(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))
	ctx := context.Background()

	outcome, message, ok := f.gw.Admit(ctx, req("missing"), "query")
	assert.False(t, ok)
	assert.Equal(t, OutcomeNotFound, outcome)
	assert.Equal(t, "Database not found", message)

	member := Request{Caller: &models.Caller{TeamID: team, Role: authz.RoleMember}, UUID: "pg"}
	outcome, _, ok = f.gw.Admit(ctx, member, "flush")
	assert.False(t, ok)
	assert.Equal(t, OutcomeForbidden, outcome)

	_, _, ok = f.gw.Admit(ctx, member, "create_row")
	assert.True(t, ok)
	_, _, ok = f.gw.Admit(ctx, member, "data")
	assert.True(t, ok)
	assert.Empty(t, f.fake.Commands())
}

func TestExecuteQuery_TooLong(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))

	res := f.gw.ExecuteQuery(context.Background(), req("pg"), "SELECT '"+strings.Repeat("x", 10001)+"'")
	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Contains(t, res.Body["error"], "maximum length")
}

func TestExecuteQuery_Succeeds(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))
	f.fake.On("--csv", "id,name\n1,alice\n2,bob\n")

	res := f.gw.ExecuteQuery(context.Background(), req("pg"), "SELECT id, name FROM users")
	require.Equal(t, OutcomeOK, res.Outcome, res.Body)
	assert.Equal(t, true, res.Body["success"])
	assert.Equal(t, []string{"id", "name"}, res.Body["columns"])
	assert.Equal(t, 2, res.Body["row_count"])
	assert.Contains(t, res.Body, "execution_time")
}

func TestExecuteQuery_ViewerForbidden(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))
	viewer := &models.Caller{TeamID: team, Role: authz.RoleViewer}

	res := f.gw.ExecuteQuery(context.Background(), Request{Caller: viewer, UUID: "pg"}, "SELECT 1")
	assert.Equal(t, OutcomeForbidden, res.Outcome)
	assert.Empty(t, f.fake.Commands())

	// Reads need team ownership only
	f.fake.On("pg_stat_activity", "[]")
	res = f.gw.Connections(context.Background(), Request{Caller: viewer, UUID: "pg"})
	assert.Equal(t, OutcomeOK, res.Outcome)
}

func TestDeleteUser_ProtectedRegardlessOfRole(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL), handle("my", models.EngineMySQL))

	res := f.gw.DeleteUser(context.Background(), req("pg"), "postgres")
	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Contains(t, res.Body["error"], "protected")

	res = f.gw.DeleteUser(context.Background(), req("my"), "mysql.sys")
	assert.Equal(t, OutcomeInvalid, res.Outcome)

	// The handle's own admin login
	res = f.gw.DeleteUser(context.Background(), req("pg"), "ADMIN")
	assert.Equal(t, OutcomeInvalid, res.Outcome)

	assert.Empty(t, f.fake.Commands())
}

func TestUsers_MarksAdminProtected(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))
	f.fake.On("pg_roles", `[{"name":"admin","super":true,"login":true},{"name":"app","login":true}]`)

	res := f.gw.Users(context.Background(), req("pg"))
	require.Equal(t, OutcomeOK, res.Outcome, res.Body)
	users := res.Body["users"].([]models.UserDescriptor)
	require.Len(t, users, 2)
	assert.True(t, users[0].Protected)
	assert.False(t, users[1].Protected)
}

func TestData_Pagination(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))
	f.fake.On("information_schema.columns",
		`[{"name":"id","type":"integer","nullable":false,"primary_key":true},{"name":"email","type":"text","nullable":true,"primary_key":false}]`)

	rows := make([]string, 0, 20)
	for id := 101; id <= 120; id++ {
		rows = append(rows, fmt.Sprintf(`{"id":%d,"email":"u%d@example.com"}`, id, id))
	}
	f.fake.On("json_build_object", `{"total":120,"rows":[`+strings.Join(rows, ",")+`]}`)

	res := f.gw.Data(context.Background(), req("pg"), DataQuery{Table: "users", Page: 3, PerPage: 50})
	require.Equal(t, OutcomeOK, res.Outcome, res.Body)

	assert.True(t, f.fake.Ran("LIMIT 50 OFFSET 100"))
	pagination := res.Body["pagination"].(models.Pagination)
	assert.Equal(t, 3, pagination.LastPage)
	assert.Equal(t, 3, pagination.CurrentPage)
	assert.EqualValues(t, 120, pagination.Total)

	got := res.Body["rows"].([]map[string]any)
	require.Len(t, got, 20)
	assert.EqualValues(t, "101", fmt.Sprint(got[0]["id"]))
	assert.EqualValues(t, "120", fmt.Sprint(got[19]["id"]))
}

func TestData_RejectsBadInput(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))
	ctx := context.Background()

	for _, q := range []DataQuery{
		{Table: "users; DROP TABLE x"},
		{Table: "1users"},
		{Table: "users", OrderBy: "id desc; --"},
		{Table: "users", Filters: map[string]string{"a b": "1"}},
		{Table: "users", Search: "' OR 1=1 --"},
	} {
		res := f.gw.Data(ctx, req("pg"), q)
		assert.Equal(t, OutcomeInvalid, res.Outcome, q)
	}
	assert.Empty(t, f.fake.Commands())
}

func TestServerNotFunctional(t *testing.T) {
	h := handle("pg", models.EnginePostgreSQL)
	h.Server.Functional = false
	f := newFixture(h)

	res := f.gw.Metrics(context.Background(), req("pg"), "")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "Server is not functional", res.Body["error"])

	res = f.gw.Flush(context.Background(), req("pg"), "db")
	assert.Equal(t, false, res.Body["success"])
	assert.Empty(t, f.fake.Commands())
}

func TestUnsupported(t *testing.T) {
	f := newFixture(handle("rd", models.EngineRedis), handle("pg", models.EnginePostgreSQL))

	res := f.gw.Tables(context.Background(), req("rd"))
	assert.Equal(t, OutcomeUnsupported, res.Outcome)
	assert.Equal(t, true, res.Body["unsupported"])
	assert.Equal(t, "Table browsing is not supported for redis databases", res.Body["error"])

	res = f.gw.Flush(context.Background(), req("pg"), "db")
	assert.Equal(t, OutcomeUnsupported, res.Outcome)
}

func TestUnsupportedEngine(t *testing.T) {
	f := newFixture(handle("x", models.EngineType("cassandra")))

	res := f.gw.Metrics(context.Background(), req("x"), "")
	assert.Equal(t, OutcomeUnsupported, res.Outcome)
	assert.Equal(t, "Unsupported database type: cassandra", res.Body["error"])
}

func TestTransportFailureBecomesEnvelope(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))
	f.fake.Fail("psql", errors.New("ssh: handshake failed"))

	res := f.gw.Tables(context.Background(), req("pg"))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "Failed to list tables: ssh: handshake failed", res.Body["error"])

	res = f.gw.CreateUser(context.Background(), req("pg"), "bob", "pw12345")
	assert.Equal(t, false, res.Body["success"])
	assert.True(t, strings.HasPrefix(res.Body["error"].(string), "Failed to create user: "))
}

func TestLogs(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))
	var raw strings.Builder
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&raw, "2024-01-01T10:00:%02d ERROR: line %d\n", i%60, i)
	}
	f.fake.On("docker logs", raw.String())

	res := f.gw.Logs(context.Background(), req("pg"), 5000)
	require.Equal(t, OutcomeOK, res.Outcome, res.Body)
	assert.True(t, f.fake.Ran("docker logs --timestamps --tail 1000 pg"))

	entries := res.Body["logs"].([]models.LogEntry)
	require.Len(t, entries, 100)
	assert.Equal(t, "line 149", entries[99].Message)
	assert.Equal(t, models.LevelError, entries[99].Level)
}

func TestRegeneratePassword(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))

	res := f.gw.RegeneratePassword(context.Background(), req("pg"))
	require.Equal(t, OutcomeOK, res.Outcome, res.Body)
	assert.Equal(t, "Password regenerated, restart requested", res.Body["message"])

	saved := f.credentials.saved["pg"]
	assert.Len(t, saved, 32)
	assert.NotEqual(t, "secret", saved)

	f.restarter.Wait()
	assert.True(t, f.fake.Ran("docker restart pg"))
}

func TestRegeneratePassword_StoreFailureSkipsRestart(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))
	f.credentials.err = errors.New("catalog down")

	res := f.gw.RegeneratePassword(context.Background(), req("pg"))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	f.restarter.Wait()
	assert.False(t, f.fake.Ran("docker restart"))
}

func TestKeys_InvalidPattern(t *testing.T) {
	f := newFixture(handle("rd", models.EngineRedis))

	res := f.gw.Keys(context.Background(), req("rd"), "*; rm -rf /", 10)
	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Empty(t, f.fake.Commands())
}

func TestFlush_InvalidScope(t *testing.T) {
	f := newFixture(handle("rd", models.EngineRedis))

	res := f.gw.Flush(context.Background(), req("rd"), "everything")
	assert.Equal(t, OutcomeInvalid, res.Outcome)
}

func TestMaintenance_Validation(t *testing.T) {
	f := newFixture(handle("pg", models.EnginePostgreSQL))

	res := f.gw.Maintenance(context.Background(), req("pg"), "reindex", "")
	assert.Equal(t, OutcomeInvalid, res.Outcome)

	res = f.gw.Maintenance(context.Background(), req("pg"), "VACUUM", "users")
	require.Equal(t, OutcomeOK, res.Outcome, res.Body)
	assert.Equal(t, "VACUUM completed on table users", res.Body["message"])
}
