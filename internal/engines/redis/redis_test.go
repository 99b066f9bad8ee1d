package redis

import (
	"context"
	"testing"

	"DBAdminDO/internal/engines"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/apperrors"
	"DBAdminDO/internal/transport/transporttest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	server = &models.Server{Name: "cache-1", Host: "10.0.0.7", Functional: true}
	handle = &models.DatabaseHandle{
		UUID:        "rd-123",
		Engine:      models.EngineRedis,
		Credentials: models.Credentials{AdminPassword: "hunter2"},
	}
)

const infoOutput = `# Server
redis_version:7.2.4
uptime_in_seconds:7200

# Clients
connected_clients:3

# Memory
used_memory:1048576
used_memory_human:1.00M
mem_fragmentation_ratio:1.25

# Stats
instantaneous_ops_per_sec:15
keyspace_hits:90
keyspace_misses:10

# Keyspace
db0:keys=12,expires=0,avg_ttl=0
`

func TestParseInfo(t *testing.T) {
	info := ParseInfo(infoOutput)
	assert.Equal(t, "7.2.4", info["server"]["redis_version"])
	assert.Equal(t, "3", info["clients"]["connected_clients"])
	assert.Equal(t, "keys=12,expires=0,avg_ttl=0", info["keyspace"]["db0"])
}

func TestCollectMetrics(t *testing.T) {
	fake := transporttest.New().
		On("docker stats", `{"CPUPerc":"0.30%","MemUsage":"8MiB / 256MiB","MemPerc":"3.12%"}`).
		On("INFO", infoOutput)
	svc := New(fake, models.EngineRedis)

	sample, err := svc.CollectMetrics(context.Background(), server, handle)
	require.NoError(t, err)
	require.NotNil(t, sample.Connections)
	assert.Equal(t, int64(3), *sample.Connections)
	assert.Equal(t, 90.0, sample.Extras["hit_ratio"])
	assert.Equal(t, int64(15), sample.Extras["ops_per_sec"])
	assert.True(t, fake.Ran("REDISCLI_AUTH=hunter2 docker exec -e REDISCLI_AUTH rd-123 redis-cli INFO"))
}

func TestClientBinary(t *testing.T) {
	fake := transporttest.New()
	svc := New(fake, models.EngineKeyDB)

	_, err := svc.DeleteKey(context.Background(), server, handle, "session:1")
	require.NoError(t, err)
	assert.Contains(t, fake.Last(), "rd-123 keydb-cli DEL session:1")
}

func TestListKeys(t *testing.T) {
	fake := transporttest.New().
		On("--scan", "user:1\nuser:2\n").
		On("printf", "string\n-1\nhash\n300\n")
	svc := New(fake, models.EngineRedis)

	keys, err := svc.ListKeys(context.Background(), server, handle, "user:*", 10000)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, models.KeyInfo{Key: "user:1", Type: "string", TTL: -1}, keys[0])
	assert.Equal(t, models.KeyInfo{Key: "user:2", Type: "hash", TTL: 300}, keys[1])
	assert.True(t, fake.Ran("head -n 500"))
	assert.True(t, fake.Ran("REDISCLI_AUTH=hunter2 docker exec -i -e REDISCLI_AUTH rd-123 redis-cli"))
}

func TestGetKey(t *testing.T) {
	fake := transporttest.New().
		On("printf", "hash\n-1\n").
		On("HGETALL", "name\nann\nrole\nadmin\n")
	svc := New(fake, models.EngineRedis)

	info, err := svc.GetKey(context.Background(), server, handle, "user:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "ann", "role": "admin"}, info.Value)
}

func TestGetKey_Missing(t *testing.T) {
	fake := transporttest.New().On("printf", "none\n-2\n")
	svc := New(fake, models.EngineRedis)

	_, err := svc.GetKey(context.Background(), server, handle, "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSetKey(t *testing.T) {
	fake := transporttest.New().On("SET", "OK\n")
	svc := New(fake, models.EngineRedis)

	require.NoError(t, svc.SetKey(context.Background(), server, handle, "greeting", "hello world", 60))
	assert.Contains(t, fake.Last(), "SET greeting 'hello world' EX 60")
}

func TestFlush(t *testing.T) {
	fake := transporttest.New().On("FLUSH", "OK\n")
	svc := New(fake, models.EngineRedis)

	require.NoError(t, svc.Flush(context.Background(), server, handle, engines.FlushDB))
	assert.Contains(t, fake.Last(), "FLUSHDB")
	require.NoError(t, svc.Flush(context.Background(), server, handle, engines.FlushAll))
	assert.Contains(t, fake.Last(), "FLUSHALL")
}

func TestErrorReply(t *testing.T) {
	fake := transporttest.New().On("SET", "WRONGTYPE Operation against a key holding the wrong kind of value\n")
	svc := New(fake, models.EngineRedis)

	err := svc.SetKey(context.Background(), server, handle, "k", "v", 0)
	assert.ErrorContains(t, err, "WRONGTYPE")
}

func TestExecuteQuery(t *testing.T) {
	fake := transporttest.New().On("GET", "bar\n")
	svc := New(fake, models.EngineRedis)

	result, err := svc.ExecuteQuery(context.Background(), server, handle, `GET "foo"`)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"bar"}}, result.Rows)

	_, err = svc.ExecuteQuery(context.Background(), server, handle, `GET "unterminated`)
	assert.True(t, apperrors.IsValidation(err))
}

func TestConnections(t *testing.T) {
	fake := transporttest.New().
		On("LIST", "id=5 addr=10.0.0.9:5050 fd=8 name= age=120 idle=3 flags=N db=0 cmd=get user=default\n").
		On("KILL", "1\n")
	svc := New(fake, models.EngineRedis)

	conns, err := svc.GetActiveConnections(context.Background(), server, handle)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "5", conns[0].ID)
	assert.Equal(t, "10.0.0.9:5050", conns[0].Client)

	require.NoError(t, svc.KillConnection(context.Background(), server, handle, "5"))
	assert.True(t, apperrors.IsValidation(svc.KillConnection(context.Background(), server, handle, "5 SKIPME")))
}

func TestDeleteUser_Protected(t *testing.T) {
	fake := transporttest.New()
	svc := New(fake, models.EngineDragonfly)

	assert.ErrorIs(t, svc.DeleteUser(context.Background(), server, handle, "default"), apperrors.ErrProtectedUser)
	assert.Empty(t, fake.Commands())
}

func TestQuoteArg(t *testing.T) {
	assert.Equal(t, `"a \"b\" \\ \x0a"`, quoteArg("a \"b\" \\ \n"))
}
