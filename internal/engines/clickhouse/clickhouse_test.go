package clickhouse

import (
	"context"
	"encoding/json"
	"testing"

	"DBAdminDO/internal/engines"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/apperrors"
	"DBAdminDO/internal/transport/transporttest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	server = &models.Server{Name: "olap-1", Host: "10.0.0.9", Functional: true}
	handle = &models.DatabaseHandle{
		UUID:        "ch-42",
		Engine:      models.EngineClickHouse,
		Credentials: models.Credentials{AdminUser: "default", AdminPassword: "pw", Database: "events"},
	}
)

const columnsOutput = `{
	"meta": [{"name": "name", "type": "String"}],
	"data": [
		{"name": "id", "type": "UInt64", "default_expression": "", "is_in_primary_key": 1},
		{"name": "label", "type": "Nullable(String)", "default_expression": "", "is_in_primary_key": 0}
	],
	"rows": 2
}`

func TestExecCommand(t *testing.T) {
	fake := transporttest.New()
	svc := New(fake)

	_, err := svc.exec(context.Background(), server, handle, "SELECT 1", "JSON")
	require.NoError(t, err)
	assert.Contains(t, fake.Last(),
		"CLICKHOUSE_PASSWORD=pw CLICKHOUSE_USER=default docker exec -e CLICKHOUSE_PASSWORD -e CLICKHOUSE_USER ch-42 clickhouse-client --database events --format JSON")
}

func TestCollectMetrics(t *testing.T) {
	fake := transporttest.New().
		On("docker stats", `{"CPUPerc":"12.00%","MemUsage":"1GiB / 4GiB","MemPerc":"25.00%"}`).
		On("system.metrics", `{"meta":[],"data":[{"tcp":3,"http":2,"running_queries":1,"memory_tracking":1024,"active_merges":0,"uptime":60,"version":"24.3.1"}],"rows":1}`)
	svc := New(fake)

	sample, err := svc.CollectMetrics(context.Background(), server, handle)
	require.NoError(t, err)
	require.NotNil(t, sample.Connections)
	assert.Equal(t, int64(5), *sample.Connections)
	assert.Equal(t, "24.3.1", sample.Extras["version"])
	require.NotNil(t, sample.MemoryLimitBytes)
	assert.Equal(t, int64(4*1024*1024*1024), *sample.MemoryLimitBytes)
}

func TestGetColumns(t *testing.T) {
	fake := transporttest.New().On("system.columns", columnsOutput)
	svc := New(fake)

	columns, err := svc.GetColumns(context.Background(), server, handle, "hits")
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.True(t, columns[0].PrimaryKey)
	assert.True(t, columns[1].Nullable)
	assert.Nil(t, columns[1].Default)
}

func TestGetData(t *testing.T) {
	fake := transporttest.New().
		On("count()", `{"meta":[],"data":[{"total":120}],"rows":1}`).
		On("SELECT * FROM", `{"meta":[],"data":[{"id":101,"label":"x"}],"rows":1}`).
		On("system.columns", columnsOutput)
	svc := New(fake)

	page, err := svc.GetData(context.Background(), server, handle, models.DataRequest{
		Table: "hits", Page: 3, PerPage: 50, Search: "x", OrderDir: "desc",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(120), page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.LastPage)
	assert.Equal(t, json.Number("101"), page.Rows[0]["id"])
	assert.Contains(t, fake.Last(), "LIMIT 50 OFFSET 100")
	assert.Contains(t, fake.Last(), "positionCaseInsensitive(toString(`label`)")
	assert.NotContains(t, fake.Last(), "toString(`id`)")
}

func TestExecuteQuery(t *testing.T) {
	fake := transporttest.New().On("JSONCompact", `{"meta":[{"name":"n","type":"UInt8"},{"name":"s","type":"String"}],"data":[[1,"a"],[2,"b"]],"rows":2}`)
	svc := New(fake)

	result, err := svc.ExecuteQuery(context.Background(), server, handle, "SELECT number AS n, 'a' AS s FROM numbers(2)")
	require.NoError(t, err)
	assert.Equal(t, []string{"n", "s"}, result.Columns)
	assert.Equal(t, 2, result.RowCount)
}

func TestQueryLogLimit(t *testing.T) {
	fake := transporttest.New()
	svc := New(fake)

	_, err := svc.QueryLog(context.Background(), server, handle, 5000)
	require.NoError(t, err)
	assert.Contains(t, fake.Last(), "LIMIT 100")
}

func TestKillConnection(t *testing.T) {
	fake := transporttest.New()
	svc := New(fake)

	require.NoError(t, svc.KillConnection(context.Background(), server, handle, "8f2c1e7a-1234-4c1d-9d5e-abcdef012345"))
	assert.True(t, apperrors.IsValidation(svc.KillConnection(context.Background(), server, handle, "x' OR 1=1")))
}

func TestDeleteUser_Protected(t *testing.T) {
	fake := transporttest.New()
	svc := New(fake)

	assert.ErrorIs(t, svc.DeleteUser(context.Background(), server, handle, "default"), apperrors.ErrProtectedUser)
	assert.Empty(t, fake.Commands())
}

func TestNoRowEditing(t *testing.T) {
	var svc engines.Service = New(transporttest.New())
	_, ok := svc.(engines.RowEditor)
	assert.False(t, ok)
	_, ok = svc.(engines.AnalyticsInsights)
	assert.True(t, ok)
}
