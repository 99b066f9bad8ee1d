package repository

import (
	"testing"

	"DBAdminDO/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTables_CoverProbeOrder(t *testing.T) {
	for _, engine := range models.ProbeOrder {
		tbl, ok := tableFor(engine)
		require.True(t, ok, "no catalog table for %s", engine)
		assert.NotEmpty(t, tbl.passwordColumn, engine)
		assert.NotEmpty(t, tbl.defaultUser, engine)
	}
}

func TestFindQuery_MapsCredentialColumns(t *testing.T) {
	pg, _ := tableFor(models.EnginePostgreSQL)
	q := pg.findQuery()
	assert.Contains(t, q, "COALESCE(d.postgres_user, '')")
	assert.Contains(t, q, "COALESCE(d.postgres_db, '')")
	assert.Contains(t, q, "FROM standalone_postgresqls d JOIN servers s")

	keydb, _ := tableFor(models.EngineKeyDB)
	q = keydb.findQuery()
	assert.Contains(t, q, "COALESCE(d.keydb_password, '')")
	assert.Contains(t, q, "'', COALESCE(d.keydb_password, ''), ''")
}

func TestRebind(t *testing.T) {
	mysqlTable, _ := tableFor(models.EngineMySQL)
	q := mysqlTable.updatePasswordQuery()

	assert.Equal(t, q, rebind(DriverMySQL, q))
	assert.Equal(t,
		"UPDATE standalone_mysqls SET mysql_root_password = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		rebind(DriverPgx, q))
}

func TestRepositories_InProbeOrder(t *testing.T) {
	c := NewCatalog(nil, DriverMySQL)
	repos := c.Repositories()
	require.Len(t, repos, len(models.ProbeOrder))
	for i, engine := range models.ProbeOrder {
		assert.Equal(t, engine, repos[i].Engine())
	}
}
