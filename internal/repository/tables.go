package repository

import (
	"fmt"
	"strconv"
	"strings"

	"DBAdminDO/internal/models"
)

// table maps one engine's catalog table onto a DatabaseHandle. Engines store
// credentials under different column names; an empty column means the engine
// has no such credential and the default is used instead.
type table struct {
	engine         models.EngineType
	name           string
	userColumn     string
	defaultUser    string
	passwordColumn string
	databaseColumn string
}

var tables = []table{
	{engine: models.EnginePostgreSQL, name: "standalone_postgresqls", userColumn: "postgres_user", defaultUser: "postgres", passwordColumn: "postgres_password", databaseColumn: "postgres_db"},
	{engine: models.EngineMySQL, name: "standalone_mysqls", defaultUser: "root", passwordColumn: "mysql_root_password", databaseColumn: "mysql_database"},
	{engine: models.EngineMariaDB, name: "standalone_mariadbs", defaultUser: "root", passwordColumn: "mariadb_root_password", databaseColumn: "mariadb_database"},
	{engine: models.EngineMongoDB, name: "standalone_mongodbs", userColumn: "mongo_initdb_root_username", defaultUser: "root", passwordColumn: "mongo_initdb_root_password", databaseColumn: "mongo_initdb_database"},
	{engine: models.EngineRedis, name: "standalone_redis", userColumn: "redis_username", defaultUser: "default", passwordColumn: "redis_password"},
	{engine: models.EngineKeyDB, name: "standalone_keydbs", defaultUser: "default", passwordColumn: "keydb_password"},
	{engine: models.EngineDragonfly, name: "standalone_dragonflies", defaultUser: "default", passwordColumn: "dragonfly_password"},
	{engine: models.EngineClickHouse, name: "standalone_clickhouses", userColumn: "clickhouse_admin_user", defaultUser: "default", passwordColumn: "clickhouse_admin_password"},
}

func tableFor(engine models.EngineType) (table, bool) {
	for _, t := range tables {
		if t.engine == engine {
			return t, true
		}
	}
	return table{}, false
}

// orEmpty selects column from d, or an empty string when the engine has none
func orEmpty(column string) string {
	if column == "" {
		return "''"
	}
	return "COALESCE(d." + column + ", '')"
}

// findQuery selects one handle and its server by uuid within a team
func (t table) findQuery() string {
	return fmt.Sprintf(`SELECT d.id, d.uuid, d.name, d.team_id, %s, %s, %s,
		COALESCE(d.status, ''), COALESCE(d.health, ''),
		s.id, s.name, s.ip, s.port, s.ssh_user, COALESCE(s.private_key, ''), s.is_reachable, s.is_usable
		FROM %s d JOIN servers s ON s.id = d.server_id
		WHERE d.uuid = ? AND d.team_id = ?`,
		orEmpty(t.userColumn), orEmpty(t.passwordColumn), orEmpty(t.databaseColumn), t.name)
}

// updatePasswordQuery rewrites the admin credential of one record
func (t table) updatePasswordQuery() string {
	return fmt.Sprintf("UPDATE %s SET %s = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", t.name, t.passwordColumn)
}

// rebind rewrites ? placeholders to $n for drivers that need them.
// Catalog queries never contain a literal question mark.
func rebind(driver, query string) string {
	if driver != DriverPgx {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
