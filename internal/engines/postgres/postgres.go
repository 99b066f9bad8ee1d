// Package postgres administers PostgreSQL containers through psql.
package postgres

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"DBAdminDO/internal/engines"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/logger"
	"DBAdminDO/internal/transport"
	"DBAdminDO/internal/validation"

	"github.com/jackc/pgx/v5"
)

const (
	defaultUser   = "postgres"
	defaultSchema = "public"
)

// protectedUsers can never be dropped
var protectedUsers = []string{"postgres"}

// settingNames are the server settings reported in the settings snapshot
var settingNames = []string{
	"max_connections", "shared_buffers", "effective_cache_size", "work_mem",
	"maintenance_work_mem", "wal_level", "max_wal_size", "checkpoint_timeout",
	"autovacuum", "log_min_duration_statement", "server_version", "timezone",
	"listen_addresses", "shared_preload_libraries",
}

var (
	_ engines.Service           = (*Service)(nil)
	_ engines.TableBrowser      = (*Service)(nil)
	_ engines.RowEditor         = (*Service)(nil)
	_ engines.QueryExecutor     = (*Service)(nil)
	_ engines.UserManager       = (*Service)(nil)
	_ engines.ConnectionManager = (*Service)(nil)
	_ engines.SettingsReader    = (*Service)(nil)
	_ engines.ExtensionManager  = (*Service)(nil)
	_ engines.Maintainer        = (*Service)(nil)
)

// Service implements the PostgreSQL engine family
type Service struct {
	runner transport.Transport
}

// New creates a PostgreSQL service running commands through runner
func New(runner transport.Transport) *Service {
	return &Service{runner: runner}
}

// Family implements engines.Service
func (s *Service) Family() string {
	return string(models.EnginePostgreSQL)
}

// ProtectedUsers implements engines.UserManager
func (s *Service) ProtectedUsers() []string {
	return protectedUsers
}

// psql runs one SQL statement in the container and returns unaligned tuples
func (s *Service) psql(ctx context.Context, server *models.Server, db *models.DatabaseHandle, sql string, flags ...string) (string, error) {
	user := db.Credentials.AdminUser
	if user == "" {
		user = defaultUser
	}
	database := db.Credentials.Database
	if database == "" {
		database = user
	}

	argv := []string{"psql", "-X", "-q", "-v", "ON_ERROR_STOP=1", "-U", user, "-d", database}
	if len(flags) == 0 {
		flags = []string{"-t", "-A"}
	}
	argv = append(argv, flags...)
	argv = append(argv, "-c", sql)

	env := map[string]string{}
	if db.Credentials.AdminPassword != "" {
		env["PGPASSWORD"] = db.Credentials.AdminPassword
	}
	return s.runner.Run(ctx, server, []string{engines.Exec(db.ContainerName(), env, argv...)})
}

// queryJSON wraps sql so psql prints its rows as one JSON array and decodes it into v
func (s *Service) queryJSON(ctx context.Context, server *models.Server, db *models.DatabaseHandle, sql string, v any) error {
	wrapped := fmt.Sprintf("SELECT COALESCE(json_agg(t), '[]'::json) FROM (%s) t", sql)
	out, err := s.psql(ctx, server, db, wrapped)
	if err != nil {
		return err
	}
	return engines.DecodeJSON(out, v)
}

// scalar runs sql and returns its single trimmed value
func (s *Service) scalar(ctx context.Context, server *models.Server, db *models.DatabaseHandle, sql string) (string, error) {
	out, err := s.psql(ctx, server, db, sql)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// splitTable splits an optionally schema-qualified name
func splitTable(table string) (schema, name string) {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return schema, name
	}
	return defaultSchema, table
}

// ident quotes a possibly schema-qualified table name
func ident(table string) string {
	schema, name := splitTable(table)
	return pgx.Identifier{schema, name}.Sanitize()
}

func column(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func literal(v any) string {
	return engines.Literal(v, engines.QuoteString)
}

// CollectMetrics implements engines.Service
func (s *Service) CollectMetrics(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (*models.MetricsSample, error) {
	sample, statsErr := engines.ContainerSample(ctx, s.runner, server, db.ContainerName())

	var stats []struct {
		Connections    any    `json:"connections"`
		MaxConnections any    `json:"max_connections"`
		DatabaseSize   any    `json:"database_size"`
		CacheHitRatio  any    `json:"cache_hit_ratio"`
		Transactions   any    `json:"transactions"`
		Version        string `json:"version"`
	}
	err := s.queryJSON(ctx, server, db, `SELECT
		(SELECT count(*) FROM pg_stat_activity) AS connections,
		current_setting('max_connections')::int AS max_connections,
		pg_database_size(current_database()) AS database_size,
		(SELECT round(100.0 * sum(blks_hit) / nullif(sum(blks_hit) + sum(blks_read), 0), 2) FROM pg_stat_database) AS cache_hit_ratio,
		(SELECT sum(xact_commit + xact_rollback) FROM pg_stat_database) AS transactions,
		current_setting('server_version') AS version`, &stats)
	if err != nil {
		if statsErr != nil {
			return nil, err
		}
		logger.Warn("Postgres statistics unavailable",
			logger.Database(db.UUID, s.Family()),
			logger.Err(err))
		return sample, nil
	}

	if len(stats) > 0 {
		st := stats[0]
		sample.Connections = engines.Int64(st.Connections)
		sample.SetExtra("max_connections", st.MaxConnections)
		sample.SetExtra("database_size_bytes", st.DatabaseSize)
		sample.SetExtra("cache_hit_ratio", st.CacheHitRatio)
		sample.SetExtra("transactions", st.Transactions)
		if st.Version != "" {
			sample.SetExtra("version", st.Version)
		}
	}
	return sample, nil
}

// GetTables implements engines.TableBrowser
func (s *Service) GetTables(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.TableDescriptor, error) {
	var rows []struct {
		Schema string `json:"schema"`
		Name   string `json:"name"`
		Type   string `json:"type"`
		Rows   any    `json:"rows"`
	}
	err := s.queryJSON(ctx, server, db, `SELECT t.table_schema AS schema, t.table_name AS name,
		lower(replace(t.table_type, 'BASE ', '')) AS type,
		(SELECT c.reltuples::bigint FROM pg_class c JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE n.nspname = t.table_schema AND c.relname = t.table_name) AS rows
		FROM information_schema.tables t
		WHERE t.table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY t.table_schema, t.table_name`, &rows)
	if err != nil {
		return nil, err
	}

	tables := make([]models.TableDescriptor, 0, len(rows))
	for _, r := range rows {
		name := r.Name
		if r.Schema != defaultSchema {
			name = r.Schema + "." + r.Name
		}
		tables = append(tables, models.TableDescriptor{
			Name:   name,
			Type:   r.Type,
			Schema: r.Schema,
			Rows:   engines.Int64(r.Rows),
		})
	}
	return tables, nil
}

// GetColumns implements engines.TableBrowser
func (s *Service) GetColumns(ctx context.Context, server *models.Server, db *models.DatabaseHandle, table string) ([]models.ColumnDescriptor, error) {
	schema, name := splitTable(table)

	var columns []models.ColumnDescriptor
	err := s.queryJSON(ctx, server, db, fmt.Sprintf(`SELECT c.column_name AS name, c.data_type AS type,
		c.is_nullable = 'YES' AS nullable, c.column_default AS "default",
		EXISTS (SELECT 1 FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage k
				ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema AND k.table_name = tc.table_name
			WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = c.table_schema
				AND tc.table_name = c.table_name AND k.column_name = c.column_name) AS primary_key
		FROM information_schema.columns c
		WHERE c.table_schema = %s AND c.table_name = %s
		ORDER BY c.ordinal_position`, engines.QuoteString(schema), engines.QuoteString(name)), &columns)
	if err != nil {
		return nil, err
	}
	return columns, nil
}

func isText(t string) bool {
	return strings.Contains(t, "char") || strings.Contains(t, "text") || t == "uuid" || t == "citext"
}

// whereClause builds the search and filter conditions for a data request
func whereClause(columns []models.ColumnDescriptor, req models.DataRequest) string {
	var conds []string

	if req.Search != "" {
		pattern := engines.QuoteString(engines.LikePattern(req.Search))
		var ors []string
		for _, c := range engines.TextColumns(columns, isText) {
			ors = append(ors, fmt.Sprintf("%s::text ILIKE %s", column(c), pattern))
		}
		if len(ors) > 0 {
			conds = append(conds, "("+strings.Join(ors, " OR ")+")")
		}
	}
	for _, name := range engines.SortedKeys(req.Filters) {
		conds = append(conds, fmt.Sprintf("%s::text = %s", column(name), engines.QuoteString(req.Filters[name])))
	}

	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// GetData implements engines.TableBrowser
func (s *Service) GetData(ctx context.Context, server *models.Server, db *models.DatabaseHandle, req models.DataRequest) (*models.DataPage, error) {
	columns, err := s.GetColumns(ctx, server, db, req.Table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist", req.Table)
	}
	if err := engines.CheckFilters(columns, req.Filters); err != nil {
		return nil, err
	}

	where := whereClause(columns, req)
	order := ""
	if by := engines.ResolveOrderBy(columns, req.OrderBy); by != "" {
		order = fmt.Sprintf(" ORDER BY %s %s", column(by), strings.ToUpper(validation.NormalizeOrderDir(req.OrderDir)))
	}

	sql := fmt.Sprintf(`SELECT json_build_object(
		'total', (SELECT count(*) FROM %[1]s%[2]s),
		'rows', COALESCE((SELECT json_agg(t) FROM (SELECT * FROM %[1]s%[2]s%[3]s LIMIT %[4]d OFFSET %[5]d) t), '[]'::json))`,
		ident(req.Table), where, order, req.PerPage, req.Offset())
	out, err := s.psql(ctx, server, db, sql)
	if err != nil {
		return nil, err
	}

	var result struct {
		Total any              `json:"total"`
		Rows  []map[string]any `json:"rows"`
	}
	if err := engines.DecodeJSON(out, &result); err != nil {
		return nil, err
	}

	var total int64
	if t := engines.Int64(result.Total); t != nil {
		total = *t
	}
	if result.Rows == nil {
		result.Rows = []map[string]any{}
	}
	return &models.DataPage{
		Columns:    columns,
		Rows:       result.Rows,
		Pagination: models.NewPagination(total, req.Page, req.PerPage),
	}, nil
}

// keyCondition renders primaryKey as an exact WHERE clause
func keyCondition(primaryKey map[string]any) string {
	conds := make([]string, 0, len(primaryKey))
	for _, name := range engines.SortedKeys(primaryKey) {
		if primaryKey[name] == nil {
			conds = append(conds, column(name)+" IS NULL")
			continue
		}
		conds = append(conds, fmt.Sprintf("%s = %s", column(name), literal(primaryKey[name])))
	}
	return strings.Join(conds, " AND ")
}

// CreateRow implements engines.RowEditor
func (s *Service) CreateRow(ctx context.Context, server *models.Server, db *models.DatabaseHandle, table string, data map[string]any) error {
	columns, err := s.GetColumns(ctx, server, db, table)
	if err != nil {
		return err
	}
	if err := engines.CheckDataColumns(columns, data); err != nil {
		return err
	}

	names := engines.SortedKeys(data)
	cols := make([]string, len(names))
	vals := make([]string, len(names))
	for i, name := range names {
		cols[i] = column(name)
		vals[i] = literal(data[name])
	}
	_, err = s.psql(ctx, server, db, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ident(table), strings.Join(cols, ", "), strings.Join(vals, ", ")))
	return err
}

// affected runs a data-modifying statement and returns how many rows it touched
func (s *Service) affected(ctx context.Context, server *models.Server, db *models.DatabaseHandle, statement string) (int64, error) {
	out, err := s.scalar(ctx, server, db, fmt.Sprintf("WITH affected AS (%s RETURNING 1) SELECT count(*) FROM affected", statement))
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(out, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected row count %q", out)
	}
	return n, nil
}

// UpdateRow implements engines.RowEditor
func (s *Service) UpdateRow(ctx context.Context, server *models.Server, db *models.DatabaseHandle, table string, primaryKey, data map[string]any) error {
	columns, err := s.GetColumns(ctx, server, db, table)
	if err != nil {
		return err
	}
	if err := engines.CheckPrimaryKey(columns, primaryKey); err != nil {
		return err
	}
	if err := engines.CheckDataColumns(columns, data); err != nil {
		return err
	}

	sets := make([]string, 0, len(data))
	for _, name := range engines.SortedKeys(data) {
		sets = append(sets, fmt.Sprintf("%s = %s", column(name), literal(data[name])))
	}
	n, err := s.affected(ctx, server, db, fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		ident(table), strings.Join(sets, ", "), keyCondition(primaryKey)))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no row matches the given primary key")
	}
	return nil
}

// DeleteRow implements engines.RowEditor
func (s *Service) DeleteRow(ctx context.Context, server *models.Server, db *models.DatabaseHandle, table string, primaryKey map[string]any) error {
	columns, err := s.GetColumns(ctx, server, db, table)
	if err != nil {
		return err
	}
	if err := engines.CheckPrimaryKey(columns, primaryKey); err != nil {
		return err
	}

	n, err := s.affected(ctx, server, db, fmt.Sprintf("DELETE FROM %s WHERE %s", ident(table), keyCondition(primaryKey)))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no row matches the given primary key")
	}
	return nil
}

// ExecuteQuery implements engines.QueryExecutor
func (s *Service) ExecuteQuery(ctx context.Context, server *models.Server, db *models.DatabaseHandle, query string) (*models.QueryResult, error) {
	out, err := s.psql(ctx, server, db, query, "--csv")
	if err != nil {
		return nil, err
	}
	return parseCSV(out)
}

// parseCSV turns psql --csv output into a query result; the first record is the header
func parseCSV(out string) (*models.QueryResult, error) {
	result := &models.QueryResult{Columns: []string{}, Rows: [][]any{}}
	if strings.TrimSpace(out) == "" {
		return result, nil
	}

	reader := csv.NewReader(strings.NewReader(out))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse query output: %w", err)
	}
	if len(records) == 0 {
		return result, nil
	}

	result.Columns = records[0]
	for _, record := range records[1:] {
		row := make([]any, len(record))
		for i, v := range record {
			row[i] = v
		}
		result.Rows = append(result.Rows, row)
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

// ListUsers implements engines.UserManager
func (s *Service) ListUsers(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.UserDescriptor, error) {
	var rows []struct {
		Name       string `json:"name"`
		Super      bool   `json:"super"`
		CreateDB   bool   `json:"createdb"`
		CreateRole bool   `json:"createrole"`
		Login      bool   `json:"login"`
	}
	err := s.queryJSON(ctx, server, db, `SELECT rolname AS name, rolsuper AS super, rolcreatedb AS createdb,
		rolcreaterole AS createrole, rolcanlogin AS login
		FROM pg_roles WHERE rolname !~ '^pg_' ORDER BY rolname`, &rows)
	if err != nil {
		return nil, err
	}

	users := make([]models.UserDescriptor, 0, len(rows))
	for _, r := range rows {
		var attrs []string
		if r.Super {
			attrs = append(attrs, "superuser")
		}
		if r.CreateDB {
			attrs = append(attrs, "createdb")
		}
		if r.CreateRole {
			attrs = append(attrs, "createrole")
		}
		if r.Login {
			attrs = append(attrs, "login")
		}
		users = append(users, models.UserDescriptor{
			Name:       r.Name,
			Attributes: attrs,
			Protected:  r.Name == defaultUser,
		})
	}
	return users, nil
}

// CreateUser implements engines.UserManager
func (s *Service) CreateUser(ctx context.Context, server *models.Server, db *models.DatabaseHandle, username, password string) error {
	_, err := s.psql(ctx, server, db, fmt.Sprintf("CREATE ROLE %s WITH LOGIN PASSWORD %s",
		column(username), engines.QuoteString(password)))
	return err
}

// DeleteUser implements engines.UserManager
func (s *Service) DeleteUser(ctx context.Context, server *models.Server, db *models.DatabaseHandle, username string) error {
	if engines.IsProtected(s, username) {
		return engines.ProtectedError(username)
	}
	_, err := s.psql(ctx, server, db, "DROP ROLE "+column(username))
	return err
}

// GetActiveConnections implements engines.ConnectionManager
func (s *Service) GetActiveConnections(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.Connection, error) {
	var conns []models.Connection
	err := s.queryJSON(ctx, server, db, `SELECT pid::text AS id, usename AS user, datname AS database,
		COALESCE(client_addr::text, 'local') AS client, state, left(query, 500) AS query,
		COALESCE(to_char(now() - query_start, 'HH24:MI:SS'), '') AS duration
		FROM pg_stat_activity
		WHERE pid <> pg_backend_pid() AND backend_type = 'client backend'
		ORDER BY query_start NULLS LAST`, &conns)
	if err != nil {
		return nil, err
	}
	return conns, nil
}

// KillConnection implements engines.ConnectionManager
func (s *Service) KillConnection(ctx context.Context, server *models.Server, db *models.DatabaseHandle, id string) error {
	pid, err := strconv.Atoi(id)
	if err != nil || pid <= 0 {
		return engines.InvalidConnectionID(id)
	}
	out, err := s.scalar(ctx, server, db, fmt.Sprintf("SELECT pg_terminate_backend(%d)", pid))
	if err != nil {
		return err
	}
	if out != "t" {
		return fmt.Errorf("backend %d could not be terminated", pid)
	}
	return nil
}

// ListExtensions implements engines.ExtensionManager
func (s *Service) ListExtensions(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]engines.Extension, error) {
	allowed := validation.AllowedExtensions()
	quoted := make([]string, len(allowed))
	for i, name := range allowed {
		quoted[i] = engines.QuoteString(name)
	}

	var extensions []engines.Extension
	err := s.queryJSON(ctx, server, db, fmt.Sprintf(`SELECT name, COALESCE(default_version, '') AS default_version,
		COALESCE(installed_version, '') AS installed_version, installed_version IS NOT NULL AS enabled,
		COALESCE(comment, '') AS comment
		FROM pg_available_extensions WHERE name IN (%s) ORDER BY name`, strings.Join(quoted, ", ")), &extensions)
	if err != nil {
		return nil, err
	}
	return extensions, nil
}

// SetExtension implements engines.ExtensionManager
func (s *Service) SetExtension(ctx context.Context, server *models.Server, db *models.DatabaseHandle, name string, enabled bool) error {
	statement := "DROP EXTENSION IF EXISTS " + column(name)
	if enabled {
		statement = "CREATE EXTENSION IF NOT EXISTS " + column(name)
	}
	_, err := s.psql(ctx, server, db, statement)
	return err
}

// RunMaintenance implements engines.Maintainer
func (s *Service) RunMaintenance(ctx context.Context, server *models.Server, db *models.DatabaseHandle, operation, table string) (string, error) {
	op := strings.ToUpper(operation)
	statement := op
	target := "database"
	if table != "" {
		statement += " " + ident(table)
		target = "table " + table
	}
	if _, err := s.psql(ctx, server, db, statement); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s completed on %s", op, target), nil
}

// GetSettings implements engines.SettingsReader
func (s *Service) GetSettings(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (map[string]any, error) {
	quoted := make([]string, len(settingNames))
	for i, name := range settingNames {
		quoted[i] = engines.QuoteString(name)
	}

	var rows []struct {
		Name    string `json:"name"`
		Setting string `json:"setting"`
		Unit    string `json:"unit"`
	}
	err := s.queryJSON(ctx, server, db, fmt.Sprintf(`SELECT name, setting, COALESCE(unit, '') AS unit
		FROM pg_settings WHERE name IN (%s) ORDER BY name`, strings.Join(quoted, ", ")), &rows)
	if err != nil {
		return nil, err
	}

	settings := make(map[string]any, len(rows))
	for _, r := range rows {
		if r.Unit != "" {
			settings[r.Name] = r.Setting + " " + r.Unit
			continue
		}
		settings[r.Name] = r.Setting
	}
	return settings, nil
}
