// Package clickhouse administers ClickHouse containers through clickhouse-client.
package clickhouse

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"DBAdminDO/internal/engines"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/logger"
	"DBAdminDO/internal/transport"
	"DBAdminDO/internal/validation"
)

// DefaultQueryLogLimit caps query log listings
const DefaultQueryLogLimit = 100

var protectedUsers = []string{"default"}

var queryIDRe = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

var (
	_ engines.Service           = (*Service)(nil)
	_ engines.TableBrowser      = (*Service)(nil)
	_ engines.QueryExecutor     = (*Service)(nil)
	_ engines.UserManager       = (*Service)(nil)
	_ engines.ConnectionManager = (*Service)(nil)
	_ engines.SettingsReader    = (*Service)(nil)
	_ engines.AnalyticsInsights = (*Service)(nil)
)

// Service implements the ClickHouse engine family. Row mutations are not
// offered: ALTER ... UPDATE/DELETE run asynchronously and cannot report a result.
type Service struct {
	runner transport.Transport
}

// New creates a ClickHouse service
func New(runner transport.Transport) *Service {
	return &Service{runner: runner}
}

// Family implements engines.Service
func (s *Service) Family() string {
	return string(models.EngineClickHouse)
}

// ProtectedUsers implements engines.UserManager
func (s *Service) ProtectedUsers() []string {
	return protectedUsers
}

// jsonResult is the shape of FORMAT JSON and JSONCompact output
type jsonResult[R any] struct {
	Meta []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"meta"`
	Data []R   `json:"data"`
	Rows int64 `json:"rows"`
}

// exec runs sql with clickhouse-client, credentials passed through the environment
func (s *Service) exec(ctx context.Context, server *models.Server, db *models.DatabaseHandle, sql, format string) (string, error) {
	argv := []string{"clickhouse-client"}
	if db.Credentials.Database != "" {
		argv = append(argv, "--database", db.Credentials.Database)
	}
	if format != "" {
		argv = append(argv, "--format", format)
	}
	argv = append(argv, "--output_format_json_quote_64bit_integers", "0", "--query", sql)

	env := map[string]string{}
	if db.Credentials.AdminUser != "" {
		env["CLICKHOUSE_USER"] = db.Credentials.AdminUser
	}
	if db.Credentials.AdminPassword != "" {
		env["CLICKHOUSE_PASSWORD"] = db.Credentials.AdminPassword
	}
	return s.runner.Run(ctx, server, []string{engines.Exec(db.ContainerName(), env, argv...)})
}

// rows runs sql and returns FORMAT JSON data rows keyed by column
func (s *Service) rows(ctx context.Context, server *models.Server, db *models.DatabaseHandle, sql string) ([]map[string]any, error) {
	out, err := s.exec(ctx, server, db, sql, "JSON")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		return []map[string]any{}, nil
	}
	var result jsonResult[map[string]any]
	if err := engines.DecodeJSON(out, &result); err != nil {
		return nil, err
	}
	if result.Data == nil {
		result.Data = []map[string]any{}
	}
	return result.Data, nil
}

func ident(table string) string {
	if database, name, ok := strings.Cut(table, "."); ok {
		return quoteIdent(database) + "." + quoteIdent(name)
	}
	return quoteIdent(table)
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

func quote(s string) string {
	return engines.QuoteStringBackslash(s)
}

// databaseCondition scopes system table lookups to the table's database
func databaseCondition(table string) (string, string) {
	if database, name, ok := strings.Cut(table, "."); ok {
		return "database = " + quote(database), name
	}
	return "database = currentDatabase()", table
}

// CollectMetrics implements engines.Service
func (s *Service) CollectMetrics(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (*models.MetricsSample, error) {
	sample, statsErr := engines.ContainerSample(ctx, s.runner, server, db.ContainerName())

	rows, err := s.rows(ctx, server, db, `SELECT
		(SELECT value FROM system.metrics WHERE metric = 'TCPConnection') AS tcp,
		(SELECT value FROM system.metrics WHERE metric = 'HTTPConnection') AS http,
		(SELECT value FROM system.metrics WHERE metric = 'Query') AS running_queries,
		(SELECT value FROM system.metrics WHERE metric = 'MemoryTracking') AS memory_tracking,
		(SELECT count() FROM system.merges) AS active_merges,
		uptime() AS uptime, version() AS version`)
	if err != nil {
		if statsErr != nil {
			return nil, err
		}
		logger.Warn("ClickHouse metrics unavailable",
			logger.Database(db.UUID, s.Family()),
			logger.Err(err))
		return sample, nil
	}
	if len(rows) == 0 {
		return sample, nil
	}

	m := rows[0]
	tcp, http := engines.Int64(m["tcp"]), engines.Int64(m["http"])
	if tcp != nil || http != nil {
		var total int64
		if tcp != nil {
			total += *tcp
		}
		if http != nil {
			total += *http
		}
		sample.Connections = &total
	}
	for _, key := range []string{"running_queries", "memory_tracking", "active_merges", "uptime"} {
		if v := engines.Int64(m[key]); v != nil {
			sample.SetExtra(key, *v)
		}
	}
	sample.SetExtra("version", m["version"])
	return sample, nil
}

// GetTables implements engines.TableBrowser
func (s *Service) GetTables(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.TableDescriptor, error) {
	rows, err := s.rows(ctx, server, db, `SELECT name, engine, database, total_rows FROM system.tables
		WHERE database = currentDatabase() AND NOT is_temporary ORDER BY name`)
	if err != nil {
		return nil, err
	}

	tables := make([]models.TableDescriptor, 0, len(rows))
	for _, r := range rows {
		tables = append(tables, models.TableDescriptor{
			Name:   fmt.Sprint(r["name"]),
			Type:   fmt.Sprint(r["engine"]),
			Schema: fmt.Sprint(r["database"]),
			Rows:   engines.Int64(r["total_rows"]),
		})
	}
	return tables, nil
}

// GetColumns implements engines.TableBrowser
func (s *Service) GetColumns(ctx context.Context, server *models.Server, db *models.DatabaseHandle, table string) ([]models.ColumnDescriptor, error) {
	cond, name := databaseCondition(table)
	rows, err := s.rows(ctx, server, db, fmt.Sprintf(`SELECT name, type, default_expression, is_in_primary_key
		FROM system.columns WHERE %s AND table = %s ORDER BY position`, cond, quote(name)))
	if err != nil {
		return nil, err
	}

	columns := make([]models.ColumnDescriptor, 0, len(rows))
	for _, r := range rows {
		typ := fmt.Sprint(r["type"])
		c := models.ColumnDescriptor{
			Name:     fmt.Sprint(r["name"]),
			Type:     typ,
			Nullable: strings.HasPrefix(typ, "Nullable("),
		}
		if pk := engines.Int64(r["is_in_primary_key"]); pk != nil && *pk == 1 {
			c.PrimaryKey = true
		}
		if def, ok := r["default_expression"].(string); ok && def != "" {
			c.Default = &def
		}
		columns = append(columns, c)
	}
	return columns, nil
}

func isText(t string) bool {
	return strings.Contains(t, "string") || strings.Contains(t, "uuid") || strings.Contains(t, "enum")
}

func whereClause(columns []models.ColumnDescriptor, req models.DataRequest) string {
	var conds []string
	if req.Search != "" {
		needle := quote(req.Search)
		var ors []string
		for _, c := range engines.TextColumns(columns, isText) {
			ors = append(ors, fmt.Sprintf("positionCaseInsensitive(toString(%s), %s) > 0", quoteIdent(c), needle))
		}
		if len(ors) > 0 {
			conds = append(conds, "("+strings.Join(ors, " OR ")+")")
		}
	}
	for _, name := range engines.SortedKeys(req.Filters) {
		conds = append(conds, fmt.Sprintf("toString(%s) = %s", quoteIdent(name), quote(req.Filters[name])))
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
	countRows, err := s.rows(ctx, server, db, fmt.Sprintf("SELECT count() AS total FROM %s%s", ident(req.Table), where))
	if err != nil {
		return nil, err
	}
	var total int64
	if len(countRows) > 0 {
		if t := engines.Int64(countRows[0]["total"]); t != nil {
			total = *t
		}
	}

	order := ""
	if by := engines.ResolveOrderBy(columns, req.OrderBy); by != "" {
		order = fmt.Sprintf(" ORDER BY %s %s", quoteIdent(by), strings.ToUpper(validation.NormalizeOrderDir(req.OrderDir)))
	}
	data, err := s.rows(ctx, server, db, fmt.Sprintf("SELECT * FROM %s%s%s LIMIT %d OFFSET %d",
		ident(req.Table), where, order, req.PerPage, req.Offset()))
	if err != nil {
		return nil, err
	}

	return &models.DataPage{
		Columns:    columns,
		Rows:       data,
		Pagination: models.NewPagination(total, req.Page, req.PerPage),
	}, nil
}

// ExecuteQuery implements engines.QueryExecutor
func (s *Service) ExecuteQuery(ctx context.Context, server *models.Server, db *models.DatabaseHandle, query string) (*models.QueryResult, error) {
	out, err := s.exec(ctx, server, db, query, "JSONCompact")
	if err != nil {
		return nil, err
	}

	result := &models.QueryResult{Columns: []string{}, Rows: [][]any{}}
	if strings.TrimSpace(out) == "" {
		return result, nil
	}

	var compactResult jsonResult[[]any]
	if err := engines.DecodeJSON(out, &compactResult); err != nil {
		return nil, err
	}
	for _, m := range compactResult.Meta {
		result.Columns = append(result.Columns, m.Name)
	}
	if compactResult.Data != nil {
		result.Rows = compactResult.Data
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

// ListUsers implements engines.UserManager
func (s *Service) ListUsers(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.UserDescriptor, error) {
	rows, err := s.rows(ctx, server, db, "SELECT name, storage, auth_type FROM system.users ORDER BY name")
	if err != nil {
		return nil, err
	}

	users := make([]models.UserDescriptor, 0, len(rows))
	for _, r := range rows {
		name := fmt.Sprint(r["name"])
		users = append(users, models.UserDescriptor{
			Name:       name,
			Attributes: []string{"storage:" + fmt.Sprint(r["storage"]), "auth:" + fmt.Sprint(r["auth_type"])},
			Protected:  engines.IsProtected(s, name),
		})
	}
	return users, nil
}

// CreateUser implements engines.UserManager
func (s *Service) CreateUser(ctx context.Context, server *models.Server, db *models.DatabaseHandle, username, password string) error {
	sql := fmt.Sprintf("CREATE USER %s IDENTIFIED WITH sha256_password BY %s", quoteIdent(username), quote(password))
	if _, err := s.exec(ctx, server, db, sql, ""); err != nil {
		return err
	}
	target := "*"
	if db.Credentials.Database != "" {
		target = quoteIdent(db.Credentials.Database)
	}
	_, err := s.exec(ctx, server, db, fmt.Sprintf("GRANT ALL ON %s.* TO %s", target, quoteIdent(username)), "")
	return err
}

// DeleteUser implements engines.UserManager
func (s *Service) DeleteUser(ctx context.Context, server *models.Server, db *models.DatabaseHandle, username string) error {
	if engines.IsProtected(s, username) {
		return engines.ProtectedError(username)
	}
	_, err := s.exec(ctx, server, db, "DROP USER "+quoteIdent(username), "")
	return err
}

// GetActiveConnections implements engines.ConnectionManager over running queries
func (s *Service) GetActiveConnections(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.Connection, error) {
	rows, err := s.rows(ctx, server, db, `SELECT query_id, user, current_database, toString(address) AS address,
		substring(query, 1, 500) AS query, round(elapsed, 2) AS elapsed
		FROM system.processes WHERE query_id != queryID() ORDER BY elapsed DESC`)
	if err != nil {
		return nil, err
	}

	conns := make([]models.Connection, 0, len(rows))
	for _, r := range rows {
		conns = append(conns, models.Connection{
			ID:       fmt.Sprint(r["query_id"]),
			User:     fmt.Sprint(r["user"]),
			Database: fmt.Sprint(r["current_database"]),
			Client:   fmt.Sprint(r["address"]),
			State:    "running",
			Query:    fmt.Sprint(r["query"]),
			Duration: fmt.Sprint(r["elapsed"]) + "s",
		})
	}
	return conns, nil
}

// KillConnection implements engines.ConnectionManager by killing a running query
func (s *Service) KillConnection(ctx context.Context, server *models.Server, db *models.DatabaseHandle, id string) error {
	if !queryIDRe.MatchString(id) {
		return engines.InvalidConnectionID(id)
	}
	_, err := s.exec(ctx, server, db, "KILL QUERY WHERE query_id = "+quote(id)+" ASYNC", "")
	return err
}

// QueryLog implements engines.AnalyticsInsights
func (s *Service) QueryLog(ctx context.Context, server *models.Server, db *models.DatabaseHandle, limit int) ([]map[string]any, error) {
	if limit <= 0 || limit > DefaultQueryLogLimit {
		limit = DefaultQueryLogLimit
	}
	return s.rows(ctx, server, db, fmt.Sprintf(`SELECT event_time, user, query_duration_ms, read_rows, read_bytes,
		result_rows, memory_usage, substring(query, 1, 500) AS query
		FROM system.query_log WHERE type = 'QueryFinish'
		ORDER BY event_time DESC LIMIT %d`, limit))
}

// MergeStatus implements engines.AnalyticsInsights
func (s *Service) MergeStatus(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]map[string]any, error) {
	return s.rows(ctx, server, db, `SELECT database, table, round(elapsed, 2) AS elapsed, round(progress, 4) AS progress,
		num_parts, result_part_name, total_size_bytes_compressed, memory_usage
		FROM system.merges ORDER BY elapsed DESC`)
}

// ReplicationStatus implements engines.AnalyticsInsights
func (s *Service) ReplicationStatus(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]map[string]any, error) {
	return s.rows(ctx, server, db, `SELECT database, table, is_leader, is_readonly, is_session_expired,
		queue_size, inserts_in_queue, merges_in_queue, absolute_delay, total_replicas, active_replicas
		FROM system.replicas ORDER BY database, table`)
}

// GetSettings implements engines.SettingsReader with the settings changed from their defaults
func (s *Service) GetSettings(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (map[string]any, error) {
	rows, err := s.rows(ctx, server, db, `SELECT name, value FROM system.settings
		WHERE changed OR name IN ('max_memory_usage', 'max_threads', 'max_execution_time', 'readonly')
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	settings := make(map[string]any, len(rows))
	for _, r := range rows {
		settings[fmt.Sprint(r["name"])] = r["value"]
	}
	return settings, nil
}
