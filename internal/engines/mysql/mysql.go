// Package mysql administers MySQL and MariaDB containers through the mysql
// (or mariadb) command-line client in batch mode.
package mysql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"DBAdminDO/internal/engines"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/logger"
	"DBAdminDO/internal/transport"
	"DBAdminDO/internal/validation"
)

var protectedUsers = []string{"root", "mysql.sys", "mysql.session", "mysql.infoschema", "mariadb.sys"}

var statusNames = []string{
	"Threads_connected", "Threads_running", "Max_used_connections", "Uptime",
	"Questions", "Slow_queries", "Aborted_connects",
	"Innodb_buffer_pool_read_requests", "Innodb_buffer_pool_reads",
	"Bytes_received", "Bytes_sent",
}

var settingNames = []string{
	"version", "max_connections", "innodb_buffer_pool_size", "innodb_log_file_size",
	"innodb_flush_log_at_trx_commit", "max_allowed_packet", "character_set_server",
	"collation_server", "slow_query_log", "long_query_time", "sql_mode",
	"time_zone", "wait_timeout", "binlog_format", "log_bin",
}

var (
	_ engines.Service           = (*Service)(nil)
	_ engines.TableBrowser      = (*Service)(nil)
	_ engines.RowEditor         = (*Service)(nil)
	_ engines.QueryExecutor     = (*Service)(nil)
	_ engines.UserManager       = (*Service)(nil)
	_ engines.ConnectionManager = (*Service)(nil)
	_ engines.SettingsReader    = (*Service)(nil)
)

// Service implements the MySQL/MariaDB engine family
type Service struct {
	runner transport.Transport
	flavor models.EngineType
}

// New creates a service for flavor (mysql or mariadb)
func New(runner transport.Transport, flavor models.EngineType) *Service {
	return &Service{runner: runner, flavor: flavor}
}

// Family implements engines.Service
func (s *Service) Family() string {
	return string(s.flavor)
}

// ProtectedUsers implements engines.UserManager
func (s *Service) ProtectedUsers() []string {
	return protectedUsers
}

// client returns the CLI binary shipped in the flavor's official image
func (s *Service) client() string {
	if s.flavor == models.EngineMariaDB {
		return "mariadb"
	}
	return "mysql"
}

// exec runs sql in batch mode. Output is tab separated with a header row.
func (s *Service) exec(ctx context.Context, server *models.Server, db *models.DatabaseHandle, sql string) (string, error) {
	user := db.Credentials.AdminUser
	if user == "" {
		user = "root"
	}
	argv := []string{s.client(), "-B", "-u", user}
	if db.Credentials.Database != "" {
		argv = append(argv, "-D", db.Credentials.Database)
	}
	argv = append(argv, "-e", sql)

	env := map[string]string{}
	if db.Credentials.AdminPassword != "" {
		env["MYSQL_PWD"] = db.Credentials.AdminPassword
	}
	return s.runner.Run(ctx, server, []string{engines.Exec(db.ContainerName(), env, argv...)})
}

// query runs sql and parses its tab separated result
func (s *Service) query(ctx context.Context, server *models.Server, db *models.DatabaseHandle, sql string) (*resultSet, error) {
	out, err := s.exec(ctx, server, db, sql)
	if err != nil {
		return nil, err
	}
	return parseTSV(out), nil
}

func ident(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return quoteIdent(schema) + "." + quoteIdent(name)
	}
	return quoteIdent(table)
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func literal(v any) string {
	return engines.Literal(v, engines.QuoteStringBackslash)
}

// schemaCondition scopes information_schema lookups to the table's schema
func schemaCondition(table string) (string, string) {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return "TABLE_SCHEMA = " + engines.QuoteStringBackslash(schema), name
	}
	return "TABLE_SCHEMA = DATABASE()", table
}

// CollectMetrics implements engines.Service
func (s *Service) CollectMetrics(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (*models.MetricsSample, error) {
	sample, statsErr := engines.ContainerSample(ctx, s.runner, server, db.ContainerName())

	quoted := make([]string, len(statusNames))
	for i, n := range statusNames {
		quoted[i] = engines.QuoteStringBackslash(n)
	}
	rs, err := s.query(ctx, server, db, fmt.Sprintf("SHOW GLOBAL STATUS WHERE Variable_name IN (%s)", strings.Join(quoted, ", ")))
	if err != nil {
		if statsErr != nil {
			return nil, err
		}
		logger.Warn("MySQL status unavailable",
			logger.Database(db.UUID, s.Family()),
			logger.Err(err))
		return sample, nil
	}

	status := rs.pairs()
	sample.Connections = engines.Int64Ptr(status["Threads_connected"])
	for _, name := range statusNames[1:] {
		if v := engines.Int64Ptr(status[name]); v != nil {
			sample.SetExtra(strings.ToLower(name), *v)
		}
	}
	requests, reads := engines.Int64Ptr(status["Innodb_buffer_pool_read_requests"]), engines.Int64Ptr(status["Innodb_buffer_pool_reads"])
	if requests != nil && reads != nil && *requests > 0 {
		ratio := 100 * float64(*requests-*reads) / float64(*requests)
		sample.SetExtra("buffer_pool_hit_ratio", float64(int64(ratio*100))/100)
	}
	return sample, nil
}

// GetTables implements engines.TableBrowser
func (s *Service) GetTables(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.TableDescriptor, error) {
	rs, err := s.query(ctx, server, db, `SELECT TABLE_NAME, TABLE_TYPE, TABLE_ROWS FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE() ORDER BY TABLE_NAME`)
	if err != nil {
		return nil, err
	}

	tables := make([]models.TableDescriptor, 0, len(rs.rows))
	for _, row := range rs.rows {
		t := models.TableDescriptor{
			Name: row.str(0),
			Type: strings.ToLower(strings.TrimPrefix(row.str(1), "BASE ")),
			Rows: engines.Int64Ptr(row.str(2)),
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// GetColumns implements engines.TableBrowser
func (s *Service) GetColumns(ctx context.Context, server *models.Server, db *models.DatabaseHandle, table string) ([]models.ColumnDescriptor, error) {
	cond, name := schemaCondition(table)
	rs, err := s.query(ctx, server, db, fmt.Sprintf(`SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, COLUMN_KEY
		FROM information_schema.COLUMNS WHERE %s AND TABLE_NAME = %s ORDER BY ORDINAL_POSITION`,
		cond, engines.QuoteStringBackslash(name)))
	if err != nil {
		return nil, err
	}

	columns := make([]models.ColumnDescriptor, 0, len(rs.rows))
	for _, row := range rs.rows {
		c := models.ColumnDescriptor{
			Name:       row.str(0),
			Type:       row.str(1),
			Nullable:   row.str(2) == "YES",
			PrimaryKey: row.str(4) == "PRI",
		}
		if v, ok := row[3].(string); ok {
			c.Default = &v
		}
		columns = append(columns, c)
	}
	return columns, nil
}

func isText(t string) bool {
	return strings.Contains(t, "char") || strings.Contains(t, "text") || strings.HasPrefix(t, "enum") || strings.HasPrefix(t, "set")
}

func whereClause(columns []models.ColumnDescriptor, req models.DataRequest) string {
	var conds []string
	if req.Search != "" {
		pattern := engines.QuoteStringBackslash(engines.LikePattern(req.Search))
		var ors []string
		for _, c := range engines.TextColumns(columns, isText) {
			ors = append(ors, fmt.Sprintf("CAST(%s AS CHAR) LIKE %s", quoteIdent(c), pattern))
		}
		if len(ors) > 0 {
			conds = append(conds, "("+strings.Join(ors, " OR ")+")")
		}
	}
	for _, name := range engines.SortedKeys(req.Filters) {
		conds = append(conds, fmt.Sprintf("%s = %s", quoteIdent(name), engines.QuoteStringBackslash(req.Filters[name])))
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
	countRS, err := s.query(ctx, server, db, fmt.Sprintf("SELECT COUNT(*) AS total FROM %s%s", ident(req.Table), where))
	if err != nil {
		return nil, err
	}
	var total int64
	if len(countRS.rows) > 0 {
		if t := engines.Int64Ptr(countRS.rows[0].str(0)); t != nil {
			total = *t
		}
	}

	order := ""
	if by := engines.ResolveOrderBy(columns, req.OrderBy); by != "" {
		order = fmt.Sprintf(" ORDER BY %s %s", quoteIdent(by), strings.ToUpper(validation.NormalizeOrderDir(req.OrderDir)))
	}
	dataRS, err := s.query(ctx, server, db, fmt.Sprintf("SELECT * FROM %s%s%s LIMIT %d OFFSET %d",
		ident(req.Table), where, order, req.PerPage, req.Offset()))
	if err != nil {
		return nil, err
	}

	return &models.DataPage{
		Columns:    columns,
		Rows:       dataRS.maps(),
		Pagination: models.NewPagination(total, req.Page, req.PerPage),
	}, nil
}

func keyCondition(primaryKey map[string]any) string {
	conds := make([]string, 0, len(primaryKey))
	for _, name := range engines.SortedKeys(primaryKey) {
		if primaryKey[name] == nil {
			conds = append(conds, quoteIdent(name)+" IS NULL")
			continue
		}
		conds = append(conds, fmt.Sprintf("%s = %s", quoteIdent(name), literal(primaryKey[name])))
	}
	return strings.Join(conds, " AND ")
}

// affected runs statement and reports ROW_COUNT() from the same session
func (s *Service) affected(ctx context.Context, server *models.Server, db *models.DatabaseHandle, statement string) (int64, error) {
	rs, err := s.query(ctx, server, db, statement+"; SELECT ROW_COUNT() AS affected")
	if err != nil {
		return 0, err
	}
	if len(rs.rows) == 0 {
		return 0, engines.ErrNoOutput
	}
	n := engines.Int64Ptr(rs.rows[0].str(0))
	if n == nil {
		return 0, fmt.Errorf("unexpected row count %q", rs.rows[0].str(0))
	}
	return *n, nil
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
		cols[i] = quoteIdent(name)
		vals[i] = literal(data[name])
	}
	_, err = s.exec(ctx, server, db, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ident(table), strings.Join(cols, ", "), strings.Join(vals, ", ")))
	return err
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
		sets = append(sets, fmt.Sprintf("%s = %s", quoteIdent(name), literal(data[name])))
	}
	// ROW_COUNT is 0 both for a miss and for a row that already held the new
	// values, so only statement errors are reported.
	_, err = s.affected(ctx, server, db, fmt.Sprintf("UPDATE %s SET %s WHERE %s LIMIT 1",
		ident(table), strings.Join(sets, ", "), keyCondition(primaryKey)))
	return err
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

	n, err := s.affected(ctx, server, db, fmt.Sprintf("DELETE FROM %s WHERE %s LIMIT 1", ident(table), keyCondition(primaryKey)))
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
	rs, err := s.query(ctx, server, db, query)
	if err != nil {
		return nil, err
	}
	return rs.result(), nil
}

// ListUsers implements engines.UserManager
func (s *Service) ListUsers(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.UserDescriptor, error) {
	rs, err := s.query(ctx, server, db, "SELECT User, Host FROM mysql.user ORDER BY User, Host")
	if err != nil {
		return nil, err
	}
	users := make([]models.UserDescriptor, 0, len(rs.rows))
	for _, row := range rs.rows {
		name := row.str(0)
		users = append(users, models.UserDescriptor{
			Name:       name,
			Attributes: []string{"host:" + row.str(1)},
			Protected:  engines.IsProtected(s, name),
		})
	}
	return users, nil
}

// CreateUser implements engines.UserManager
func (s *Service) CreateUser(ctx context.Context, server *models.Server, db *models.DatabaseHandle, username, password string) error {
	sql := fmt.Sprintf("CREATE USER %s@'%%' IDENTIFIED BY %s",
		engines.QuoteStringBackslash(username), engines.QuoteStringBackslash(password))
	if db.Credentials.Database != "" {
		sql += fmt.Sprintf("; GRANT ALL PRIVILEGES ON %s.* TO %s@'%%'",
			quoteIdent(db.Credentials.Database), engines.QuoteStringBackslash(username))
	}
	_, err := s.exec(ctx, server, db, sql)
	return err
}

// DeleteUser implements engines.UserManager
func (s *Service) DeleteUser(ctx context.Context, server *models.Server, db *models.DatabaseHandle, username string) error {
	if engines.IsProtected(s, username) {
		return engines.ProtectedError(username)
	}
	_, err := s.exec(ctx, server, db, fmt.Sprintf("DROP USER %s@'%%'", engines.QuoteStringBackslash(username)))
	return err
}

// GetActiveConnections implements engines.ConnectionManager
func (s *Service) GetActiveConnections(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.Connection, error) {
	rs, err := s.query(ctx, server, db, `SELECT ID, USER, DB, HOST, COMMAND, STATE, LEFT(INFO, 500), TIME
		FROM information_schema.PROCESSLIST WHERE ID <> CONNECTION_ID() ORDER BY TIME DESC`)
	if err != nil {
		return nil, err
	}

	conns := make([]models.Connection, 0, len(rs.rows))
	for _, row := range rs.rows {
		state := row.str(4)
		if st := row.str(5); st != "" {
			state += ": " + st
		}
		conns = append(conns, models.Connection{
			ID:       row.str(0),
			User:     row.str(1),
			Database: row.str(2),
			Client:   row.str(3),
			State:    state,
			Query:    row.str(6),
			Duration: row.str(7) + "s",
		})
	}
	return conns, nil
}

// KillConnection implements engines.ConnectionManager
func (s *Service) KillConnection(ctx context.Context, server *models.Server, db *models.DatabaseHandle, id string) error {
	thread, err := strconv.ParseUint(id, 10, 64)
	if err != nil || thread == 0 {
		return engines.InvalidConnectionID(id)
	}
	_, err = s.exec(ctx, server, db, fmt.Sprintf("KILL %d", thread))
	return err
}

// GetSettings implements engines.SettingsReader
func (s *Service) GetSettings(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (map[string]any, error) {
	quoted := make([]string, len(settingNames))
	for i, n := range settingNames {
		quoted[i] = engines.QuoteStringBackslash(n)
	}
	rs, err := s.query(ctx, server, db, fmt.Sprintf("SHOW GLOBAL VARIABLES WHERE Variable_name IN (%s)", strings.Join(quoted, ", ")))
	if err != nil {
		return nil, err
	}

	settings := make(map[string]any)
	for k, v := range rs.pairs() {
		settings[k] = v
	}
	return settings, nil
}
