// Package mongodb administers MongoDB containers through mongosh.
package mongodb

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"DBAdminDO/internal/engines"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/apperrors"
	"DBAdminDO/internal/pkg/logger"
	"DBAdminDO/internal/transport"
	"DBAdminDO/internal/validation"

	"go.mongodb.org/mongo-driver/bson"
)

var protectedUsers = []string{"root", "admin"}

var opIDRe = regexp.MustCompile(`^(?:[A-Za-z0-9_-]+:)?[0-9]+$`)

const (
	scriptMetrics = `const s = db.serverStatus();
const r = {connections: s.connections.current, available: s.connections.available,
  resident_mb: s.mem.resident, virtual_mb: s.mem.virtual, uptime: s.uptime,
  version: s.version, opcounters: s.opcounters};`

	scriptCollections = `const r = db.getCollectionInfos().filter(c => !c.name.startsWith('system.')).map(c => ({
  name: c.name, type: c.type,
  rows: c.type === 'collection' ? db.getCollection(c.name).estimatedDocumentCount() : null}));`

	scriptFields = `const fields = {};
db.getCollection(a.collection).find({}).limit(100).forEach(d => {
  for (const [k, v] of Object.entries(d)) {
    if (k in fields) continue;
    fields[k] = v === null ? 'null' : Array.isArray(v) ? 'array' : v instanceof Date ? 'date'
      : (v && v._bsontype) ? String(v._bsontype).toLowerCase() : typeof v;
  }
});
const r = Object.entries(fields).map(([name, type]) => ({name: name, type: type}));`

	scriptData = `const c = db.getCollection(a.collection);
const r = {total: c.countDocuments(a.filter),
  rows: c.find(a.filter).sort(a.sort).skip(a.skip).limit(a.limit).toArray()};`

	scriptInsert = `const res = db.getCollection(a.collection).insertOne(a.doc);
const r = {id: res.insertedId};`

	scriptUpdate = `const res = db.getCollection(a.collection).updateOne(a.filter, {$set: a.doc});
const r = {matched: res.matchedCount, modified: res.modifiedCount};`

	scriptDelete = `const res = db.getCollection(a.collection).deleteOne(a.filter);
const r = {deleted: res.deletedCount};`

	scriptUsers = `const u = db.getSiblingDB('admin').getUsers();
const r = (Array.isArray(u) ? u : u.users).map(x => ({name: x.user, db: x.db,
  roles: (x.roles || []).map(role => role.role + '@' + role.db)}));`

	scriptCreateUser = `db.getSiblingDB('admin').createUser({user: a.user, pwd: a.pwd, roles: a.roles});
const r = {ok: 1};`

	scriptDropUser = `const r = {ok: db.getSiblingDB('admin').dropUser(a.user) ? 1 : 0};`

	scriptCurrentOp = `const r = db.currentOp({active: true}).inprog.filter(op => op.client || op.client_s).map(op => ({
  id: String(op.opid),
  user: op.effectiveUsers && op.effectiveUsers.length ? op.effectiveUsers[0].user : '',
  database: op.ns || '', client: op.client || op.client_s || '', state: op.op || '',
  query: JSON.stringify(op.command || {}).slice(0, 500),
  duration: String(op.secs_running || 0) + 's'}));`

	scriptKillOp = `const r = db.killOp(a.opid);`

	scriptIndexes = `const r = db.getCollection(a.collection).getIndexes();`

	scriptCreateIndex = `const r = db.getCollection(a.collection).createIndex(a.keys, a.options);`

	scriptReplicaSet = `let r;
try { r = rs.status(); } catch (e) { r = {ok: 0, errmsg: e.message}; }`

	scriptSettings = `const opts = db.adminCommand({getCmdLineOpts: 1});
const st = db.serverStatus();
const r = {storage: (opts.parsed && opts.parsed.storage) || {}, storage_engine: st.storageEngine,
  cache_max_bytes: st.wiredTiger ? st.wiredTiger.cache['maximum bytes configured'] : null,
  cache_used_bytes: st.wiredTiger ? st.wiredTiger.cache['bytes currently in the cache'] : null};`
)

var (
	_ engines.Service           = (*Service)(nil)
	_ engines.TableBrowser      = (*Service)(nil)
	_ engines.RowEditor         = (*Service)(nil)
	_ engines.QueryExecutor     = (*Service)(nil)
	_ engines.UserManager       = (*Service)(nil)
	_ engines.ConnectionManager = (*Service)(nil)
	_ engines.SettingsReader    = (*Service)(nil)
	_ engines.DocumentStore     = (*Service)(nil)
)

// Service implements the MongoDB engine family
type Service struct {
	runner transport.Transport
}

// New creates a MongoDB service
func New(runner transport.Transport) *Service {
	return &Service{runner: runner}
}

// Family implements engines.Service
func (s *Service) Family() string {
	return string(models.EngineMongoDB)
}

// ProtectedUsers implements engines.UserManager
func (s *Service) ProtectedUsers() []string {
	return protectedUsers
}

func database(db *models.DatabaseHandle) string {
	if db.Credentials.Database != "" {
		return db.Credentials.Database
	}
	return "admin"
}

// eval runs body with args and returns the decoded value of r
func (s *Service) eval(ctx context.Context, server *models.Server, db *models.DatabaseHandle, body string, args bson.M) (any, error) {
	encoded, err := encodeArgs(args)
	if err != nil {
		return nil, err
	}

	env := map[string]string{
		"MONGO_ARGS":   encoded,
		"MONGO_DB":     database(db),
		"MONGO_SCRIPT": prelude + body + epilogue,
	}
	launcher := launcherNoAuth
	if db.Credentials.AdminUser != "" {
		env["MONGO_USER"] = db.Credentials.AdminUser
		env["MONGO_PASSWORD"] = db.Credentials.AdminPassword
		launcher = launcherAuth
	}

	out, err := s.runner.Run(ctx, server, []string{engines.Exec(db.ContainerName(), env, "sh", "-c", launcher)})
	if err != nil {
		return nil, err
	}
	return decodeResult(out)
}

// CollectMetrics implements engines.Service
func (s *Service) CollectMetrics(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (*models.MetricsSample, error) {
	sample, statsErr := engines.ContainerSample(ctx, s.runner, server, db.ContainerName())

	v, err := s.eval(ctx, server, db, scriptMetrics, nil)
	if err != nil {
		if statsErr != nil {
			return nil, err
		}
		logger.Warn("serverStatus unavailable",
			logger.Database(db.UUID, s.Family()),
			logger.Err(err))
		return sample, nil
	}

	status := asMap(v)
	sample.Connections = engines.Int64(status["connections"])
	for _, key := range []string{"available", "resident_mb", "virtual_mb", "uptime", "version", "opcounters"} {
		sample.SetExtra(key, status[key])
	}
	return sample, nil
}

// ListCollections implements engines.DocumentStore
func (s *Service) ListCollections(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.TableDescriptor, error) {
	v, err := s.eval(ctx, server, db, scriptCollections, nil)
	if err != nil {
		return nil, err
	}

	list := asSlice(v)
	collections := make([]models.TableDescriptor, 0, len(list))
	for _, item := range list {
		c := asMap(item)
		collections = append(collections, models.TableDescriptor{
			Name: str(c["name"]),
			Type: str(c["type"]),
			Rows: engines.Int64(c["rows"]),
		})
	}
	return collections, nil
}

// GetTables implements engines.TableBrowser over collections
func (s *Service) GetTables(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.TableDescriptor, error) {
	return s.ListCollections(ctx, server, db)
}

// GetColumns implements engines.TableBrowser by sampling documents. _id is the primary key.
func (s *Service) GetColumns(ctx context.Context, server *models.Server, db *models.DatabaseHandle, collection string) ([]models.ColumnDescriptor, error) {
	v, err := s.eval(ctx, server, db, scriptFields, bson.M{"collection": collection})
	if err != nil {
		return nil, err
	}

	columns := []models.ColumnDescriptor{{Name: "_id", Type: "objectid", PrimaryKey: true}}
	for _, item := range asSlice(v) {
		f := asMap(item)
		name := str(f["name"])
		if name == "_id" {
			columns[0].Type = str(f["type"])
			continue
		}
		columns = append(columns, models.ColumnDescriptor{Name: name, Type: str(f["type"]), Nullable: true})
	}
	return columns, nil
}

func isText(t string) bool {
	return t == "string"
}

// buildFilter turns search text and exact-match filters into a query document
func buildFilter(columns []models.ColumnDescriptor, req models.DataRequest) bson.M {
	filter := bson.M{}
	if req.Search != "" {
		pattern := regexp.QuoteMeta(req.Search)
		var ors bson.A
		for _, name := range engines.TextColumns(columns, isText) {
			ors = append(ors, bson.M{name: bson.M{"$regex": pattern, "$options": "i"}})
		}
		if len(ors) > 0 {
			filter["$or"] = ors
		}
	}
	for field, value := range req.Filters {
		filter[field] = bson.M{"$in": filterCandidates(field, value)}
	}
	return filter
}

// GetData implements engines.TableBrowser
func (s *Service) GetData(ctx context.Context, server *models.Server, db *models.DatabaseHandle, req models.DataRequest) (*models.DataPage, error) {
	columns, err := s.GetColumns(ctx, server, db, req.Table)
	if err != nil {
		return nil, err
	}
	if err := engines.CheckFilters(columns, req.Filters); err != nil {
		return nil, err
	}

	direction := 1
	if validation.NormalizeOrderDir(req.OrderDir) == "desc" {
		direction = -1
	}
	v, err := s.eval(ctx, server, db, scriptData, bson.M{
		"collection": req.Table,
		"filter":     buildFilter(columns, req),
		"sort":       bson.M{engines.ResolveOrderBy(columns, req.OrderBy): direction},
		"skip":       req.Offset(),
		"limit":      req.PerPage,
	})
	if err != nil {
		return nil, err
	}

	result := asMap(v)
	var total int64
	if t := engines.Int64(result["total"]); t != nil {
		total = *t
	}
	rows := make([]map[string]any, 0)
	for _, doc := range asSlice(result["rows"]) {
		rows = append(rows, asMap(doc))
	}
	return &models.DataPage{
		Columns:    columns,
		Rows:       rows,
		Pagination: models.NewPagination(total, req.Page, req.PerPage),
	}, nil
}

// document validates field names and converts values for storage
func document(data map[string]any) (bson.M, error) {
	if len(data) == 0 {
		return nil, apperrors.Invalid("no field values provided")
	}
	doc := bson.M{}
	for field, value := range data {
		if field != "_id" && !validation.IsValidFieldPath(field) {
			return nil, apperrors.Invalid("invalid field name %q", field)
		}
		doc[field] = documentValue(field, value)
	}
	return doc, nil
}

var primaryKeyColumns = []models.ColumnDescriptor{{Name: "_id", PrimaryKey: true}}

func keyFilter(primaryKey map[string]any) (bson.M, error) {
	if err := engines.CheckPrimaryKey(primaryKeyColumns, primaryKey); err != nil {
		return nil, err
	}
	return bson.M{"_id": documentValue("_id", primaryKey["_id"])}, nil
}

// CreateRow implements engines.RowEditor
func (s *Service) CreateRow(ctx context.Context, server *models.Server, db *models.DatabaseHandle, collection string, data map[string]any) error {
	doc, err := document(data)
	if err != nil {
		return err
	}
	_, err = s.eval(ctx, server, db, scriptInsert, bson.M{"collection": collection, "doc": doc})
	return err
}

// UpdateRow implements engines.RowEditor
func (s *Service) UpdateRow(ctx context.Context, server *models.Server, db *models.DatabaseHandle, collection string, primaryKey, data map[string]any) error {
	filter, err := keyFilter(primaryKey)
	if err != nil {
		return err
	}
	fields := make(map[string]any, len(data))
	for k, v := range data {
		if k != "_id" {
			fields[k] = v
		}
	}
	doc, err := document(fields)
	if err != nil {
		return err
	}

	v, err := s.eval(ctx, server, db, scriptUpdate, bson.M{"collection": collection, "filter": filter, "doc": doc})
	if err != nil {
		return err
	}
	if n := engines.Int64(asMap(v)["matched"]); n == nil || *n == 0 {
		return fmt.Errorf("no document matches the given _id")
	}
	return nil
}

// DeleteRow implements engines.RowEditor
func (s *Service) DeleteRow(ctx context.Context, server *models.Server, db *models.DatabaseHandle, collection string, primaryKey map[string]any) error {
	filter, err := keyFilter(primaryKey)
	if err != nil {
		return err
	}
	v, err := s.eval(ctx, server, db, scriptDelete, bson.M{"collection": collection, "filter": filter})
	if err != nil {
		return err
	}
	if n := engines.Int64(asMap(v)["deleted"]); n == nil || *n == 0 {
		return fmt.Errorf("no document matches the given _id")
	}
	return nil
}

// ExecuteQuery implements engines.QueryExecutor. The query is a single mongosh
// expression such as db.users.find({active: true}).
func (s *Service) ExecuteQuery(ctx context.Context, server *models.Server, db *models.DatabaseHandle, query string) (*models.QueryResult, error) {
	expr := strings.TrimRight(strings.TrimSpace(query), "; \n\t")
	body := "let r = (\n" + expr + "\n);\nif (r && typeof r.toArray === 'function') { r = r.toArray(); }"

	v, err := s.eval(ctx, server, db, body, nil)
	if err != nil {
		return nil, err
	}
	return queryResult(v), nil
}

// queryResult shapes documents into columns and rows; anything else becomes a single value
func queryResult(v any) *models.QueryResult {
	var docs []any
	switch val := v.(type) {
	case []any:
		docs = val
	case map[string]any:
		docs = []any{val}
	default:
		return &models.QueryResult{Columns: []string{"result"}, Rows: [][]any{{val}}, RowCount: 1}
	}

	for _, d := range docs {
		if _, ok := d.(map[string]any); !ok {
			rows := make([][]any, len(docs))
			for i, x := range docs {
				rows[i] = []any{x}
			}
			return &models.QueryResult{Columns: []string{"result"}, Rows: rows, RowCount: len(rows)}
		}
	}

	columns := orderedKeys(docs)
	result := &models.QueryResult{Columns: columns, Rows: make([][]any, 0, len(docs))}
	if result.Columns == nil {
		result.Columns = []string{}
	}
	for _, d := range docs {
		m := asMap(d)
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = m[c]
		}
		result.Rows = append(result.Rows, row)
	}
	result.RowCount = len(result.Rows)
	return result
}

// ListUsers implements engines.UserManager
func (s *Service) ListUsers(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.UserDescriptor, error) {
	v, err := s.eval(ctx, server, db, scriptUsers, nil)
	if err != nil {
		return nil, err
	}

	var users []models.UserDescriptor
	for _, item := range asSlice(v) {
		u := asMap(item)
		name := str(u["name"])
		var roles []string
		for _, r := range asSlice(u["roles"]) {
			roles = append(roles, str(r))
		}
		users = append(users, models.UserDescriptor{
			Name:       name,
			Attributes: roles,
			Protected:  engines.IsProtected(s, name) || name == db.Credentials.AdminUser,
		})
	}
	return users, nil
}

// CreateUser implements engines.UserManager with readWrite on the handle's database
func (s *Service) CreateUser(ctx context.Context, server *models.Server, db *models.DatabaseHandle, username, password string) error {
	_, err := s.eval(ctx, server, db, scriptCreateUser, bson.M{
		"user":  username,
		"pwd":   password,
		"roles": bson.A{bson.M{"role": "readWrite", "db": database(db)}},
	})
	return err
}

// DeleteUser implements engines.UserManager
func (s *Service) DeleteUser(ctx context.Context, server *models.Server, db *models.DatabaseHandle, username string) error {
	if engines.IsProtected(s, username) {
		return engines.ProtectedError(username)
	}
	v, err := s.eval(ctx, server, db, scriptDropUser, bson.M{"user": username})
	if err != nil {
		return err
	}
	if n := engines.Int64(asMap(v)["ok"]); n == nil || *n == 0 {
		return fmt.Errorf("user %q does not exist", username)
	}
	return nil
}

// GetActiveConnections implements engines.ConnectionManager
func (s *Service) GetActiveConnections(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.Connection, error) {
	v, err := s.eval(ctx, server, db, scriptCurrentOp, nil)
	if err != nil {
		return nil, err
	}

	var conns []models.Connection
	for _, item := range asSlice(v) {
		op := asMap(item)
		conns = append(conns, models.Connection{
			ID:       str(op["id"]),
			User:     str(op["user"]),
			Database: str(op["database"]),
			Client:   str(op["client"]),
			State:    str(op["state"]),
			Query:    str(op["query"]),
			Duration: str(op["duration"]),
		})
	}
	return conns, nil
}

// KillConnection implements engines.ConnectionManager. id is an opid, optionally shard-prefixed.
func (s *Service) KillConnection(ctx context.Context, server *models.Server, db *models.DatabaseHandle, id string) error {
	if !opIDRe.MatchString(id) {
		return engines.InvalidConnectionID(id)
	}
	var opid any = id
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		opid = n
	}
	_, err := s.eval(ctx, server, db, scriptKillOp, bson.M{"opid": opid})
	return err
}

// ListIndexes implements engines.DocumentStore
func (s *Service) ListIndexes(ctx context.Context, server *models.Server, db *models.DatabaseHandle, collection string) ([]map[string]any, error) {
	v, err := s.eval(ctx, server, db, scriptIndexes, bson.M{"collection": collection})
	if err != nil {
		return nil, err
	}
	indexes := make([]map[string]any, 0)
	for _, item := range asSlice(v) {
		indexes = append(indexes, asMap(item))
	}
	return indexes, nil
}

// CreateIndex implements engines.DocumentStore and returns the index name
func (s *Service) CreateIndex(ctx context.Context, server *models.Server, db *models.DatabaseHandle, collection string, spec engines.IndexSpec) (string, error) {
	if len(spec.Fields) == 0 {
		return "", apperrors.Invalid("an index needs at least one field")
	}
	keys := bson.D{}
	for _, f := range spec.Fields {
		if !validation.IsValidFieldPath(f.Field) && f.Field != "_id" {
			return "", apperrors.Invalid("invalid index field %q", f.Field)
		}
		if f.Direction != 1 && f.Direction != -1 {
			return "", apperrors.Invalid("index direction must be 1 or -1")
		}
		keys = append(keys, bson.E{Key: f.Field, Value: f.Direction})
	}
	options := bson.M{"unique": spec.Unique}
	if spec.Name != "" {
		if !validation.IsValidTableName(spec.Name) {
			return "", apperrors.Invalid("invalid index name %q", spec.Name)
		}
		options["name"] = spec.Name
	}

	v, err := s.eval(ctx, server, db, scriptCreateIndex, bson.M{"collection": collection, "keys": keys, "options": options})
	if err != nil {
		return "", err
	}
	return str(v), nil
}

// ReplicaSetStatus implements engines.DocumentStore. A standalone server reports ok: 0.
func (s *Service) ReplicaSetStatus(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (map[string]any, error) {
	v, err := s.eval(ctx, server, db, scriptReplicaSet, nil)
	if err != nil {
		return nil, err
	}
	return asMap(v), nil
}

// GetSettings implements engines.SettingsReader with the storage configuration
func (s *Service) GetSettings(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (map[string]any, error) {
	v, err := s.eval(ctx, server, db, scriptSettings, nil)
	if err != nil {
		return nil, err
	}
	return asMap(v), nil
}
