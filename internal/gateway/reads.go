package gateway

import (
	"context"
	"strings"

	"DBAdminDO/internal/engines"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/apperrors"
	"DBAdminDO/internal/validation"
)

// DataQuery is the caller's view of a table data request before validation
type DataQuery struct {
	Table    string
	Page     int
	PerPage  int
	Search   string
	OrderBy  string
	OrderDir string
	Filters  map[string]string
}

// Metrics collects a point-in-time metrics sample
func (g *Gateway) Metrics(ctx context.Context, req Request, timeRange string) Result {
	return g.read(ctx, req, "metrics", "Failed to collect metrics", func(t *target) (Payload, error) {
		sample, err := t.service.CollectMetrics(ctx, t.server, t.handle)
		if err != nil {
			return nil, err
		}
		return Payload{
			"engine":     t.handle.Engine,
			"status":     t.handle.Status,
			"time_range": TimeRange(timeRange),
			"metrics":    sample,
		}, nil
	})
}

// Logs returns the most recent parsed container log entries
func (g *Gateway) Logs(ctx context.Context, req Request, lines int) Result {
	lines = LogLines(lines)
	return g.read(ctx, req, "logs", "Failed to fetch logs", func(t *target) (Payload, error) {
		out, err := g.deps.Runner.Run(ctx, t.server, []string{engines.LogsCommand(t.handle.ContainerName(), lines)})
		if err != nil {
			return nil, err
		}
		entries := g.parser.Tail(out, g.limits.MaxLogEntries)
		return Payload{"logs": entries, "lines": lines, "count": len(entries)}, nil
	})
}

// Tables lists tables or collections
func (g *Gateway) Tables(ctx context.Context, req Request) Result {
	return g.read(ctx, req, "tables", "Failed to list tables", func(t *target) (Payload, error) {
		browser, ok := capability[engines.TableBrowser](t)
		if !ok {
			return nil, unsupportedOperation("Table browsing", t)
		}
		tables, err := browser.GetTables(ctx, t.server, t.handle)
		if err != nil {
			return nil, err
		}
		return Payload{"tables": tables}, nil
	})
}

// Columns describes the columns of table
func (g *Gateway) Columns(ctx context.Context, req Request, table string) Result {
	return g.read(ctx, req, "columns", "Failed to describe table", func(t *target) (Payload, error) {
		if err := checkTable(table); err != nil {
			return nil, err
		}
		browser, ok := capability[engines.TableBrowser](t)
		if !ok {
			return nil, unsupportedOperation("Table browsing", t)
		}
		columns, err := browser.GetColumns(ctx, t.server, t.handle, table)
		if err != nil {
			return nil, err
		}
		return Payload{"table": table, "columns": columns}, nil
	})
}

// Data returns one page of table rows
func (g *Gateway) Data(ctx context.Context, req Request, q DataQuery) Result {
	return g.read(ctx, req, "data", "Failed to fetch table data", func(t *target) (Payload, error) {
		dataReq, err := dataRequest(q)
		if err != nil {
			return nil, err
		}
		browser, ok := capability[engines.TableBrowser](t)
		if !ok {
			return nil, unsupportedOperation("Table browsing", t)
		}
		page, err := browser.GetData(ctx, t.server, t.handle, dataReq)
		if err != nil {
			return nil, err
		}
		return Payload{
			"table":      q.Table,
			"columns":    page.Columns,
			"rows":       page.Rows,
			"pagination": page.Pagination,
		}, nil
	})
}

// dataRequest validates q and applies the paging bounds
func dataRequest(q DataQuery) (models.DataRequest, error) {
	if err := checkTable(q.Table); err != nil {
		return models.DataRequest{}, err
	}
	search, err := validation.CheckSearch(q.Search)
	if err != nil {
		return models.DataRequest{}, err
	}
	if q.OrderBy != "" && !validation.IsValidFieldPath(q.OrderBy) {
		return models.DataRequest{}, apperrors.Invalid("invalid order column: %s", q.OrderBy)
	}
	for name := range q.Filters {
		if !validation.IsValidFieldPath(name) {
			return models.DataRequest{}, apperrors.Invalid("invalid filter column: %s", name)
		}
	}
	return models.DataRequest{
		Table:    q.Table,
		Page:     Page(q.Page),
		PerPage:  PerPage(q.PerPage),
		Search:   search,
		OrderBy:  q.OrderBy,
		OrderDir: validation.NormalizeOrderDir(q.OrderDir),
		Filters:  q.Filters,
	}, nil
}

// Users lists logins. The handle's own admin user is always reported protected.
func (g *Gateway) Users(ctx context.Context, req Request) Result {
	return g.read(ctx, req, "users", "Failed to list users", func(t *target) (Payload, error) {
		manager, ok := capability[engines.UserManager](t)
		if !ok {
			return nil, unsupportedOperation("User management", t)
		}
		users, err := manager.ListUsers(ctx, t.server, t.handle)
		if err != nil {
			return nil, err
		}
		for i := range users {
			if isAdminUser(t.handle, users[i].Name) {
				users[i].Protected = true
			}
		}
		return Payload{"users": users}, nil
	})
}

// Connections lists live client sessions
func (g *Gateway) Connections(ctx context.Context, req Request) Result {
	return g.read(ctx, req, "connections", "Failed to list connections", func(t *target) (Payload, error) {
		manager, ok := capability[engines.ConnectionManager](t)
		if !ok {
			return nil, unsupportedOperation("Connection management", t)
		}
		conns, err := manager.GetActiveConnections(ctx, t.server, t.handle)
		if err != nil {
			return nil, err
		}
		return Payload{"connections": conns, "count": len(conns)}, nil
	})
}

// Extensions lists toggleable extensions
func (g *Gateway) Extensions(ctx context.Context, req Request) Result {
	return g.read(ctx, req, "extensions", "Failed to list extensions", func(t *target) (Payload, error) {
		manager, ok := capability[engines.ExtensionManager](t)
		if !ok {
			return nil, unsupportedOperation("Extensions", t)
		}
		exts, err := manager.ListExtensions(ctx, t.server, t.handle)
		if err != nil {
			return nil, err
		}
		return Payload{"extensions": exts}, nil
	})
}

// Settings returns an engine configuration snapshot
func (g *Gateway) Settings(ctx context.Context, req Request) Result {
	return g.read(ctx, req, "settings", "Failed to read settings", func(t *target) (Payload, error) {
		reader, ok := capability[engines.SettingsReader](t)
		if !ok {
			return nil, unsupportedOperation("Settings", t)
		}
		settings, err := reader.GetSettings(ctx, t.server, t.handle)
		if err != nil {
			return nil, err
		}
		return Payload{"settings": settings}, nil
	})
}

// Collections lists document collections
func (g *Gateway) Collections(ctx context.Context, req Request) Result {
	return g.read(ctx, req, "collections", "Failed to list collections", func(t *target) (Payload, error) {
		store, ok := capability[engines.DocumentStore](t)
		if !ok {
			return nil, unsupportedOperation("Collections", t)
		}
		collections, err := store.ListCollections(ctx, t.server, t.handle)
		if err != nil {
			return nil, err
		}
		return Payload{"collections": collections}, nil
	})
}

// Indexes lists the indexes of a collection
func (g *Gateway) Indexes(ctx context.Context, req Request, collection string) Result {
	return g.read(ctx, req, "indexes", "Failed to list indexes", func(t *target) (Payload, error) {
		if err := checkTable(collection); err != nil {
			return nil, err
		}
		store, ok := capability[engines.DocumentStore](t)
		if !ok {
			return nil, unsupportedOperation("Indexes", t)
		}
		indexes, err := store.ListIndexes(ctx, t.server, t.handle, collection)
		if err != nil {
			return nil, err
		}
		return Payload{"collection": collection, "indexes": indexes}, nil
	})
}

// ReplicaStatus reports replica set membership
func (g *Gateway) ReplicaStatus(ctx context.Context, req Request) Result {
	return g.read(ctx, req, "replica_status", "Failed to read replica set status", func(t *target) (Payload, error) {
		store, ok := capability[engines.DocumentStore](t)
		if !ok {
			return nil, unsupportedOperation("Replica set status", t)
		}
		status, err := store.ReplicaSetStatus(ctx, t.server, t.handle)
		if err != nil {
			return nil, err
		}
		return Payload{"replica_set": status}, nil
	})
}

// Keys lists keys matching pattern
func (g *Gateway) Keys(ctx context.Context, req Request, pattern string, n int) Result {
	if strings.TrimSpace(pattern) == "" {
		pattern = "*"
	}
	n = limit(n, DefaultKeyLimit, g.limits.KeyListLimit)
	return g.read(ctx, req, "keys", "Failed to list keys", func(t *target) (Payload, error) {
		if !validation.IsValidRedisPattern(pattern) {
			return nil, apperrors.Invalid("invalid key pattern: %s", pattern)
		}
		store, ok := capability[engines.KeyValueStore](t)
		if !ok {
			return nil, unsupportedOperation("Key browsing", t)
		}
		keys, err := store.ListKeys(ctx, t.server, t.handle, pattern, n)
		if err != nil {
			return nil, err
		}
		return Payload{"keys": keys, "pattern": pattern, "limit": n, "count": len(keys)}, nil
	})
}

// Key returns one key with its value
func (g *Gateway) Key(ctx context.Context, req Request, key string) Result {
	return g.read(ctx, req, "key", "Failed to read key", func(t *target) (Payload, error) {
		if !validation.IsValidKeyName(key) {
			return nil, apperrors.Invalid("invalid key name")
		}
		store, ok := capability[engines.KeyValueStore](t)
		if !ok {
			return nil, unsupportedOperation("Key browsing", t)
		}
		info, err := store.GetKey(ctx, t.server, t.handle, key)
		if err != nil {
			return nil, err
		}
		return Payload{"key": info}, nil
	})
}

// Memory reports key-value memory usage
func (g *Gateway) Memory(ctx context.Context, req Request) Result {
	return g.read(ctx, req, "memory", "Failed to read memory info", func(t *target) (Payload, error) {
		store, ok := capability[engines.KeyValueStore](t)
		if !ok {
			return nil, unsupportedOperation("Memory info", t)
		}
		memory, err := store.MemoryInfo(ctx, t.server, t.handle)
		if err != nil {
			return nil, err
		}
		return Payload{"memory": memory}, nil
	})
}

// QueryLog lists recent queries
func (g *Gateway) QueryLog(ctx context.Context, req Request, n int) Result {
	n = limit(n, DefaultQueryLogLimit, g.limits.QueryLogLimit)
	return g.read(ctx, req, "query_log", "Failed to read query log", func(t *target) (Payload, error) {
		insights, ok := capability[engines.AnalyticsInsights](t)
		if !ok {
			return nil, unsupportedOperation("Query log", t)
		}
		entries, err := insights.QueryLog(ctx, t.server, t.handle, n)
		if err != nil {
			return nil, err
		}
		return Payload{"queries": entries, "limit": n}, nil
	})
}

// Merges lists running merges
func (g *Gateway) Merges(ctx context.Context, req Request) Result {
	return g.read(ctx, req, "merges", "Failed to read merge status", func(t *target) (Payload, error) {
		insights, ok := capability[engines.AnalyticsInsights](t)
		if !ok {
			return nil, unsupportedOperation("Merge status", t)
		}
		merges, err := insights.MergeStatus(ctx, t.server, t.handle)
		if err != nil {
			return nil, err
		}
		return Payload{"merges": merges}, nil
	})
}

// Replication lists replicated table status
func (g *Gateway) Replication(ctx context.Context, req Request) Result {
	return g.read(ctx, req, "replication", "Failed to read replication status", func(t *target) (Payload, error) {
		insights, ok := capability[engines.AnalyticsInsights](t)
		if !ok {
			return nil, unsupportedOperation("Replication status", t)
		}
		replicas, err := insights.ReplicationStatus(ctx, t.server, t.handle)
		if err != nil {
			return nil, err
		}
		return Payload{"replicas": replicas}, nil
	})
}

func checkTable(name string) error {
	if !validation.IsValidTableName(name) {
		return apperrors.Invalid("invalid table name: %s", name)
	}
	return nil
}

func isAdminUser(handle *models.DatabaseHandle, username string) bool {
	admin := handle.Credentials.AdminUser
	return admin != "" && strings.EqualFold(admin, username)
}
