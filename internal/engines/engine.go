// Package engines defines the administrative capabilities a database engine
// family can offer. Each family lives in its own sub-package and implements
// Service plus whichever optional capability interfaces it supports. The
// gateway discovers optional capabilities with a type assertion; a missing
// capability is reported as unsupported, not as an error.
//
// Every call is stateless: it builds one or more shell command lines, runs
// them through a transport.Transport and parses stdout. No engine keeps a
// connection open between calls.
package engines

import (
	"context"

	"DBAdminDO/internal/models"
)

// Service is implemented by every engine family
type Service interface {
	// Family names the implementation, e.g. "postgresql" or "redis"
	Family() string
	CollectMetrics(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (*models.MetricsSample, error)
}

// TableBrowser lists tables, their columns and paginated data
type TableBrowser interface {
	GetTables(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.TableDescriptor, error)
	GetColumns(ctx context.Context, server *models.Server, db *models.DatabaseHandle, table string) ([]models.ColumnDescriptor, error)
	GetData(ctx context.Context, server *models.Server, db *models.DatabaseHandle, req models.DataRequest) (*models.DataPage, error)
}

// RowEditor writes single rows addressed by their primary key
type RowEditor interface {
	CreateRow(ctx context.Context, server *models.Server, db *models.DatabaseHandle, table string, data map[string]any) error
	UpdateRow(ctx context.Context, server *models.Server, db *models.DatabaseHandle, table string, primaryKey, data map[string]any) error
	DeleteRow(ctx context.Context, server *models.Server, db *models.DatabaseHandle, table string, primaryKey map[string]any) error
}

// QueryExecutor runs ad-hoc query text. Callers apply the destructive-statement
// blocklist before calling.
type QueryExecutor interface {
	ExecuteQuery(ctx context.Context, server *models.Server, db *models.DatabaseHandle, query string) (*models.QueryResult, error)
}

// UserManager manages logins. ProtectedUsers can never be deleted.
type UserManager interface {
	ListUsers(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.UserDescriptor, error)
	CreateUser(ctx context.Context, server *models.Server, db *models.DatabaseHandle, username, password string) error
	DeleteUser(ctx context.Context, server *models.Server, db *models.DatabaseHandle, username string) error
	ProtectedUsers() []string
}

// ConnectionManager lists and terminates client sessions
type ConnectionManager interface {
	GetActiveConnections(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.Connection, error)
	KillConnection(ctx context.Context, server *models.Server, db *models.DatabaseHandle, id string) error
}

// SettingsReader returns an engine configuration snapshot
type SettingsReader interface {
	GetSettings(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (map[string]any, error)
}

// Extension is an installable Postgres extension
type Extension struct {
	Name             string `json:"name"`
	DefaultVersion   string `json:"default_version"`
	InstalledVersion string `json:"installed_version,omitempty"`
	Enabled          bool   `json:"enabled"`
	Comment          string `json:"comment,omitempty"`
}

// ExtensionManager toggles extensions
type ExtensionManager interface {
	ListExtensions(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]Extension, error)
	SetExtension(ctx context.Context, server *models.Server, db *models.DatabaseHandle, name string, enabled bool) error
}

// Maintainer runs vacuum/analyze style maintenance. An empty table means the whole database.
type Maintainer interface {
	RunMaintenance(ctx context.Context, server *models.Server, db *models.DatabaseHandle, operation, table string) (string, error)
}

// IndexField is one key of an index definition
type IndexField struct {
	Field     string `json:"field"`
	Direction int    `json:"direction"` // 1 or -1
}

// IndexSpec describes an index to create
type IndexSpec struct {
	Fields []IndexField `json:"fields"`
	Name   string       `json:"name,omitempty"`
	Unique bool         `json:"unique"`
}

// DocumentStore exposes collection-level administration
type DocumentStore interface {
	ListCollections(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]models.TableDescriptor, error)
	ListIndexes(ctx context.Context, server *models.Server, db *models.DatabaseHandle, collection string) ([]map[string]any, error)
	CreateIndex(ctx context.Context, server *models.Server, db *models.DatabaseHandle, collection string, spec IndexSpec) (string, error)
	ReplicaSetStatus(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (map[string]any, error)
}

// FlushScope selects what a key-value flush removes
type FlushScope string

const (
	FlushDB  FlushScope = "db"
	FlushAll FlushScope = "all"
)

// KeyValueStore exposes key-level administration
type KeyValueStore interface {
	ListKeys(ctx context.Context, server *models.Server, db *models.DatabaseHandle, pattern string, limit int) ([]models.KeyInfo, error)
	GetKey(ctx context.Context, server *models.Server, db *models.DatabaseHandle, key string) (*models.KeyInfo, error)
	SetKey(ctx context.Context, server *models.Server, db *models.DatabaseHandle, key, value string, ttlSeconds int64) error
	DeleteKey(ctx context.Context, server *models.Server, db *models.DatabaseHandle, key string) (bool, error)
	MemoryInfo(ctx context.Context, server *models.Server, db *models.DatabaseHandle) (map[string]any, error)
	Flush(ctx context.Context, server *models.Server, db *models.DatabaseHandle, scope FlushScope) error
}

// AnalyticsInsights exposes column-store internals
type AnalyticsInsights interface {
	QueryLog(ctx context.Context, server *models.Server, db *models.DatabaseHandle, limit int) ([]map[string]any, error)
	MergeStatus(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]map[string]any, error)
	ReplicationStatus(ctx context.Context, server *models.Server, db *models.DatabaseHandle) ([]map[string]any, error)
}
