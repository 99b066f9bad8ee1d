package models

import "time"

// MetricsSample is a point-in-time resource and engine snapshot.
// Nil pointers mean the value could not be collected.
type MetricsSample struct {
	CPUPercent       *float64       `json:"cpu_percent"`
	MemoryUsedBytes  *int64         `json:"memory_used_bytes"`
	MemoryLimitBytes *int64         `json:"memory_limit_bytes"`
	MemoryPercent    *float64       `json:"memory_percent"`
	Connections      *int64         `json:"connections"`
	Extras           map[string]any `json:"extras"`
	CollectedAt      time.Time      `json:"collected_at"`
}

// SetExtra records an engine-specific value, skipping empty ones
func (m *MetricsSample) SetExtra(key string, value any) {
	if value == nil {
		return
	}
	if m.Extras == nil {
		m.Extras = make(map[string]any)
	}
	m.Extras[key] = value
}

// QueryResult is the tabular output of an ad-hoc query
type QueryResult struct {
	Columns       []string `json:"columns"`
	Rows          [][]any  `json:"rows"`
	RowCount      int      `json:"row_count"`
	ExecutionTime float64  `json:"execution_time"` // Seconds, measured around the remote call
}

// LogEntry levels
const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
	LevelFatal   = "FATAL"
	LevelPanic   = "PANIC"
	LevelDebug   = "DEBUG"
	LevelNotice  = "NOTICE"
)

// LogEntry is one parsed container log line
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// TableDescriptor describes a table or collection
type TableDescriptor struct {
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`   // table, view, collection...
	Schema string `json:"schema,omitempty"` // Postgres schema or ClickHouse database
	Rows   *int64 `json:"rows,omitempty"`   // Estimated row count when cheaply available
}

// ColumnDescriptor describes a column or document field
type ColumnDescriptor struct {
	Name       string  `json:"name"`
	Type       string  `json:"type,omitempty"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default,omitempty"`
	PrimaryKey bool    `json:"primary_key"`
}

// UserDescriptor describes a database login
type UserDescriptor struct {
	Name       string   `json:"name"`
	Attributes []string `json:"attributes,omitempty"`
	Protected  bool     `json:"protected"`
}

// Connection describes a live client session
type Connection struct {
	ID       string `json:"id"` // pid / thread id / opid / client id
	User     string `json:"user,omitempty"`
	Database string `json:"database,omitempty"`
	Client   string `json:"client,omitempty"`
	State    string `json:"state,omitempty"`
	Query    string `json:"query,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// KeyInfo describes a key in a key-value engine
type KeyInfo struct {
	Key   string `json:"key"`
	Type  string `json:"type,omitempty"`
	TTL   int64  `json:"ttl"` // -1 no expiry, -2 missing
	Value any    `json:"value,omitempty"`
}
