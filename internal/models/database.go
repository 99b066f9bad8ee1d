package models

import "strings"

// EngineType identifies the database product running inside a container
type EngineType string

const (
	EnginePostgreSQL EngineType = "postgresql"
	EngineMySQL      EngineType = "mysql"
	EngineMariaDB    EngineType = "mariadb"
	EngineMongoDB    EngineType = "mongodb"
	EngineRedis      EngineType = "redis"
	EngineKeyDB      EngineType = "keydb"
	EngineDragonfly  EngineType = "dragonfly"
	EngineClickHouse EngineType = "clickhouse"
)

// ProbeOrder is the fixed order in which engine catalogs are searched for a uuid.
// The first catalog that yields a record wins.
var ProbeOrder = []EngineType{
	EnginePostgreSQL,
	EngineMySQL,
	EngineMariaDB,
	EngineMongoDB,
	EngineRedis,
	EngineKeyDB,
	EngineDragonfly,
	EngineClickHouse,
}

// ParseEngineType converts a stored engine name into an EngineType
func ParseEngineType(s string) (EngineType, bool) {
	t := EngineType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ProbeOrder {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Credentials holds the admin credentials of a managed database.
// Which fields are populated depends on the engine.
type Credentials struct {
	AdminUser     string `json:"-"`
	AdminPassword string `json:"-"`
	Database      string `json:"database,omitempty"` // Default database / keyspace
}

// Status is the last known container state of a managed database
type Status struct {
	State  string `json:"state"`  // running, exited, restarting...
	Health string `json:"health"` // healthy, unhealthy, unknown
}

// DatabaseHandle is the team-scoped record of one managed database instance
type DatabaseHandle struct {
	ID          int64       `json:"id"`
	UUID        string      `json:"uuid"` // Also the container name on the host
	Name        string      `json:"name"`
	Engine      EngineType  `json:"engine"`
	TeamID      int64       `json:"team_id"`
	Credentials Credentials `json:"credentials"`
	Server      *Server     `json:"server,omitempty"`
	Status      Status      `json:"status"`
}

// ContainerName returns the docker container that runs this database
func (h *DatabaseHandle) ContainerName() string {
	return h.UUID
}

// Server is the remote host a database container runs on
type Server struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	PrivateKey string `json:"-"`
	Reachable  bool   `json:"reachable"`
	Functional bool   `json:"functional"` // No remote command is issued unless true
}

// Caller is the authenticated identity performing a request
type Caller struct {
	Username string `json:"username"`
	TeamID   int64  `json:"team_id"`
	Role     string `json:"role"`
}
