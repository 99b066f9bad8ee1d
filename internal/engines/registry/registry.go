// Package registry maps engine types to the service family that administers them.
package registry

import (
	"DBAdminDO/internal/engines"
	"DBAdminDO/internal/engines/clickhouse"
	"DBAdminDO/internal/engines/mongodb"
	"DBAdminDO/internal/engines/mysql"
	"DBAdminDO/internal/engines/postgres"
	"DBAdminDO/internal/engines/redis"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/transport"
)

// Registry resolves a service once per engine type. MySQL and MariaDB share
// one family, as do Redis, KeyDB and Dragonfly.
type Registry struct {
	services map[models.EngineType]engines.Service
}

// New builds services for every known engine type over runner
func New(runner transport.Transport) *Registry {
	return &Registry{
		services: map[models.EngineType]engines.Service{
			models.EnginePostgreSQL: postgres.New(runner),
			models.EngineMySQL:      mysql.New(runner, models.EngineMySQL),
			models.EngineMariaDB:    mysql.New(runner, models.EngineMariaDB),
			models.EngineMongoDB:    mongodb.New(runner),
			models.EngineRedis:      redis.New(runner, models.EngineRedis),
			models.EngineKeyDB:      redis.New(runner, models.EngineKeyDB),
			models.EngineDragonfly:  redis.New(runner, models.EngineDragonfly),
			models.EngineClickHouse: clickhouse.New(runner),
		},
	}
}

// For returns the service for engine, or false when no family handles it
func (r *Registry) For(engine models.EngineType) (engines.Service, bool) {
	svc, ok := r.services[engine]
	return svc, ok
}

// Register replaces the service for engine
func (r *Registry) Register(engine models.EngineType, svc engines.Service) {
	r.services[engine] = svc
}
