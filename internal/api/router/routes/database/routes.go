package database

import (
	"DBAdminDO/internal/api/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all database administration routes
func RegisterRoutes(engine *gin.Engine, handler *handlers.DatabaseHandler) {
	group := engine.Group("/api/databases/:uuid")
	RegisterRoutesWithGroup(group, handler)
}

// RegisterRoutesWithGroup registers routes with a pre-configured group
func RegisterRoutesWithGroup(group *gin.RouterGroup, handler *handlers.DatabaseHandler) {
	// Observability
	group.GET("/metrics", handler.GetMetrics)
	group.GET("/logs", handler.GetLogs)
	group.POST("/query", handler.ExecuteQuery)

	// Relational browsing and row edits
	group.GET("/tables", handler.GetTables)
	group.GET("/tables/:table/columns", handler.GetColumns)
	group.GET("/tables/:table/data", handler.GetData)
	group.POST("/tables/:table/rows", handler.CreateRow)
	group.PUT("/tables/:table/rows", handler.UpdateRow)
	group.DELETE("/tables/:table/rows", handler.DeleteRow)

	// Logins and sessions
	group.GET("/users", handler.GetUsers)
	group.POST("/users", handler.CreateUser)
	group.DELETE("/users/:username", handler.DeleteUser)
	group.GET("/connections", handler.GetConnections)
	group.DELETE("/connections/:pid", handler.KillConnection)

	// Postgres
	group.GET("/extensions", handler.GetExtensions)
	group.POST("/extensions/:name", handler.SetExtension)
	group.POST("/maintenance", handler.RunMaintenance)
	group.GET("/settings", handler.GetSettings)

	// MongoDB
	group.GET("/collections", handler.GetCollections)
	group.GET("/collections/:collection/indexes", handler.GetIndexes)
	group.POST("/collections/:collection/indexes", handler.CreateIndex)
	group.GET("/replica-status", handler.GetReplicaStatus)

	// Redis family
	group.GET("/keys", handler.GetKeys)
	group.GET("/keys/:key", handler.GetKey)
	group.PUT("/keys/:key", handler.SetKey)
	group.DELETE("/keys/:key", handler.DeleteKey)
	group.GET("/memory", handler.GetMemory)
	group.POST("/flush", handler.Flush)

	// ClickHouse
	group.GET("/query-log", handler.GetQueryLog)
	group.GET("/merges", handler.GetMerges)
	group.GET("/replication", handler.GetReplication)

	group.POST("/password/regenerate", handler.RegeneratePassword)
}
