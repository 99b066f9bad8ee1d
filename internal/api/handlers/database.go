package handlers

import (
	"DBAdminDO/internal/gateway"

	"github.com/gin-gonic/gin"
)

// DatabaseHandler exposes gateway operations under /api/databases/:uuid
type DatabaseHandler struct {
	gw *gateway.Gateway
}

// NewDatabaseHandler creates a new database handler
func NewDatabaseHandler(gw *gateway.Gateway) *DatabaseHandler {
	return &DatabaseHandler{gw: gw}
}

// GetMetrics returns a metrics snapshot
func (h *DatabaseHandler) GetMetrics(c *gin.Context) {
	Respond(c, h.gw.Metrics(c.Request.Context(), request(c), c.Query("time_range")))
}

// GetLogs returns recent container log entries
func (h *DatabaseHandler) GetLogs(c *gin.Context) {
	Respond(c, h.gw.Logs(c.Request.Context(), request(c), gateway.Atoi(c.Query("lines"))))
}

// GetTables lists tables
func (h *DatabaseHandler) GetTables(c *gin.Context) {
	Respond(c, h.gw.Tables(c.Request.Context(), request(c)))
}

// GetColumns describes a table
func (h *DatabaseHandler) GetColumns(c *gin.Context) {
	Respond(c, h.gw.Columns(c.Request.Context(), request(c), c.Param("table")))
}

type dataParams struct {
	Page     int    `form:"page"`
	PerPage  int    `form:"per_page"`
	Search   string `form:"search"`
	OrderBy  string `form:"order_by" binding:"omitempty,fieldpath"`
	OrderDir string `form:"order_dir" binding:"omitempty,orderdir"`
}

// GetData returns a page of table rows. Filters arrive as filter[column]=value.
func (h *DatabaseHandler) GetData(c *gin.Context) {
	var p dataParams
	if !h.bindRead(c, "data", &p) {
		return
	}

	Respond(c, h.gw.Data(c.Request.Context(), request(c), gateway.DataQuery{
		Table:    c.Param("table"),
		Page:     p.Page,
		PerPage:  p.PerPage,
		Search:   p.Search,
		OrderBy:  p.OrderBy,
		OrderDir: p.OrderDir,
		Filters:  c.QueryMap("filter"),
	}))
}

// GetUsers lists logins
func (h *DatabaseHandler) GetUsers(c *gin.Context) {
	Respond(c, h.gw.Users(c.Request.Context(), request(c)))
}

// GetConnections lists client sessions
func (h *DatabaseHandler) GetConnections(c *gin.Context) {
	Respond(c, h.gw.Connections(c.Request.Context(), request(c)))
}

// GetExtensions lists extensions
func (h *DatabaseHandler) GetExtensions(c *gin.Context) {
	Respond(c, h.gw.Extensions(c.Request.Context(), request(c)))
}

// GetSettings returns the engine settings snapshot
func (h *DatabaseHandler) GetSettings(c *gin.Context) {
	Respond(c, h.gw.Settings(c.Request.Context(), request(c)))
}

// GetCollections lists collections
func (h *DatabaseHandler) GetCollections(c *gin.Context) {
	Respond(c, h.gw.Collections(c.Request.Context(), request(c)))
}

// GetIndexes lists collection indexes
func (h *DatabaseHandler) GetIndexes(c *gin.Context) {
	Respond(c, h.gw.Indexes(c.Request.Context(), request(c), c.Param("collection")))
}

// GetReplicaStatus reports replica set status
func (h *DatabaseHandler) GetReplicaStatus(c *gin.Context) {
	Respond(c, h.gw.ReplicaStatus(c.Request.Context(), request(c)))
}

// GetKeys lists keys
func (h *DatabaseHandler) GetKeys(c *gin.Context) {
	Respond(c, h.gw.Keys(c.Request.Context(), request(c), c.Query("pattern"), gateway.Atoi(c.Query("limit"))))
}

// GetKey returns one key
func (h *DatabaseHandler) GetKey(c *gin.Context) {
	Respond(c, h.gw.Key(c.Request.Context(), request(c), c.Param("key")))
}

// GetMemory returns memory usage
func (h *DatabaseHandler) GetMemory(c *gin.Context) {
	Respond(c, h.gw.Memory(c.Request.Context(), request(c)))
}

// GetQueryLog lists recent queries
func (h *DatabaseHandler) GetQueryLog(c *gin.Context) {
	Respond(c, h.gw.QueryLog(c.Request.Context(), request(c), gateway.Atoi(c.Query("limit"))))
}

// GetMerges lists running merges
func (h *DatabaseHandler) GetMerges(c *gin.Context) {
	Respond(c, h.gw.Merges(c.Request.Context(), request(c)))
}

// GetReplication lists replicated tables
func (h *DatabaseHandler) GetReplication(c *gin.Context) {
	Respond(c, h.gw.Replication(c.Request.Context(), request(c)))
}
