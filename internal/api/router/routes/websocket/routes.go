package websocket

import (
	"DBAdminDO/internal/api/middleware"
	"DBAdminDO/internal/gateway"
	"DBAdminDO/internal/websocket"

	"github.com/gin-gonic/gin"
)

// RegisterWebSocketRoutes registers the websocket routes
func RegisterWebSocketRoutes(router *gin.Engine, streamer *websocket.Streamer) {
	// Live metrics for one database, authorized like every other read
	router.GET("/api/databases/:uuid/metrics/stream", func(c *gin.Context) {
		streamer.ServeMetrics(c, gateway.Request{
			Caller: middleware.GetCaller(c),
			UUID:   c.Param("uuid"),
		})
	})
}
