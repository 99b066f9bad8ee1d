package middleware

import (
	"time"

	"DBAdminDO/internal/pkg/config"
	"DBAdminDO/internal/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID reuses a well-formed incoming request id or assigns a new one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger logs every completed HTTP request
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Streams stay open for minutes, their lifetime is logged by the stream itself
		if c.Request.Header.Get("Upgrade") == "websocket" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		logger.Info("HTTP Request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.String("client_ip", c.ClientIP()),
			logger.String("request_id", GetRequestID(c)),
			logger.Duration("latency", time.Since(start)),
		)
	}
}

// CORS builds the cross-origin policy from the API configuration
func CORS(cfg *config.API) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowOrigins:  cfg.CORS.AllowedOrigins,
		AllowMethods:  cfg.CORS.AllowedMethods,
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range cfg.CORS.AllowedOrigins {
		if origin == "*" {
			corsCfg.AllowOrigins = nil
			corsCfg.AllowAllOrigins = true
			break
		}
	}
	return cors.New(corsCfg)
}
