package middleware

import (
	"net/http"
	"strings"

	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/jwt"
	"DBAdminDO/internal/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CallerKey is the gin context key holding the authenticated *models.Caller
const CallerKey = "caller"

// excludedPaths never require a token
var excludedPaths = map[string]bool{
	"/":       true,
	"/health": true,
}

// JWTAuthMiddleware validates the bearer token and stores the caller it carries
func JWTAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		currentPath := c.Request.URL.Path
		if excludedPaths[currentPath] {
			c.Next()
			return
		}

		token := ""
		// Browsers cannot set headers on a websocket handshake
		if c.Request.Header.Get("Upgrade") == "websocket" {
			token = c.Query("token")
		}
		if token == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				return
			}
			token = parts[1]
		}

		claims, err := jwt.ValidateToken(token, jwtSecret)
		if err != nil {
			logger.Warn("Invalid JWT token",
				logger.Err(err),
				logger.String("path", currentPath),
				logger.String("request_id", GetRequestID(c)))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		caller := claims.Caller()
		c.Set(CallerKey, caller)
		c.Set("username", caller.Username)
		c.Next()
	}
}

// StaticCaller authenticates every request as caller. Used when auth is disabled.
func StaticCaller(caller *models.Caller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(CallerKey, caller)
		c.Set("username", caller.Username)
		c.Next()
	}
}

// GetCaller returns the caller stored by the auth middleware, or nil
func GetCaller(c *gin.Context) *models.Caller {
	v, ok := c.Get(CallerKey)
	if !ok {
		return nil
	}
	caller, _ := v.(*models.Caller)
	return caller
}
