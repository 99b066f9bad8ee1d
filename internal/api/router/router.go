package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"DBAdminDO/internal/api/handlers"
	"DBAdminDO/internal/api/middleware"
	"DBAdminDO/internal/api/router/routes/database"
	wsroutes "DBAdminDO/internal/api/router/routes/websocket"
	"DBAdminDO/internal/gateway"
	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/config"
	"DBAdminDO/internal/pkg/logger"
	"DBAdminDO/internal/websocket"

	"github.com/gin-gonic/gin"
)

// Router encapsulates the HTTP router functionality
type Router struct {
	config        *config.Config
	engine        *gin.Engine
	server        *http.Server
	dbHandler     *handlers.DatabaseHandler
	healthHandler *handlers.HealthHandler
	streamer      *websocket.Streamer
}

// New creates a new router instance serving gw
func New(cfg *config.Config, gw *gateway.Gateway, streamer *websocket.Streamer) *Router {
	// Configure gin mode based on config
	if cfg.Logs.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := handlers.RegisterValidators(); err != nil {
		logger.Warn("Failed to register request validators", logger.Err(err))
	}

	return &Router{
		config:        cfg,
		engine:        gin.New(),
		dbHandler:     handlers.NewDatabaseHandler(gw),
		healthHandler: handlers.NewHealthHandler(),
		streamer:      streamer,
	}
}

// Initialize sets up the router with middlewares and routes
func (r *Router) Initialize() *Router {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.RequestLogger())
	if r.config.API.CORS.Enabled {
		r.engine.Use(middleware.CORS(&r.config.API))
	}
	r.engine.Use(r.authMiddleware())

	r.registerAPIRoutes()
	r.registerWebSocketRoutes()
	r.registerRootAPIEndpoint()

	for _, route := range r.engine.Routes() {
		logger.Debug("Registered route",
			logger.String("method", route.Method),
			logger.String("path", route.Path))
	}

	return r
}

func (r *Router) authMiddleware() gin.HandlerFunc {
	auth := r.config.API.Auth
	if auth.Enabled {
		return middleware.JWTAuthMiddleware(auth.JWTSecret)
	}

	logger.Warn("API authentication disabled, all requests use the static caller",
		logger.String("username", auth.Static.Username),
		logger.Int64("team_id", auth.Static.TeamID),
		logger.String("role", auth.Static.Role))
	return middleware.StaticCaller(&models.Caller{
		Username: auth.Static.Username,
		TeamID:   auth.Static.TeamID,
		Role:     auth.Static.Role,
	})
}

// registerAPIRoutes registers all API-specific routes
func (r *Router) registerAPIRoutes() {
	database.RegisterRoutes(r.engine, r.dbHandler)
}

// registerWebSocketRoutes registers all WebSocket routes
func (r *Router) registerWebSocketRoutes() {
	if r.streamer != nil {
		wsroutes.RegisterWebSocketRoutes(r.engine, r.streamer)
	}
}

// registerRootAPIEndpoint provides unauthenticated liveness endpoints
func (r *Router) registerRootAPIEndpoint() {
	r.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"app":     r.config.AppName + " API",
			"version": "1.0",
		})
	})

	r.engine.GET("/health", r.healthHandler.GetHealth)
}

// Engine returns the underlying gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// ServeHTTP implements the http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}

// Start starts the HTTP server and blocks until it stops
func (r *Router) Start() {
	s := r.config.Server
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    time.Duration(s.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(s.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(s.IdleTimeout) * time.Second,
		MaxHeaderBytes: s.MaxHeaderBytes,
	}
	logger.Info("Starting HTTP server", logger.String("address", addr))

	if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Failed to start HTTP server", logger.Err(err))
	}
}

// Shutdown stops accepting requests and waits for in-flight ones
func (r *Router) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}
