package router

import (
	"context"
	"fmt"
	"time"

	"DBAdminDO/internal/authz"
	"DBAdminDO/internal/engines/registry"
	"DBAdminDO/internal/gateway"
	"DBAdminDO/internal/pkg/config"
	"DBAdminDO/internal/pkg/logger"
	"DBAdminDO/internal/repository"
	"DBAdminDO/internal/resolver"
	"DBAdminDO/internal/restart"
	"DBAdminDO/internal/transport"
	"DBAdminDO/internal/websocket"

	"github.com/gin-gonic/gin"
)

const (
	catalogOpenTimeout = 15 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// Builder provides a fluent interface for constructing a router
type Builder struct {
	router *Router

	// Owned resources for lifecycle management
	catalog   *repository.Catalog
	restarter restart.Requester
	streamer  *websocket.Streamer
}

// NewBuilder wires the catalog, transports, engine services and gateway behind a router
func NewBuilder(cfg *config.Config) (*Builder, error) {
	runner, err := transport.NewRouter(&cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), catalogOpenTimeout)
	defer cancel()
	catalog, err := repository.Open(ctx, &cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	logger.Info("Connected to catalog", logger.String("driver", cfg.Catalog.Driver))

	restarter, err := restart.New(&cfg.Restart, runner, time.Duration(cfg.Gateway.RestartTimeout)*time.Second)
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("failed to create restart requester: %w", err)
	}
	logger.Info("Restart requests configured", logger.String("mode", cfg.Restart.Mode))

	repos := catalog.Repositories()
	scoped := make([]resolver.TeamScopedRepository, 0, len(repos))
	for _, repo := range repos {
		scoped = append(scoped, repo)
	}

	gw := gateway.New(gateway.Deps{
		Resolver:    resolver.New(scoped...),
		Authorizer:  authz.New(),
		Services:    registry.New(runner),
		Runner:      runner,
		Credentials: catalog,
		Restarter:   restarter,
	}, &cfg.Gateway)

	streamer := websocket.NewStreamer(gw,
		time.Duration(cfg.Gateway.StreamInterval)*time.Second,
		cfg.Gateway.MaxStreamClients)

	return &Builder{
		router:    New(cfg, gw, streamer),
		catalog:   catalog,
		restarter: restarter,
		streamer:  streamer,
	}, nil
}

// WithMiddleware adds a middleware to the router
func (b *Builder) WithMiddleware(middleware gin.HandlerFunc) *Builder {
	b.router.engine.Use(middleware)
	return b
}

// WithAllRoutes adds all routes and initializes the router
func (b *Builder) WithAllRoutes() *Builder {
	b.router.Initialize()
	return b
}

// GetRouter returns the underlying router
func (b *Builder) GetRouter() *Router {
	return b.router
}

// Start starts the HTTP server
func (b *Builder) Start() {
	b.router.Start()
}

// Shutdown stops the HTTP server then releases the resources it used
func (b *Builder) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if b.streamer != nil {
		b.streamer.Close()
	}

	if err := b.router.Shutdown(ctx); err != nil {
		logger.Warn("HTTP server did not shut down cleanly", logger.Err(err))
	} else {
		logger.Info("Stopped HTTP server")
	}

	if b.restarter != nil {
		if err := b.restarter.Close(); err != nil {
			logger.Warn("Failed to close restart requester", logger.Err(err))
		}
	}

	if b.catalog != nil {
		if err := b.catalog.Close(); err != nil {
			logger.Warn("Failed to close catalog", logger.Err(err))
		} else {
			logger.Info("Closed catalog connection")
		}
	}
}
