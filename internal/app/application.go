package app

import (
	"fmt"
	"path/filepath"

	"DBAdminDO/internal/pkg/config"
	"DBAdminDO/internal/pkg/logger"
)

// Application represents the main application
type Application struct {
	configPath string
	envPath    string
	config     *config.Config
	isRunning  bool
}

// New creates a new application instance
func New(configPath string) *Application {
	return &Application{
		configPath: configPath,
		isRunning:  false,
	}
}

// Initialize loads .env, configuration and the logger
func (a *Application) Initialize() error {
	// A .env beside the config file wins over one in the working directory
	a.envPath = config.LoadDotEnv(filepath.Join(filepath.Dir(a.configPath), ".env"))

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.config = cfg

	if err := logger.Init(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if a.envPath != "" {
		logger.Info("Loaded environment file", logger.String("path", a.envPath))
	}
	logger.Info("Application initialized successfully",
		logger.String("app", cfg.AppName),
		logger.String("catalog_driver", cfg.Catalog.Driver),
		logger.String("restart_mode", cfg.Restart.Mode))
	a.isRunning = true
	return nil
}

// GetConfig returns the application configuration
func (a *Application) GetConfig() *config.Config {
	return a.config
}

// GetConfigPath returns the path to the configuration file
func (a *Application) GetConfigPath() string {
	return a.configPath
}

// IsRunning reports whether Initialize succeeded and Shutdown has not run
func (a *Application) IsRunning() bool {
	return a.isRunning
}

// Shutdown performs cleanup and shutdown operations
func (a *Application) Shutdown() {
	logger.Info("Shutting down application...")

	a.isRunning = false
	logger.Info("Application shutdown complete")

	// Ensure logs are flushed
	if err := logger.Sync(); err != nil {
		fmt.Printf("Error flushing logs: %v\n", err)
	}
}
