package startup

import (
	"os"

	"DBAdminDO/internal/app"
	"DBAdminDO/internal/pkg/config"
	"DBAdminDO/internal/pkg/logger"
	"DBAdminDO/internal/utils/finder"
)

// InitializeApplication initializes the application with the given config path
func InitializeApplication(configPath string) *app.Application {
	foundConfigPath, err := finder.FindConfigFile(configPath, true)
	if err != nil {
		logger.Error("Failed to find configuration", logger.Err(err))
		os.Exit(1)
	}

	logger.Info("Using configuration file", logger.String("path", foundConfigPath))

	application := app.New(foundConfigPath)
	if err := application.Initialize(); err != nil {
		logger.Error("Failed to initialize application", logger.Err(err))
		os.Exit(1)
	}

	return application
}

// SetupDefaultLogger initializes a default logger for early startup
func SetupDefaultLogger() {
	cfg := config.GetDefaultConfig()
	// Early output goes to the console only; the file sink opens once the real config is known
	cfg.Logs.FilePath = ""
	if err := logger.Init(cfg); err != nil {
		// Can't use logger yet, so use fmt
		panic("Error initializing logger: " + err.Error())
	}
}
