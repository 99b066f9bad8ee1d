package startup

import (
	"os"

	"DBAdminDO/internal/api/router"
	"DBAdminDO/internal/app"
	"DBAdminDO/internal/pkg/logger"
)

// StartServer wires the gateway and starts the HTTP server in the background
func StartServer(application *app.Application) *router.Builder {
	builder, err := router.NewBuilder(application.GetConfig())
	if err != nil {
		logger.Error("Failed to build gateway", logger.Err(err))
		os.Exit(1)
	}
	builder.WithAllRoutes()

	go builder.Start()

	return builder
}
