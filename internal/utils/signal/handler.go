package signal

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"DBAdminDO/internal/api/router"
	"DBAdminDO/internal/app"
	"DBAdminDO/internal/pkg/logger"
)

var (
	cleanupMu    sync.Mutex
	cleanupFuncs []func()
)

// RegisterCleanupFunc adds fn to the functions run before the process exits.
// Functions run in reverse registration order.
func RegisterCleanupFunc(fn func()) {
	cleanupMu.Lock()
	defer cleanupMu.Unlock()
	cleanupFuncs = append(cleanupFuncs, fn)
}

// RunCleanup runs and clears the registered cleanup functions
func RunCleanup() {
	cleanupMu.Lock()
	funcs := cleanupFuncs
	cleanupFuncs = nil
	cleanupMu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		funcs[i]()
	}
}

// HandleSignals blocks until SIGINT or SIGTERM, then shuts everything down
func HandleSignals(application *app.Application, builder *router.Builder) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			logger.Info("Received termination signal, shutting down...",
				logger.String("signal", sig.String()))

			builder.Shutdown()
			RunCleanup()
			application.Shutdown()
			os.Exit(0)
		case syscall.SIGHUP:
			// Configuration is read once at start; a restart is needed to apply changes
			logger.Info("Received SIGHUP signal, ignoring; restart the service to reload configuration")
		}
	}
}
