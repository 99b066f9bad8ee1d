package cmd

import (
	"fmt"
	"os"

	"DBAdminDO/internal/pkg/logger"
	"DBAdminDO/internal/startup"
	"DBAdminDO/internal/utils/daemon"
	"DBAdminDO/internal/utils/signal"

	"github.com/spf13/cobra"
)

var (
	foreground bool
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway",
	Long:  `Start the database administration gateway in foreground or as a daemon.`,
	Run: func(cmd *cobra.Command, args []string) {
		if daemon.IsRunning(pidFile) {
			fmt.Printf("DBAdmin gateway is already running (PID file exists at %s)\n", pidFile)
			os.Exit(1)
		}

		isChild := daemon.IsChild()
		if !foreground && !isChild {
			daemon.Daemonize(configPath, pidFile)
			return
		}

		application := startup.InitializeApplication(configPath)
		builder := startup.StartServer(application)

		if isChild {
			if err := daemon.WritePIDFile(pidFile); err != nil {
				logger.Error("Failed to write PID file", logger.Err(err))
			} else {
				signal.RegisterCleanupFunc(func() {
					daemon.RemovePIDFile(pidFile)
				})
			}
		}

		signal.HandleSignals(application, builder)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (not as daemon)")
}
