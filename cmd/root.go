package cmd

import (
	"fmt"
	"os"

	"DBAdminDO/internal/startup"

	"github.com/spf13/cobra"
)

var (
	configPath string
	pidFile    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dbadmin",
	Short: "Administration gateway for containerized databases",
	Long: `DBAdminDO exposes metrics, logs, browsing and administration for
PostgreSQL, MySQL, MariaDB, MongoDB, Redis, KeyDB, Dragonfly and ClickHouse
containers running on managed servers.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Initialize default logger for early startup
	startup.SetupDefaultLogger()

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "conf/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&pidFile, "pid-file", "/var/run/dbadmin.pid", "Path to the PID file")
}
