package cmd

import (
	"fmt"

	"DBAdminDO/internal/utils/daemon"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the gateway is running",
	Run: func(cmd *cobra.Command, args []string) {
		running, pid := daemon.GetStatus(pidFile)
		if running {
			fmt.Printf("DBAdmin gateway is running (PID: %d)\n", pid)
		} else {
			fmt.Println("DBAdmin gateway is not running")
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
