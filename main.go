package main

import (
	"DBAdminDO/cmd"
	"DBAdminDO/internal/pkg/logger"
)

func main() {
	defer logger.Sync()
	cmd.Execute()
}
