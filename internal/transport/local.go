package transport

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/logger"
)

// Local runs commands on the control-plane host itself
type Local struct {
	shell string
}

// NewLocal creates a local runner using the given shell (bash when empty)
func NewLocal(shell string) *Local {
	if shell == "" {
		shell = "bash"
	}
	return &Local{shell: shell}
}

// Run implements Transport
func (l *Local) Run(ctx context.Context, server *models.Server, commands []string) (string, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, l.shell, "-s")
	cmd.Stdin = strings.NewReader(script(commands))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	logger.Debug("Local command finished",
		logger.String("server", server.Name),
		logger.Int("commands", len(commands)),
		logger.Duration("elapsed", time.Since(start)))

	if err != nil {
		return stdout.String(), commandError(server, err, stderr.String())
	}
	return stdout.String(), nil
}
