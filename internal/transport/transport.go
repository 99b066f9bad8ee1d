// Package transport runs shell commands on the hosts that own database containers.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"DBAdminDO/internal/models"
	"DBAdminDO/internal/pkg/config"
	"DBAdminDO/internal/pkg/logger"
)

// Transport executes command lines on a server and returns stdout
type Transport interface {
	Run(ctx context.Context, server *models.Server, commands []string) (string, error)
}

// ErrNoServer is returned when a handle carries no server
var ErrNoServer = errors.New("no server attached to database")

// Router sends commands for local hosts to the local runner and everything else over SSH
type Router struct {
	local      Transport
	remote     Transport
	localHosts map[string]bool
}

// NewRouter builds the transport used by the gateway from configuration
func NewRouter(cfg *config.TransportConfig) (*Router, error) {
	remote, err := NewSSH(cfg)
	if err != nil {
		return nil, err
	}

	hosts := make(map[string]bool, len(cfg.LocalHosts))
	for _, h := range cfg.LocalHosts {
		hosts[strings.ToLower(h)] = true
	}

	return &Router{
		local:      NewLocal(cfg.Shell),
		remote:     remote,
		localHosts: hosts,
	}, nil
}

// Run implements Transport
func (r *Router) Run(ctx context.Context, server *models.Server, commands []string) (string, error) {
	if server == nil {
		return "", ErrNoServer
	}
	if logger.DebugEnabled() {
		logger.Debug("Dispatching commands",
			logger.String("server", server.Name),
			logger.Strings("commands", RedactAll(commands)))
	}
	if r.localHosts[strings.ToLower(server.Host)] {
		return r.local.Run(ctx, server, commands)
	}
	return r.remote.Run(ctx, server, commands)
}

// script joins command lines into one script that stops at the first failure.
// Runners feed it to the shell on stdin, so a command may only read stdin
// through a pipe of its own.
func script(commands []string) string {
	lines := make([]string, 0, len(commands)+1)
	lines = append(lines, "set -e")
	for _, c := range commands {
		if c = strings.TrimSpace(c); c != "" {
			lines = append(lines, c)
		}
	}
	return strings.Join(lines, "\n")
}

// commandError wraps a failed command with whatever it printed on stderr
func commandError(server *models.Server, err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return fmt.Errorf("command failed on %s: %w", server.Name, err)
	}
	return fmt.Errorf("command failed on %s: %s: %w", server.Name, stderr, err)
}
