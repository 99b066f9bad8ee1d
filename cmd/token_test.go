package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"DBAdminDO/internal/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runToken(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  auth:\n    enabled: true\n    jwt_secret: cli-secret\n"), 0600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"token", "--config", path}, args...))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestTokenCommand(t *testing.T) {
	out, err := runToken(t, "--user", "alice", "--team", "3", "--role", "admin")
	require.NoError(t, err)

	claims, err := jwt.ValidateToken(out, "cli-secret")
	require.NoError(t, err)
	caller := claims.Caller()
	assert.Equal(t, "alice", caller.Username)
	assert.Equal(t, int64(3), caller.TeamID)
	assert.Equal(t, "admin", caller.Role)
}

func TestTokenCommand_RejectsUnknownRole(t *testing.T) {
	_, err := runToken(t, "--user", "alice", "--team", "3", "--role", "root")
	assert.ErrorContains(t, err, "unknown role")
}
