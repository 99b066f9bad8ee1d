package logger

import (
	"os"
	"path/filepath"
	"testing"

	"DBAdminDO/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestGetLogLevel(t *testing.T) {
	level, err := getLogLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	_, err = getLogLevel("loud")
	assert.Error(t, err)
}

func TestInit_WritesToRotatedFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.GetDefaultConfig()
	cfg.AppName = "logger-test"
	cfg.Logs.FilePath = dir
	cfg.Logs.Stdout = false
	cfg.Logs.Level = "debug"

	require.NoError(t, Init(cfg))
	Info("hello", String("k", "v"), Database("abc123", "postgresql"))
	require.NoError(t, Sync())

	data, err := os.ReadFile(filepath.Join(dir, "logger-test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "abc123")
}

func TestInit_Disabled(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Logs.Enabled = false
	require.NoError(t, Init(cfg))
	assert.NotPanics(t, func() { Error("ignored") })
}
