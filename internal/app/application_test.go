package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
logs:
  enabled: false
api:
  auth:
    enabled: true
`

func TestInitialize_LoadsEnvBesideConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(minimalConfig), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DBADMIN_JWT_SECRET=from-dotenv\n"), 0600))
	t.Setenv("DBADMIN_JWT_SECRET", "")
	os.Unsetenv("DBADMIN_JWT_SECRET")

	a := New(cfgPath)
	require.NoError(t, a.Initialize())
	assert.True(t, a.IsRunning())
	assert.Equal(t, "from-dotenv", a.GetConfig().API.Auth.JWTSecret)

	a.Shutdown()
	assert.False(t, a.IsRunning())
}

func TestInitialize_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("catalog:\n  driver: sqlite\n"), 0600))

	err := New(cfgPath).Initialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}
