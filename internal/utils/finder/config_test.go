package finder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app_name: x\n"), 0600))

	found, err := FindConfigFile(path, true)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestFindConfigFile_Fallback(t *testing.T) {
	dir := t.TempDir()
	fallback := filepath.Join(dir, "fallback.yaml")
	require.NoError(t, os.WriteFile(fallback, []byte("app_name: x\n"), 0600))

	orig := SearchPaths
	SearchPaths = []string{fallback}
	t.Cleanup(func() { SearchPaths = orig })

	found, err := FindConfigFile(filepath.Join(dir, "missing.yaml"), true)
	require.NoError(t, err)
	assert.Equal(t, fallback, found)
}

func TestFindConfigFile_Missing(t *testing.T) {
	orig := SearchPaths
	SearchPaths = nil
	t.Cleanup(func() { SearchPaths = orig })

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := FindConfigFile(missing, true)
	assert.ErrorContains(t, err, "configuration file not found")

	got, err := FindConfigFile(missing, false)
	require.NoError(t, err)
	assert.Equal(t, missing, got)
}
