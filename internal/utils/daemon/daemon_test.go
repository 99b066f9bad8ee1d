package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFileLifecycle(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "run", "dbadmin.pid")

	running, _ := GetStatus(pidFile)
	assert.False(t, running)

	require.NoError(t, WritePIDFile(pidFile))
	running, pid := GetStatus(pidFile)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, IsRunning(pidFile))

	RemovePIDFile(pidFile)
	assert.NoFileExists(t, pidFile)
}

func TestGetStatus_RemovesStalePIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "dbadmin.pid")
	// PIDs near the max are effectively never in use
	require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(4194303)), 0644))

	running, _ := GetStatus(pidFile)
	assert.False(t, running)
	assert.NoFileExists(t, pidFile)
}

func TestStopProcess_NotRunning(t *testing.T) {
	_, err := StopProcess(filepath.Join(t.TempDir(), "missing.pid"))
	assert.ErrorIs(t, err, ErrNotRunning)

	bad := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(bad, []byte("not-a-pid"), 0644))
	_, err = StopProcess(bad)
	assert.ErrorContains(t, err, "invalid PID")
}
