package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cua-dev/cuad/internal/state"
)

func TestNew_WritesJSONLinesToLogFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(state.RootDirEnv, dir)

	log, err := New(false)
	require.NoError(t, err)
	require.NotNil(t, log)
	defer log.Sync()

	log.Info("hello")

	logPath, err := state.DefaultLogFile()
	require.NoError(t, err)
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestNew_DebugEnablesDebugLevel(t *testing.T) {
	t.Setenv(state.RootDirEnv, t.TempDir())

	log, err := New(true)
	require.NoError(t, err)
	require.NotNil(t, log)
	defer log.Sync()

	assert.True(t, log.Core().Enabled(-1)) // zapcore.DebugLevel
}

func TestNew_FallsBackWhenLogDirUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("not a dir"), 0o600))
	t.Setenv(state.RootDirEnv, blocked)

	log, err := New(false)
	require.NoError(t, err)
	require.NotNil(t, log)
	defer log.Sync()
}
