package daemon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cua-dev/cuad/internal/config"
	"github.com/cua-dev/cuad/internal/platform"
	"github.com/cua-dev/cuad/internal/protocol"
	"github.com/cua-dev/cuad/internal/state"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Setenv(state.RootDirEnv, t.TempDir())
	cfg := config.Config{AccessibilityMaxDepth: 10, SettlingSleepMillis: 5}
	return New(platform.NewNoop(), cfg, nil)
}

func TestNew_WiresEveryComponent(t *testing.T) {
	d := newTestDaemon(t)
	assert.NotNil(t, d.Cache)
	assert.NotNil(t, d.Bus)
	assert.NotNil(t, d.Router)
	assert.NotNil(t, d.Pool)
	assert.NotNil(t, d.Screen)
	assert.NotNil(t, d.Tracker)
	assert.NotNil(t, d.Server)
	assert.NotNil(t, d.Remote)
	assert.NotNil(t, d.Accessibility)
	assert.NotNil(t, d.BrowserDebug)
	assert.NotNil(t, d.ExternalScript)
	assert.NotNil(t, d.BrowserAutomation)
}

func TestNew_RegistersCoreMethods(t *testing.T) {
	d := newTestDaemon(t)
	defer d.Stop()

	for _, method := range []string{"ping", "list", "snapshot", "act", "pipe", "status", "health", "events", "screenshot"} {
		resp := d.Server.Dispatch(context.Background(), 1, method, nil)
		if resp.Error != nil {
			assert.NotEqual(t, protocol.CodeMethodNotFound, resp.Error.Code, "method %q should be registered", method)
		}
	}
}

func TestStartStop_Lifecycle(t *testing.T) {
	d := newTestDaemon(t)
	require.NoError(t, d.Start())
	assert.NotPanics(t, func() { d.Stop() })
}

func TestStart_SkipsRemoteBridgeWithoutSecret(t *testing.T) {
	d := newTestDaemon(t)
	d.Config.RemoteBridgeEnabled = true
	defer d.Stop()

	require.NoError(t, d.Start())
	assert.False(t, d.Remote.CanServe())
}
