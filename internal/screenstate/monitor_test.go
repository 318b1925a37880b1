package screenstate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cua-dev/cuad/internal/eventbus"
	"github.com/cua-dev/cuad/internal/model"
	"github.com/cua-dev/cuad/internal/platform"
)

type fakeProvider struct {
	platform.Noop

	mu       sync.Mutex
	lock     platform.LockState
	display  platform.DisplayPower
	fg       model.Application
	fgOK     bool
	callback func(platform.Notification)
}

func (f *fakeProvider) SessionLockState() platform.LockState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lock
}

func (f *fakeProvider) DisplayPowerState() platform.DisplayPower {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.display
}

func (f *fakeProvider) ForegroundApplication() (model.Application, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fg, f.fgOK
}

func (f *fakeProvider) Subscribe(callback func(platform.Notification)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callback = callback
	return func() {}
}

func (f *fakeProvider) setLock(l platform.LockState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lock = l
}

func (f *fakeProvider) notify(n platform.Notification) {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	if cb != nil {
		cb(n)
	}
}

func TestNew_CapturesInitialState(t *testing.T) {
	fp := &fakeProvider{lock: platform.LockUnlocked, display: platform.DisplayOn, fg: model.Application{Name: "Finder"}, fgOK: true}
	bus := eventbus.New(nil)
	m := New(fp, bus, nil)
	defer m.Stop()

	snap := m.Snapshot()
	assert.Equal(t, platform.LockUnlocked, snap.Lock)
	assert.Equal(t, platform.DisplayOn, snap.Display)
	assert.Equal(t, "Finder", snap.Foreground)
}

func TestOnNotification_PublishesImmediatelyOnLockChange(t *testing.T) {
	fp := &fakeProvider{lock: platform.LockUnlocked, display: platform.DisplayOn}
	bus := eventbus.New(nil)
	m := New(fp, bus, nil)
	defer m.Stop()

	fp.notify(platform.Notification{Type: "screen_locked"})

	require.Eventually(t, func() bool {
		return m.Snapshot().Lock == platform.LockLocked
	}, time.Second, 5*time.Millisecond)

	events := bus.Query("", []string{string(model.EventScreenLocked)}, 0)
	assert.Len(t, events, 1)
}

func TestOnNotification_NoEventWhenStateUnchanged(t *testing.T) {
	fp := &fakeProvider{lock: platform.LockLocked}
	bus := eventbus.New(nil)
	m := New(fp, bus, nil)
	defer m.Stop()

	fp.notify(platform.Notification{Type: "screen_locked"})
	time.Sleep(50 * time.Millisecond)

	events := bus.Query("", []string{string(model.EventScreenLocked)}, 0)
	assert.Empty(t, events)
}

func TestStop_HaltsPollLoopAndUnsubscribes(t *testing.T) {
	fp := &fakeProvider{}
	bus := eventbus.New(nil)
	m := New(fp, bus, nil)
	m.Stop()

	assert.NotPanics(t, func() { m.Stop() })
}
