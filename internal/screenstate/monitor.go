// Package screenstate implements ScreenStateMonitor (§4.10): session
// lock, display power, and foreground application tracking, reconciled
// by a polled refresh and published as events on change.
package screenstate

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cua-dev/cuad/internal/eventbus"
	"github.com/cua-dev/cuad/internal/model"
	"github.com/cua-dev/cuad/internal/platform"
)

// pollInterval is the polled reconciliation cadence (§4.10).
const pollInterval = 500 * time.Millisecond

// State is the monitor's current view, exposed to the `status` method.
type State struct {
	Lock        platform.LockState
	Display     platform.DisplayPower
	Foreground  string
	ForegroundBundleID string
}

// Monitor is the ScreenStateMonitor.
type Monitor struct {
	provider platform.AccessibilityProvider
	bus      *eventbus.Bus
	log      *zap.Logger

	mu    sync.RWMutex
	state State

	unsubscribe func()
	stopOnce    sync.Once
	stopCh      chan struct{}
}

// New constructs a ScreenStateMonitor and starts its polled refresh loop
// and notification subscription.
func New(provider platform.AccessibilityProvider, bus *eventbus.Bus, log *zap.Logger) *Monitor {
	m := &Monitor{provider: provider, bus: bus, log: log, stopCh: make(chan struct{})}
	m.state = State{Lock: provider.SessionLockState(), Display: provider.DisplayPowerState()}
	if app, ok := provider.ForegroundApplication(); ok {
		m.state.Foreground = app.Name
		m.state.ForegroundBundleID = app.BundleID
	}
	m.unsubscribe = provider.Subscribe(m.onNotification)
	go m.pollLoop()
	return m
}

// Stop halts the polled refresh loop and notification subscription.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Snapshot returns the monitor's current state.
func (m *Monitor) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Monitor) pollLoop() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.reconcile()
		}
	}
}

func (m *Monitor) reconcile() {
	lock := m.provider.SessionLockState()
	display := m.provider.DisplayPowerState()
	var fg model.Application
	fgOK := false
	if app, ok := m.provider.ForegroundApplication(); ok {
		fg, fgOK = app, true
	}

	m.mu.Lock()
	prev := m.state
	m.state.Lock = lock
	m.state.Display = display
	if fgOK {
		m.state.Foreground = fg.Name
		m.state.ForegroundBundleID = fg.BundleID
	}
	m.mu.Unlock()

	m.publishTransitions(prev, lock, display)
}

func (m *Monitor) publishTransitions(prev State, lock platform.LockState, display platform.DisplayPower) {
	if lock != prev.Lock {
		switch lock {
		case platform.LockLocked:
			m.bus.Publish(model.Event{Type: model.EventScreenLocked})
		case platform.LockUnlocked:
			m.bus.Publish(model.Event{Type: model.EventScreenUnlocked})
		}
	}
	if display != prev.Display {
		switch display {
		case platform.DisplayOff:
			m.bus.Publish(model.Event{Type: model.EventDisplaySleep})
		case platform.DisplayOn:
			m.bus.Publish(model.Event{Type: model.EventDisplayWake})
		}
	}
}

// onNotification handles host distributed/workspace notifications for
// lock/unlock and sleep/wake, publishing immediately rather than waiting
// for the next poll tick.
func (m *Monitor) onNotification(n platform.Notification) {
	m.mu.Lock()
	prev := m.state
	switch n.Type {
	case "screen_locked":
		m.state.Lock = platform.LockLocked
	case "screen_unlocked":
		m.state.Lock = platform.LockUnlocked
	case "display_sleep":
		m.state.Display = platform.DisplayOff
	case "display_wake":
		m.state.Display = platform.DisplayOn
	}
	m.mu.Unlock()
	m.publishTransitions(prev, m.Snapshot().Lock, m.Snapshot().Display)
}
