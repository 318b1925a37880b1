package model

import "time"

// Event is a value-typed, fan-out-only notification published on the
// EventBus. Type is a dot-separated domain path, e.g. "process.tool.start",
// "screen.unlocked", "app.launched".
type Event struct {
	Type      string           `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	App       string           `json:"app,omitempty"`
	BundleID  string           `json:"bundle_id,omitempty"`
	PID       int              `json:"pid,omitempty"`
	Details   map[string]Value `json:"details,omitempty"`
}

// Well-known event type constants, grouped by domain.
const (
	EventProcessToolStart      = "process.tool.start"
	EventProcessToolEnd        = "process.tool.end"
	EventProcessMessage        = "process.message"
	EventProcessError          = "process.error"
	EventProcessIdle           = "process.idle"
	EventProcessExit           = "process.exit"
	EventProcessGroupStateChange = "process.group.state_change"

	EventScreenLocked   = "screen.locked"
	EventScreenUnlocked = "screen.unlocked"
	EventDisplaySleep   = "display.sleep"
	EventDisplayWake    = "display.wake"

	EventAppLaunched  = "app.launched"
	EventAppTerminated = "app.terminated"

	EventRouterFallback = "router.fallback"
	EventTransportDead  = "transport.dead"
)
