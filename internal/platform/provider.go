// Package platform defines the AccessibilityProvider contract: the single
// seam between the daemon's transport/event logic and the host operating
// system's accessibility API, screen-capture API, and session-lock
// detection. Per the specification these are explicitly out of scope —
// only the interface is part of the hard core. Platform implementations
// (macOS AX API, Windows UIA, Linux AT-SPI, ...) live outside this module
// and are injected into the daemon at construction time.
package platform

import (
	"context"
	"time"

	"github.com/cua-dev/cuad/internal/model"
)

// LockState is the host's session-lock condition.
type LockState string

const (
	LockLocked   LockState = "locked"
	LockUnlocked LockState = "unlocked"
	LockUnknown  LockState = "unknown"
)

// DisplayPower is the host's display-power condition.
type DisplayPower string

const (
	DisplayOn      DisplayPower = "on"
	DisplayOff     DisplayPower = "off"
	DisplayUnknown DisplayPower = "unknown"
)

// Notification is a host accessibility/workspace notification, delivered
// to AccessibilityProvider.Subscribe's callback and republished on the
// EventBus by the bus's process/accessibility monitor (§4.9).
type Notification struct {
	Type      string // e.g. "focus_change", "value_change", "window_created", "window_destroyed", "app_launched", "app_terminated", "screen_locked", "screen_unlocked", "display_sleep", "display_wake"
	App       model.Application
	Timestamp time.Time
	Detail    string
}

// AccessibilityProvider is the platform binding the daemon depends on. A
// real implementation wraps the host's accessibility API (e.g. AX on
// macOS), display/session APIs, and screenshot capture. All methods must
// be safe for concurrent use.
type AccessibilityProvider interface {
	// PermissionGranted reports whether the host has granted this process
	// accessibility automation permission.
	PermissionGranted() bool

	// ListApplications enumerates running, automatable applications.
	ListApplications(ctx context.Context) ([]model.Application, error)

	// Traverse walks the accessibility tree of the given application to at
	// most maxDepth, returning the root RawNode. Implementations must
	// break cycles using RawNode.SetIdentity/Identity.
	Traverse(ctx context.Context, app model.Application, maxDepth int) (*model.RawNode, error)

	// WindowInfo returns the application's frontmost window info.
	WindowInfo(ctx context.Context, app model.Application) (model.WindowInfo, error)

	// Click, Focus, Fill, Clear, Toggle, and Select actuate a specific
	// accessibility node. node is a value previously returned by Traverse
	// (callers resolve daemon refs to nodes before calling these).
	Click(ctx context.Context, app model.Application, node *model.RawNode) error
	Focus(ctx context.Context, app model.Application, node *model.RawNode) error
	Fill(ctx context.Context, app model.Application, node *model.RawNode, value string) error
	Clear(ctx context.Context, app model.Application, node *model.RawNode) error
	Toggle(ctx context.Context, app model.Application, node *model.RawNode) error
	Select(ctx context.Context, app model.Application, node *model.RawNode, optionLabel string) error

	// SessionLockState and DisplayPowerState report current host state
	// for the ScreenStateMonitor's polled refresh.
	SessionLockState() LockState
	DisplayPowerState() DisplayPower
	ForegroundApplication() (model.Application, bool)

	// Screenshot captures the given application's window to outputPath,
	// returning the pixel dimensions written.
	Screenshot(ctx context.Context, app model.Application, outputPath string) (width, height int, err error)

	// Subscribe registers a callback for host distributed/workspace/
	// accessibility notifications (focus change, value change, window
	// created/destroyed, app launch/terminate, lock/unlock, sleep/wake).
	// Returns an unsubscribe function.
	Subscribe(callback func(Notification)) (unsubscribe func())
}
