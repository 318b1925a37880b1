package platform

import (
	"context"
	"errors"

	"github.com/cua-dev/cuad/internal/model"
)

// Noop is a placeholder AccessibilityProvider: it reports accessibility
// permission as not granted, lists no running applications, and reports
// every traversal, actuation and screenshot call as unsupported. Platform
// bindings (macOS AX, Windows UIA, Linux AT-SPI) are explicitly out of
// this module's scope (§1); Noop lets the daemon start and serve
// `ping`/`health` even with no real binding wired in, and gives the
// router's health checks a concrete "dead" transport to route around.
type Noop struct{}

// NewNoop constructs the placeholder provider.
func NewNoop() *Noop { return &Noop{} }

func (Noop) PermissionGranted() bool { return false }

func (Noop) ListApplications(ctx context.Context) ([]model.Application, error) {
	return nil, nil
}

func (Noop) Traverse(ctx context.Context, app model.Application, maxDepth int) (*model.RawNode, error) {
	return nil, errors.New("platform: no accessibility binding configured")
}

func (Noop) WindowInfo(ctx context.Context, app model.Application) (model.WindowInfo, error) {
	return model.WindowInfo{}, errors.New("platform: no accessibility binding configured")
}

func (Noop) Click(ctx context.Context, app model.Application, node *model.RawNode) error {
	return errors.New("platform: no accessibility binding configured")
}

func (Noop) Focus(ctx context.Context, app model.Application, node *model.RawNode) error {
	return errors.New("platform: no accessibility binding configured")
}

func (Noop) Fill(ctx context.Context, app model.Application, node *model.RawNode, value string) error {
	return errors.New("platform: no accessibility binding configured")
}

func (Noop) Clear(ctx context.Context, app model.Application, node *model.RawNode) error {
	return errors.New("platform: no accessibility binding configured")
}

func (Noop) Toggle(ctx context.Context, app model.Application, node *model.RawNode) error {
	return errors.New("platform: no accessibility binding configured")
}

func (Noop) Select(ctx context.Context, app model.Application, node *model.RawNode, optionLabel string) error {
	return errors.New("platform: no accessibility binding configured")
}

func (Noop) SessionLockState() LockState { return LockUnknown }

func (Noop) DisplayPowerState() DisplayPower { return DisplayUnknown }

func (Noop) ForegroundApplication() (model.Application, bool) { return model.Application{}, false }

func (Noop) Screenshot(ctx context.Context, app model.Application, outputPath string) (int, int, error) {
	return 0, 0, errors.New("platform: no accessibility binding configured")
}

func (Noop) Subscribe(callback func(Notification)) (unsubscribe func()) {
	return func() {}
}
