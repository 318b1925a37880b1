// Package transport defines the abstract Transport contract (§4.1): every
// concrete pathway by which the daemon reads or actuates an application —
// accessibility API, embedded-browser debugger, host scripting, or injected
// page script — implements this interface so the router can treat them
// uniformly.
package transport

import (
	"context"
	"time"

	"github.com/cua-dev/cuad/internal/model"
)

// Kind is the action vocabulary a Transport may be asked to execute.
type Kind string

const (
	ActionSnapshot Kind = "snapshot"
	ActionClick    Kind = "click"
	ActionFocus    Kind = "focus"
	ActionFill     Kind = "fill"
	ActionClear    Kind = "clear"
	ActionToggle   Kind = "toggle"
	ActionSelect   Kind = "select"
	ActionEval     Kind = "eval"
	ActionScript   Kind = "script"

	ActionBrowserTabs      Kind = "browser.tabs"
	ActionBrowserNavigate  Kind = "browser.navigate"
	ActionBrowserSnapshot  Kind = "browser.snapshot"
	ActionBrowserClick     Kind = "browser.click"
	ActionBrowserFill      Kind = "browser.fill"
	ActionBrowserExtract   Kind = "browser.extract"
	ActionBrowserSwitchTab Kind = "browser.switch_tab"
	ActionBrowserJS        Kind = "browser.js"
)

// IsBrowserAction reports whether kind is one of the browser.* family.
func (k Kind) IsBrowserAction() bool {
	return len(k) > 8 && k[:8] == "browser."
}

// Action is a tagged, kind-specific request to a Transport.
type Action struct {
	Kind    Kind
	App     model.Application
	Ref     string
	Value   string
	Expr    string
	Timeout time.Duration
	Depth   int
	Port    int
	NoCache bool
}

// Result is the outcome of executing one Action.
type Result struct {
	Success        bool
	Data           map[string]model.Value
	Error          string
	TransportUsed  string
}

// Transport is the abstract contract every concrete pathway implements.
type Transport interface {
	// Name is the stable identifier used in preference chains, stats
	// reporting, and Result.TransportUsed (e.g. "accessibility").
	Name() string

	// CanHandle reports whether this transport is a candidate for the
	// given application at all (independent of the requested action kind).
	CanHandle(appName, bundleID string) bool

	// Health reports current operating condition, combining the
	// transport's own stats-derived health with any self-reported state
	// (e.g. permission denied, no target process).
	Health() model.Health

	// Execute runs one action. Implementations must not block
	// indefinitely: they honor action.Timeout, or a documented default,
	// and must return promptly when ctx is canceled. Every call charges
	// exactly one success or failure to the transport's own stats block.
	Execute(ctx context.Context, action Action) Result

	// Compatible reports whether this transport type can ever serve the
	// given action kind (the router's compatibility table, §4.7).
	Compatible(kind Kind) bool

	// Stats exposes the transport's own stats block for status reporting.
	Stats() *model.TransportStats
}
