// Package externalscript implements ExternalScriptTransport (§4.5):
// execution of a host-scripting snippet via a short-lived subprocess,
// selecting a script template by matching the target application.
package externalscript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cua-dev/cuad/internal/model"
	"github.com/cua-dev/cuad/internal/transport"
	"github.com/cua-dev/cuad/internal/util"
)

// Name is this transport's stable identifier.
const Name = "external-script"

const defaultTimeout = 3 * time.Second
const killGrace = 500 * time.Millisecond

// errTimedOut is surfaced (instead of the bare context.DeadlineExceeded
// string) whenever a script run is killed for overrunning its timeout, so
// callers can recognize the hang policy from the error text alone.
var errTimedOut = errors.New("external-script: command timed out")

// Template renders an expression into a full host-scripting command for a
// specific application family.
type Template struct {
	// Matches reports whether this template applies to the given app/bundle.
	Matches func(appName, bundleID string) bool
	// Render produces the argv for exec.CommandContext (program, args...).
	Render func(expr string) (string, []string)
}

// Runner runs a rendered script and returns its stdout and stderr separately.
// Exposed as a field so tests can substitute a fake without forking a
// real subprocess.
type Runner func(ctx context.Context, program string, args []string) (stdout string, stderr string, err error)

// Transport is the ExternalScriptTransport.
type Transport struct {
	templates []Template
	run       Runner
	log       *zap.Logger
	stats     model.TransportStats

	mu       sync.Mutex
	lastUsed string
}

// New constructs an ExternalScriptTransport with the default template table
// and a real subprocess runner.
func New(log *zap.Logger) *Transport {
	return &Transport{templates: defaultTemplates(), run: execRunner, log: log}
}

func (t *Transport) Name() string { return Name }

func (t *Transport) CanHandle(appName, bundleID string) bool { return true }

func (t *Transport) Health() model.Health { return t.stats.DerivedHealth() }

func (t *Transport) Compatible(kind transport.Kind) bool { return kind == transport.ActionScript }

func (t *Transport) Stats() *model.TransportStats { return &t.stats }

func (t *Transport) Execute(ctx context.Context, action transport.Action) transport.Result {
	if action.Kind != transport.ActionScript {
		t.stats.RecordFailure()
		return transport.Result{Success: false, Error: fmt.Sprintf("external-script: unsupported action %q", action.Kind), TransportUsed: Name}
	}

	timeout := action.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	tmpl := t.templateFor(action.App.Name, action.App.BundleID)
	program, args := tmpl.Render(action.Expr)

	stdout, stderr, err := t.runWithRetry(ctx, program, args, timeout)
	if err != nil {
		t.stats.RecordFailure()
		msg := stderr
		if msg == "" {
			msg = err.Error()
		}
		return transport.Result{Success: false, Error: msg, TransportUsed: Name}
	}

	t.stats.RecordSuccess()
	return transport.Result{
		Success:       true,
		Data:          map[string]model.Value{"stdout": model.NewString(stdout)},
		TransportUsed: Name,
	}
}

// runWithRetry implements the hang policy (§4.5): terminate, wait up to
// killGrace, force-kill, retry once with the same timeout.
func (t *Transport) runWithRetry(ctx context.Context, program string, args []string, timeout time.Duration) (string, string, error) {
	stdout, stderr, err := t.runOnce(ctx, program, args, timeout)
	if errors.Is(err, errTimedOut) {
		stdout, stderr, err = t.runOnce(ctx, program, args, timeout)
	}
	return stdout, stderr, err
}

func (t *Transport) runOnce(ctx context.Context, program string, args []string, timeout time.Duration) (string, string, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stdout, stderr, err := t.run(runCtx, program, args)
	if runCtx.Err() == context.DeadlineExceeded || err == context.DeadlineExceeded {
		return stdout, stderr, errTimedOut
	}
	return stdout, stderr, err
}

func (t *Transport) templateFor(appName, bundleID string) Template {
	for _, tmpl := range t.templates {
		if tmpl.Matches(appName, bundleID) {
			return tmpl
		}
	}
	return genericAppleScriptTemplate(appName)
}

func execRunner(ctx context.Context, program string, args []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	util.SetDetachedProcess(cmd)

	// On context cancellation, terminate gently first and only force-kill
	// the process if it is still alive killGrace later (§4.5).
	cmd.Cancel = func() error {
		return util.Terminate(cmd)
	}
	cmd.WaitDelay = killGrace

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return stdout.String(), stderr.String(), context.DeadlineExceeded
	}
	return stdout.String(), stderr.String(), err
}

// defaultTemplates returns the built-in script-template table: special
// cases for the host browser and host notes application, and a generic
// `tell application "<name>" ... end tell` wrapper otherwise.
func defaultTemplates() []Template {
	return []Template{
		{
			Matches: func(appName, bundleID string) bool { return containsFold(appName, "safari") || containsFold(bundleID, "safari") },
			Render: func(expr string) (string, []string) {
				script := fmt.Sprintf(`tell application "Safari" to do JavaScript %s in front document`, quoteAppleScript(expr))
				return "osascript", []string{"-e", script}
			},
		},
		{
			Matches: func(appName, bundleID string) bool { return containsFold(appName, "notes") || containsFold(bundleID, "notes") },
			Render: func(expr string) (string, []string) {
				script := fmt.Sprintf(`tell application "Notes" to %s`, expr)
				return "osascript", []string{"-e", script}
			},
		},
	}
}

func genericAppleScriptTemplate(appName string) Template {
	return Template{
		Matches: func(string, string) bool { return true },
		Render: func(expr string) (string, []string) {
			script := fmt.Sprintf(`tell application %s
%s
end tell`, quoteAppleScript(appName), expr)
			return "osascript", []string{"-e", script}
		},
	}
}

// quoteAppleScript wraps s in double quotes, escaping embedded quotes and
// backslashes so untrusted match strings cannot break out of the literal.
func quoteAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func containsFold(haystack, needle string) bool {
	return needle != "" && strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
