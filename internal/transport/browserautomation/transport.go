package browserautomation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"github.com/google/uuid"

	"github.com/cua-dev/cuad/internal/model"
	"github.com/cua-dev/cuad/internal/transport"
)

// Name is this transport's stable identifier.
const Name = "browser-automation"

const defaultTimeout = 5 * time.Second

// ScriptRunner executes a rendered wrapper host script against the
// browser's current tab and returns the page script's JSON result on
// stdout. Exposed as a field so tests can substitute a fake.
type ScriptRunner func(ctx context.Context, browserApp model.Application, hostScript string) (string, error)

// Transport is BrowserAutomationTransport.
type Transport struct {
	run   ScriptRunner
	log   *zap.Logger
	stats model.TransportStats
}

// New constructs a BrowserAutomationTransport using osascript by default.
func New(log *zap.Logger) *Transport {
	return &Transport{run: osascriptRunner, log: log}
}

func (t *Transport) Name() string { return Name }

func (t *Transport) CanHandle(appName, bundleID string) bool {
	a := strings.ToLower(appName)
	b := strings.ToLower(bundleID)
	return strings.Contains(a, "safari") || strings.Contains(a, "chrome") ||
		strings.Contains(b, "safari") || strings.Contains(b, "chrome")
}

func (t *Transport) Health() model.Health { return t.stats.DerivedHealth() }

func (t *Transport) Compatible(kind transport.Kind) bool { return kind.IsBrowserAction() }

func (t *Transport) Stats() *model.TransportStats { return &t.stats }

func (t *Transport) Execute(ctx context.Context, action transport.Action) transport.Result {
	if !action.Kind.IsBrowserAction() {
		t.stats.RecordFailure()
		return transport.Result{Success: false, Error: fmt.Sprintf("browser-automation: unsupported action %q", action.Kind), TransportUsed: Name}
	}

	timeout := action.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result transport.Result
	switch action.Kind {
	case transport.ActionBrowserTabs, transport.ActionBrowserNavigate, transport.ActionBrowserSwitchTab:
		result = t.tabControl(runCtx, action)
	case transport.ActionBrowserSnapshot, transport.ActionBrowserClick, transport.ActionBrowserFill, transport.ActionBrowserExtract:
		result = t.pageScript(runCtx, action)
	case transport.ActionBrowserJS:
		result = t.pageScript(runCtx, action)
	default:
		result = transport.Result{Success: false, Error: fmt.Sprintf("browser-automation: unrecognized browser action %q", action.Kind)}
	}
	result.TransportUsed = Name
	if result.Success {
		t.stats.RecordSuccess()
	} else {
		t.stats.RecordFailure()
	}
	return result
}

// tabControl handles tab list/switch/navigate via direct AppleScript
// tell-blocks — no page script or temp file is needed for these.
func (t *Transport) tabControl(ctx context.Context, action transport.Action) transport.Result {
	var body string
	switch action.Kind {
	case transport.ActionBrowserTabs:
		body = `set out to {}
repeat with w in windows
	repeat with t in tabs of w
		set end of out to (URL of t)
	end repeat
end repeat
return out as string`
	case transport.ActionBrowserNavigate:
		body = fmt.Sprintf(`set URL of front document to %s`, quote(action.Value))
	case transport.ActionBrowserSwitchTab:
		body = fmt.Sprintf(`set current tab of front window to tab %s of front window`, quote(action.Ref))
	}

	script := fmt.Sprintf(`tell application %s
%s
end tell`, quote(action.App.Name), body)

	out, err := t.run(ctx, action.App, script)
	if err != nil {
		return transport.Result{Success: false, Error: err.Error()}
	}
	return transport.Result{Success: true, Data: map[string]model.Value{"output": model.NewString(out)}}
}

// pageScript writes the injected page script to a temp file, asks the
// browser to execute it against the current tab via a wrapper host
// script, and folds the page script's JSON stdout into the result data.
func (t *Transport) pageScript(ctx context.Context, action transport.Action) transport.Result {
	page := renderPageScript(action)

	tmpFile, err := writeTempScript(page)
	if err != nil {
		return transport.Result{Success: false, Error: err.Error()}
	}
	defer os.Remove(tmpFile)

	wrapper := fmt.Sprintf(`tell application %s
do JavaScript (read (POSIX file %s)) in front document
end tell`, quote(action.App.Name), quote(tmpFile))

	out, err := t.run(ctx, action.App, wrapper)
	if err != nil {
		return transport.Result{Success: false, Error: err.Error()}
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		return transport.Result{Success: false, Error: fmt.Sprintf("browser-automation: page script returned non-JSON: %v", err)}
	}

	data := map[string]model.Value{}
	for k, v := range payload {
		b, _ := json.Marshal(v)
		var val model.Value
		_ = json.Unmarshal(b, &val)
		data[k] = val
	}
	return transport.Result{Success: true, Data: data}
}

func writeTempScript(contents string) (string, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("cuad-page-%s.js", uuid.NewString()))
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		return "", fmt.Errorf("browser-automation: writing page script: %w", err)
	}
	return path, nil
}

// renderPageScript builds the injected JS for the requested browser.*
// action. The match string is embedded via a JSON-encoded literal so it
// survives embedded single and double quotes without breaking out of the
// script (§4.6's escaping discipline).
func renderPageScript(action transport.Action) string {
	matchJSON, _ := json.Marshal(action.Expr)
	valueJSON, _ := json.Marshal(action.Value)

	switch action.Kind {
	case transport.ActionBrowserSnapshot:
		return `(function(){ return JSON.stringify({elements: window.__cuadEnumerate ? window.__cuadEnumerate() : []}); })();`
	case transport.ActionBrowserClick:
		return fmt.Sprintf(`(function(){ var q=%s; var el = window.__cuadFuzzyFind(q); if(!el) return JSON.stringify({success:false}); el.click(); return JSON.stringify({success:true}); })();`, string(matchJSON))
	case transport.ActionBrowserFill:
		return fmt.Sprintf(`(function(){ var q=%s; var v=%s; var el = window.__cuadFuzzyFind(q); if(!el) return JSON.stringify({success:false}); el.value = v; el.dispatchEvent(new Event('input', {bubbles:true})); return JSON.stringify({success:true}); })();`, string(matchJSON), string(valueJSON))
	case transport.ActionBrowserExtract:
		return fmt.Sprintf(`(function(){ var q=%s; var el = window.__cuadFuzzyFind(q); return JSON.stringify({text: el ? el.innerText : ""}); })();`, string(matchJSON))
	default:
		return fmt.Sprintf(`(function(){ return JSON.stringify({result: eval(%s)}); })();`, matchJSON)
	}
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func osascriptRunner(ctx context.Context, app model.Application, hostScript string) (string, error) {
	cmd := exec.CommandContext(ctx, "osascript", "-e", hostScript)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("browser-automation: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}
