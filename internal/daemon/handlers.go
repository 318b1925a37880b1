package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cua-dev/cuad/internal/cache"
	"github.com/cua-dev/cuad/internal/model"
	"github.com/cua-dev/cuad/internal/protocol"
	"github.com/cua-dev/cuad/internal/transport"
	"github.com/cua-dev/cuad/internal/transport/browserautomation"
)

// registerHandlers wires every method named in §6's table to a handler.
func (d *Daemon) registerHandlers() {
	d.Server.Register("ping", 0, d.handlePing)
	d.Server.Register("list", 0, d.handleList)
	d.Server.Register("snapshot", 0, d.handleSnapshot)
	d.Server.Register("act", 0, d.handleAct)
	d.Server.Register("pipe", 0, d.handlePipe)
	d.Server.Register("status", 0, d.handleStatus)
	d.Server.Register("health", 0, d.handleHealth)
	d.Server.Register("events", 0, d.handleEvents)
	d.Server.Register("screenshot", 0, d.handleScreenshot)
	d.Server.Register("process.watch", 0, d.handleProcessWatch)
	d.Server.Register("process.unwatch", 0, d.handleProcessUnwatch)
	d.Server.Register("process.group.add", 0, d.handleProcessGroupAdd)
	d.Server.Register("process.group.remove", 0, d.handleProcessGroupRemove)
	d.Server.Register("process.group.clear", 0, d.handleProcessGroupClear)
	d.Server.Register("process.group.status", 0, d.handleProcessGroupStatus)

	for method, kind := range webMethodKinds {
		d.Server.Register(method, 0, d.makeWebHandler(kind))
	}
}

var webMethodKinds = map[string]transport.Kind{
	"web.tabs":       transport.ActionBrowserTabs,
	"web.navigate":   transport.ActionBrowserNavigate,
	"web.snapshot":   transport.ActionBrowserSnapshot,
	"web.click":      transport.ActionBrowserClick,
	"web.fill":       transport.ActionBrowserFill,
	"web.extract":    transport.ActionBrowserExtract,
	"web.switch_tab": transport.ActionBrowserSwitchTab,
	"web.js":         transport.ActionBrowserJS,
}

type webParams struct {
	Browser    string `json:"browser"`
	URL        string `json:"url"`
	Match      string `json:"match"`
	Value      string `json:"value"`
	Expression string `json:"expression"`
	Timeout    int    `json:"timeout"`
}

// makeWebHandler builds the dispatcher for one web.* method (§6): each
// maps to a BrowserAutomationTransport action via the router.
func (d *Daemon) makeWebHandler(kind transport.Kind) protocolHandler {
	return func(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
		var p webParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &protocol.Error{Code: protocol.CodeInvalidParams, Message: err.Error()}
		}

		browserName := p.Browser
		if browserName == "" {
			browserName = "Safari"
		}
		app, rpcErr := d.resolveApp(ctx, browserName, 0)
		if rpcErr != nil {
			return nil, &protocol.Error{Code: protocol.CodeNoBrowserAvailable, Message: "no browser available"}
		}

		var timeout time.Duration
		if p.Timeout > 0 {
			timeout = time.Duration(p.Timeout) * time.Second
		}

		expr := p.Expression
		if expr == "" {
			expr = p.Match
		}
		value := p.Value
		if kind == transport.ActionBrowserNavigate {
			value = p.URL
		}

		result := d.Router.Execute(ctx, transport.Action{
			Kind: kind, App: app, Expr: expr, Value: value, Timeout: timeout,
		})
		if !result.Success {
			return nil, &protocol.Error{Code: protocol.CodeTransportFailure, Message: result.Error}
		}
		out := map[string]any{"success": true, "transport_used": result.TransportUsed}
		for k, v := range result.Data {
			out[k] = v
		}
		return out, nil
	}
}

type protocolHandler = func(ctx context.Context, params json.RawMessage) (any, *protocol.Error)

func (d *Daemon) handlePing(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	return map[string]bool{"pong": true}, nil
}

func (d *Daemon) handleList(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	apps, err := d.Provider.ListApplications(ctx)
	if err != nil {
		return nil, &protocol.Error{Code: protocol.CodeTargetNotFound, Message: err.Error()}
	}
	out := make([]map[string]any, len(apps))
	for i, a := range apps {
		out[i] = map[string]any{"name": a.Name, "pid": a.PID, "bundle_id": a.BundleID}
	}
	return out, nil
}

type appParams struct {
	App     string `json:"app"`
	PID     int    `json:"pid"`
	Depth   int    `json:"depth"`
	NoCache bool   `json:"no_cache"`
}

func (d *Daemon) resolveApp(ctx context.Context, appName string, pid int) (model.Application, *protocol.Error) {
	apps, err := d.Provider.ListApplications(ctx)
	if err != nil {
		return model.Application{}, &protocol.Error{Code: protocol.CodeTargetNotFound, Message: err.Error()}
	}
	for _, a := range apps {
		if pid != 0 && a.PID == pid {
			return a, nil
		}
		if appName != "" && a.Name == appName {
			return a, nil
		}
	}
	return model.Application{}, &protocol.Error{Code: protocol.CodeTargetNotFound, Message: "no matching running application"}
}

func (d *Daemon) handleSnapshot(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	var p appParams
	_ = json.Unmarshal(params, &p)

	app, rpcErr := d.resolveApp(ctx, p.App, p.PID)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if cached, transportUsed, insertedAt, ok := d.Cache.Get(app.Name, p.NoCache); ok {
		return map[string]any{
			"snapshot":       cached,
			"transport_used": transportUsed,
			"cache_hit":      true,
			"cached_at":      insertedAt,
		}, nil
	}

	result := d.Router.Execute(ctx, transport.Action{
		Kind: transport.ActionSnapshot, App: app, Depth: p.Depth, NoCache: p.NoCache,
	})
	if !result.Success {
		return nil, &protocol.Error{Code: protocol.CodeTransportFailure, Message: result.Error}
	}
	return map[string]any{
		"snapshot":       result.Data["snapshot"],
		"transport_used": result.TransportUsed,
		"cache_hit":      false,
	}, nil
}

type actParams struct {
	App     string `json:"app"`
	PID     int    `json:"pid"`
	Action  string `json:"action"`
	Ref     string `json:"ref"`
	Value   string `json:"value"`
	Expr    string `json:"expr"`
	Port    int    `json:"port"`
	Timeout int    `json:"timeout"`
}

var actionKinds = map[string]transport.Kind{
	"snapshot": transport.ActionSnapshot,
	"click":    transport.ActionClick,
	"focus":    transport.ActionFocus,
	"fill":     transport.ActionFill,
	"clear":    transport.ActionClear,
	"toggle":   transport.ActionToggle,
	"select":   transport.ActionSelect,
	"eval":     transport.ActionEval,
	"script":   transport.ActionScript,
}

func (d *Daemon) handleAct(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	var p actParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.Error{Code: protocol.CodeInvalidParams, Message: err.Error()}
	}

	kind, ok := actionKinds[p.Action]
	if !ok {
		return nil, &protocol.Error{Code: protocol.CodeUnknownAction, Message: fmt.Sprintf("unknown action %q", p.Action)}
	}

	app, rpcErr := d.resolveApp(ctx, p.App, p.PID)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var timeout time.Duration
	if p.Timeout > 0 {
		timeout = time.Duration(p.Timeout) * time.Second
	}

	result := d.Router.Execute(ctx, transport.Action{
		Kind: kind, App: app, Ref: p.Ref, Value: p.Value, Expr: p.Expr, Port: p.Port, Timeout: timeout,
	})
	if !result.Success {
		return nil, &protocol.Error{Code: protocol.CodeTransportFailure, Message: result.Error}
	}
	out := map[string]any{"success": true, "transport_used": result.TransportUsed}
	for k, v := range result.Data {
		out[k] = v
	}
	return out, nil
}

type pipeParams struct {
	App       string  `json:"app"`
	PID       int     `json:"pid"`
	Action    string  `json:"action"`
	Match     string  `json:"match"`
	Value     string  `json:"value"`
	Strict    bool    `json:"strict"`
	Threshold float64 `json:"threshold"`
	Verbose   bool    `json:"verbose"`
}

// handlePipe implements the fuzzy-match convenience method: take a
// snapshot, score every element against match, and act on the best one.
func (d *Daemon) handlePipe(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	var p pipeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.Error{Code: protocol.CodeInvalidParams, Message: err.Error()}
	}
	if p.Match == "" {
		return nil, &protocol.Error{Code: protocol.CodeMissingMatchParam, Message: "match is required"}
	}

	app, rpcErr := d.resolveApp(ctx, p.App, p.PID)
	if rpcErr != nil {
		return nil, rpcErr
	}

	snapResult := d.Router.Execute(ctx, transport.Action{Kind: transport.ActionSnapshot, App: app})
	if !snapResult.Success {
		return nil, &protocol.Error{Code: protocol.CodeTransportFailure, Message: snapResult.Error}
	}

	candidates := candidatesFromCache(d.Cache, app.Name)
	matches, ambiguous := browserautomation.Best(candidates, p.Match)
	if len(matches) == 0 {
		return nil, &protocol.Error{Code: protocol.CodeNoMatchingElement, Message: fmt.Sprintf("no element matched %q", p.Match)}
	}

	best := matches[0]
	if p.Strict {
		threshold := p.Threshold
		if threshold <= 0 {
			threshold = 0.5
		}
		if best.Confidence < threshold {
			return nil, &protocol.Error{Code: protocol.CodeBelowConfidenceThresh, Message: "match confidence below threshold"}
		}
		if ambiguous {
			return nil, &protocol.Error{Code: protocol.CodeAmbiguousMatch, Message: "match is ambiguous"}
		}
	}

	kind, ok := actionKinds[p.Action]
	if !ok {
		return nil, &protocol.Error{Code: protocol.CodeUnknownAction, Message: fmt.Sprintf("unknown action %q", p.Action)}
	}

	result := d.Router.Execute(ctx, transport.Action{Kind: kind, App: app, Ref: best.Candidate.Ref, Value: p.Value})
	if !result.Success {
		return nil, &protocol.Error{Code: protocol.CodeTransportFailure, Message: result.Error}
	}

	out := map[string]any{
		"success":          true,
		"matched_ref":      best.Candidate.Ref,
		"matched_label":    best.Candidate.VisibleText,
		"match_score":      best.Score,
		"match_confidence": best.Confidence,
	}
	if ambiguous {
		out["ambiguity_warning"] = true
	}
	if p.Verbose {
		runnersUp := make([]map[string]any, 0, len(matches)-1)
		for _, m := range matches[1:] {
			runnersUp = append(runnersUp, map[string]any{"ref": m.Candidate.Ref, "score": m.Score, "confidence": m.Confidence})
		}
		out["runner_ups"] = runnersUp
	}
	return out, nil
}

// candidatesFromCache converts the app's cached snapshot elements into
// fuzzy-match candidates for handlePipe's scoring pass.
func candidatesFromCache(c *cache.Cache, appName string) []browserautomation.Candidate {
	snap, _, _, ok := c.Get(appName, false)
	if !ok {
		return nil
	}
	var out []browserautomation.Candidate
	for _, sec := range snap.Content.Sections {
		for _, el := range sec.Elements {
			out = append(out, browserautomation.Candidate{
				Ref:             el.Ref,
				VisibleText:     el.Label,
				AccessibleLabel: el.Label,
				Placeholder:     el.Placeholder,
				Role:            string(el.Role),
				Value:           el.Value.String(),
				SectionLabel:    sec.Label,
				HasAction:       len(el.Actions) > 0,
			})
		}
	}
	return out
}

func (d *Daemon) handleStatus(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	screen := d.Screen.Snapshot()
	return map[string]any{
		"uptime_seconds": time.Since(d.startedAt).Seconds(),
		"screen": map[string]any{
			"lock":       screen.Lock,
			"display":    screen.Display,
			"foreground": screen.Foreground,
		},
		"cache":          d.Cache.Snapshot(),
		"events":         d.Bus.Snapshot(),
		"connection_pool": d.Pool.Info(),
		"transports": map[string]any{
			"accessibility":   transportHealth(d.Accessibility),
			"browser-debug":   transportHealth(d.BrowserDebug),
			"external-script": transportHealth(d.ExternalScript),
			"browser-automation": transportHealth(d.BrowserAutomation),
		},
	}, nil
}

func transportHealth(t transport.Transport) map[string]any {
	succ, fail, lastUsed := t.Stats().Snapshot()
	return map[string]any{"health": t.Health(), "successes": succ, "failures": fail, "last_used": lastUsed}
}

func (d *Daemon) handleHealth(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	return map[string]any{
		"status":          "ok",
		"uptime_seconds":  d.Server.Uptime().Seconds(),
		"connection_count": d.Server.ConnectionCount(),
	}, nil
}

type eventsParams struct {
	App   string   `json:"app"`
	Types []string `json:"types"`
	Limit int      `json:"limit"`
}

func (d *Daemon) handleEvents(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	var p eventsParams
	_ = json.Unmarshal(params, &p)
	return d.Bus.Query(p.App, p.Types, p.Limit), nil
}

type screenshotParams struct {
	App    string `json:"app"`
	PID    int    `json:"pid"`
	Output string `json:"output"`
}

func (d *Daemon) handleScreenshot(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	var p screenshotParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.Error{Code: protocol.CodeInvalidParams, Message: err.Error()}
	}
	app, rpcErr := d.resolveApp(ctx, p.App, p.PID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	output := p.Output
	if output == "" {
		dir, err := screenshotDir()
		if err != nil {
			return nil, &protocol.Error{Code: protocol.CodeInternalError, Message: err.Error()}
		}
		output = fmt.Sprintf("%s/%d.png", dir, time.Now().UnixNano())
	}
	w, h, err := d.Provider.Screenshot(ctx, app, output)
	if err != nil {
		return nil, &protocol.Error{Code: protocol.CodeTransportFailure, Message: err.Error()}
	}
	return map[string]any{"path": output, "width": w, "height": h}, nil
}

type watchParams struct {
	PID         int      `json:"pid"`
	Log         string   `json:"log"`
	IdleTimeout int      `json:"idle_timeout"`
	Milestones  []string `json:"milestones"`
	Label       string   `json:"label"`
}

func (d *Daemon) handleProcessWatch(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	var p watchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.Error{Code: protocol.CodeInvalidParams, Message: err.Error()}
	}
	if _, exists := d.Tracker.Get(p.PID); exists {
		return nil, &protocol.Error{Code: protocol.CodeAlreadyWatching, Message: "already watching pid"}
	}
	d.Tracker.Watch(p.PID, p.Label)
	return map[string]any{
		"watching":       true,
		"pid":            p.PID,
		"log_path":       p.Log,
		"idle_timeout_s": p.IdleTimeout,
		"milestones":     p.Milestones,
	}, nil
}

func (d *Daemon) handleProcessUnwatch(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	var p struct {
		PID int `json:"pid"`
	}
	_ = json.Unmarshal(params, &p)
	if !d.Tracker.Unwatch(p.PID) {
		return nil, &protocol.Error{Code: protocol.CodeNotTracked, Message: "pid not tracked"}
	}
	return map[string]any{"unwatched": true, "pid": p.PID}, nil
}

func (d *Daemon) handleProcessGroupAdd(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	var p struct {
		PID   int    `json:"pid"`
		Label string `json:"label"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &protocol.Error{Code: protocol.CodeInvalidParams, Message: err.Error()}
	}
	if _, exists := d.Tracker.Get(p.PID); exists {
		return nil, &protocol.Error{Code: protocol.CodeAlreadyTracked, Message: "pid already tracked"}
	}
	d.Tracker.Watch(p.PID, p.Label)
	return map[string]any{"added": true, "pid": p.PID}, nil
}

func (d *Daemon) handleProcessGroupRemove(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	var p struct {
		PID int `json:"pid"`
	}
	_ = json.Unmarshal(params, &p)
	if !d.Tracker.Unwatch(p.PID) {
		return nil, &protocol.Error{Code: protocol.CodeNotTracked, Message: "pid not tracked"}
	}
	return map[string]any{"removed": true, "pid": p.PID}, nil
}

func (d *Daemon) handleProcessGroupClear(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	d.Tracker.Clear()
	return map[string]any{"cleared": true}, nil
}

func (d *Daemon) handleProcessGroupStatus(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	return map[string]any{"processes": d.Tracker.List()}, nil
}
