package browserdebug

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cua-dev/cuad/internal/model"
	"github.com/cua-dev/cuad/internal/transport"
)

// Name is this transport's stable identifier.
const Name = "browser-debug"

// Transport is BrowserDebugTransport: executes `eval` actions over the
// shared ConnectionPool, falling back to a cold, short-lived session on
// any pool-level error (§4.4).
type Transport struct {
	pool  *Pool
	log   *zap.Logger
	stats model.TransportStats

	coldFallbacks model.TransportStats
}

// NewTransport constructs a BrowserDebugTransport over the given pool.
func NewTransport(pool *Pool, log *zap.Logger) *Transport {
	return &Transport{pool: pool, log: log}
}

func (t *Transport) Name() string { return Name }

func (t *Transport) CanHandle(appName, bundleID string) bool {
	_, ok := t.pool.ConnectedPort()
	return ok
}

func (t *Transport) Health() model.Health {
	if _, ok := t.pool.ConnectedPort(); !ok {
		return model.HealthReconnecting
	}
	return t.stats.DerivedHealth()
}

func (t *Transport) Compatible(kind transport.Kind) bool { return kind == transport.ActionEval }

func (t *Transport) Stats() *model.TransportStats { return &t.stats }

func (t *Transport) Execute(ctx context.Context, action transport.Action) transport.Result {
	if action.Kind != transport.ActionEval {
		t.stats.RecordFailure()
		return transport.Result{Success: false, Error: fmt.Sprintf("browser-debug: unsupported action %q", action.Kind), TransportUsed: Name}
	}

	port := action.Port
	if port == 0 {
		if p, ok := t.pool.ConnectedPort(); ok {
			port = p
		}
	}

	timeout := action.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := t.pool.Execute(evalCtx, port, "Runtime.evaluate", map[string]any{"expression": action.Expr, "returnByValue": true})
	if err != nil {
		raw, err = t.coldEval(evalCtx, port, action.Expr)
		if err != nil {
			t.stats.RecordFailure()
			return transport.Result{Success: false, Error: err.Error(), TransportUsed: Name}
		}
	}

	t.stats.RecordSuccess()
	return transport.Result{
		Success:       true,
		Data:          map[string]model.Value{"result": model.NewString(string(raw))},
		TransportUsed: Name,
	}
}

// coldEval opens a fresh, short-lived session directly against the
// debugger's HTTP target list, bypassing the long-lived pool entirely —
// the fallback path described in §4.4 for any pool-level error.
func (t *Transport) coldEval(ctx context.Context, port int, expr string) (json.RawMessage, error) {
	client := &http.Client{Timeout: httpProbeTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d/json", port), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("browser-debug: cold path discovery failed: %w", err)
	}
	defer resp.Body.Close()

	var targets []targetInfo
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, err
	}
	var wsURL string
	for _, tgt := range targets {
		if tgt.WebSocketDebuggerURL != "" {
			wsURL = tgt.WebSocketDebuggerURL
			break
		}
	}
	if wsURL == "" {
		return nil, fmt.Errorf("browser-debug: cold path found no debuggable target on port %d", port)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	}
	req2 := map[string]any{"id": 1, "method": "Runtime.evaluate", "params": map[string]any{"expression": expr, "returnByValue": true}}
	if err := conn.WriteJSON(req2); err != nil {
		return nil, err
	}
	var reply struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := conn.ReadJSON(&reply); err != nil {
		return nil, err
	}
	if reply.Error != nil {
		return nil, fmt.Errorf("browser-debug: %s", reply.Error.Message)
	}
	t.coldFallbacks.RecordSuccess()
	return reply.Result, nil
}
