// Package browserdebug implements ConnectionPool (§4.3) and
// BrowserDebugTransport (§4.4): long-lived WebSocket sessions to an
// embedded debugger, and the transport that executes `eval` over them.
package browserdebug

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cua-dev/cuad/internal/model"
)

// DefaultPorts is the known set of debugger ports probed on discovery.
var DefaultPorts = []int{9222, 9229}

const (
	discoveryInterval = 60 * time.Second
	pingInterval      = 30 * time.Second
	pingTimeout       = 5 * time.Second
	httpProbeTimeout  = 2 * time.Second
)

// Info is the connection info surfaced for status reporting (§4.3).
type Info struct {
	Port        int
	Health      model.Health
	PageCount   int
	LastPingRTT time.Duration
}

type session struct {
	mu          sync.Mutex
	port        int
	conn        *websocket.Conn
	health      model.Health
	pageCount   int
	lastPingRTT time.Duration
	nextID      int64
	httpTarget  string
}

// Pool is the ConnectionPool.
type Pool struct {
	ports []int
	log   *zap.Logger

	mu       sync.Mutex
	sessions map[int]*session

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs a ConnectionPool over the given ports (defaults to
// DefaultPorts when nil) and starts its background discovery/keep-alive
// loops.
func New(ports []int, log *zap.Logger) *Pool {
	if ports == nil {
		ports = DefaultPorts
	}
	p := &Pool{ports: ports, log: log, sessions: make(map[int]*session), stopCh: make(chan struct{})}
	go p.discoveryLoop()
	go p.keepAliveLoop()
	return p
}

// Close stops background loops and closes all live sessions.
func (p *Pool) Close() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.sessions {
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.mu.Unlock()
	}
}

func (p *Pool) discoveryLoop() {
	p.discoverOnce(context.Background())
	ticker := time.NewTicker(discoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.discoverOnce(context.Background())
		}
	}
}

func (p *Pool) discoverOnce(ctx context.Context) {
	for _, port := range p.ports {
		p.discoverPort(ctx, port)
	}
}

type targetInfo struct {
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

func (p *Pool) discoverPort(ctx context.Context, port int) {
	p.mu.Lock()
	s, ok := p.sessions[port]
	if !ok {
		s = &session{port: port, health: model.HealthUnknown}
		p.sessions[port] = s
	}
	p.mu.Unlock()

	s.mu.Lock()
	alreadyLive := s.conn != nil
	s.mu.Unlock()
	if alreadyLive {
		return
	}

	client := &http.Client{Timeout: httpProbeTimeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d/json", port), nil)
	if err != nil {
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		p.markDead(s)
		return
	}
	defer resp.Body.Close()

	var targets []targetInfo
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		p.markDead(s)
		return
	}
	for _, tgt := range targets {
		if tgt.WebSocketDebuggerURL == "" {
			continue
		}
		p.connect(s, tgt.WebSocketDebuggerURL)
		return
	}
	p.markDead(s)
}

func (p *Pool) connect(s *session, wsURL string) {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.health = model.HealthDead
		return
	}
	s.conn = conn
	s.health = model.HealthHealthy
	s.pageCount = 1
	s.httpTarget = wsURL
}

func (p *Pool) markDead(s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = nil
	s.health = model.HealthReconnecting
	s.pageCount = 0
}

func (p *Pool) keepAliveLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pingAll()
		}
	}
}

func (p *Pool) pingAll() {
	p.mu.Lock()
	sessions := make([]*session, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()

	for _, s := range sessions {
		p.ping(s)
	}
}

func (p *Pool) ping(s *session) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	start := time.Now()
	_ = conn.SetWriteDeadline(time.Now().Add(pingTimeout))
	if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		p.markDead(s)
		return
	}

	s.mu.Lock()
	s.lastPingRTT = time.Since(start)
	s.mu.Unlock()
}

// Execute sends a single eval request and awaits its reply on the live
// session for port, using a monotonically increasing session-scoped
// message id and a single-outstanding discipline (§4.3).
func (p *Pool) Execute(ctx context.Context, port int, method string, params map[string]any) (json.RawMessage, error) {
	p.mu.Lock()
	s, ok := p.sessions[port]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("browserdebug: no session for port %d", port)
	}

	s.mu.Lock()
	conn := s.conn
	id := atomic.AddInt64(&s.nextID, 1)
	s.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("browserdebug: port %d not connected", port)
	}

	req := map[string]any{"id": id, "method": method, "params": params}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	}
	if err := conn.WriteJSON(req); err != nil {
		p.markDead(s)
		return nil, err
	}

	var reply struct {
		ID     int64           `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	for {
		if err := conn.ReadJSON(&reply); err != nil {
			p.markDead(s)
			return nil, err
		}
		if reply.ID != id {
			continue
		}
		if reply.Error != nil {
			return nil, fmt.Errorf("browserdebug: %s", reply.Error.Message)
		}
		return reply.Result, nil
	}
}

// Info returns the per-port status snapshot (§4.3).
func (p *Pool) Info() []Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Info, 0, len(p.sessions))
	for _, s := range p.sessions {
		s.mu.Lock()
		out = append(out, Info{Port: s.port, Health: s.health, PageCount: s.pageCount, LastPingRTT: s.lastPingRTT})
		s.mu.Unlock()
	}
	return out
}

// ConnectedPort returns the port of any currently-live session, or 0/false.
func (p *Pool) ConnectedPort() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.sessions {
		s.mu.Lock()
		live := s.conn != nil
		s.mu.Unlock()
		if live {
			return s.port, true
		}
	}
	return 0, false
}
