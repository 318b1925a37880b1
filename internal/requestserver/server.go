// Package requestserver implements RequestServer (§4.12): a Unix-socket
// listener framing newline-delimited JSON-RPC requests, dispatching them
// to method handlers, and returning one JSON response per line.
package requestserver

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cua-dev/cuad/internal/protocol"
	"github.com/cua-dev/cuad/internal/state"
	"github.com/cua-dev/cuad/internal/util"
)

// maxLineBytes is the longest request line that is processed. A longer
// line is read in full and then dropped without a response.
const maxLineBytes = 8 << 20

// Handler processes one method call and returns its result or an error.
type Handler func(ctx context.Context, params json.RawMessage) (any, *protocol.Error)

// Server is the RequestServer.
type Server struct {
	log      *zap.Logger
	handlers map[string]Handler

	mu         sync.RWMutex
	methodOverride map[string]time.Duration

	listener net.Listener
	connCount int64
	startedAt time.Time

	wg sync.WaitGroup
}

// New constructs a Server with an empty method table.
func New(log *zap.Logger) *Server {
	return &Server{log: log, handlers: make(map[string]Handler), methodOverride: make(map[string]time.Duration)}
}

// Register adds a method handler, optionally overriding the default
// per-call timeout for that method.
func (s *Server) Register(method string, timeout time.Duration, h Handler) {
	s.handlers[method] = h
	if timeout > 0 {
		s.methodOverride[method] = timeout
	}
}

// ConnectionCount returns the number of connections accepted since start,
// surfaced by the `health` method.
func (s *Server) ConnectionCount() int64 { return atomic.LoadInt64(&s.connCount) }

// Uptime returns elapsed time since Listen succeeded.
func (s *Server) Uptime() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// Listen removes any stale socket/pid file, binds the Unix socket at
// state.SocketPath(), writes the pid file, and starts accepting
// connections in the background. Call Close to stop and clean up.
func (s *Server) Listen() error {
	sockPath, err := state.SocketPath()
	if err != nil {
		return err
	}
	if err := state.EnsureDir(sockPath); err != nil {
		return err
	}
	removeStale(sockPath)

	pidPath, err := state.PIDFile()
	if err == nil {
		_ = state.EnsureDir(pidPath)
		_ = os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600)
	}

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return err
	}
	s.listener = ln
	s.startedAt = time.Now()

	util.SafeGo(s.acceptLoop)
	return nil
}

// Close stops accepting connections and removes the socket and pid files
// (§4.12, §5's termination-signal cleanup).
func (s *Server) Close() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if sockPath, err := state.SocketPath(); err == nil {
		_ = os.Remove(sockPath)
	}
	if pidPath, err := state.PIDFile(); err == nil {
		_ = os.Remove(pidPath)
	}
}

func removeStale(sockPath string) {
	if _, err := os.Stat(sockPath); err == nil {
		_ = os.Remove(sockPath)
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		atomic.AddInt64(&s.connCount, 1)
		s.wg.Add(1)
		util.SafeGo(func() {
			defer s.wg.Done()
			s.serveConn(conn)
		})
	}
}

// serveConn processes requests on one connection serially, in order
// received, so responses on this connection are never reordered (§5).
// Different connections proceed in parallel.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReaderSize(conn, 4096)
	encMu := sync.Mutex{}

	for {
		line, err := readLine(reader, maxLineBytes)
		if err != nil {
			return
		}
		if len(line) == 0 {
			continue
		}

		resp := s.handleLine(line)

		encMu.Lock()
		_ = json.NewEncoder(conn).Encode(resp)
		encMu.Unlock()
	}
}

// Dispatch runs one method call through the same handler table and
// per-method timeout used for socket-framed requests. RemoteBridge uses
// this to proxy HTTP-delivered calls without duplicating the dispatch
// table or timeout policy.
func (s *Server) Dispatch(ctx context.Context, id any, method string, params json.RawMessage) protocol.Response {
	handler, ok := s.handlers[method]
	if !ok {
		return protocol.Failure(id, protocol.CodeMethodNotFound, "method not found: "+method)
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeoutFor(method))
	defer cancel()
	result, rpcErr := handler(callCtx, params)
	if rpcErr != nil {
		return protocol.Failure(id, rpcErr.Code, rpcErr.Message)
	}
	return protocol.Success(id, result)
}

func (s *Server) handleLine(line []byte) protocol.Response {
	var req protocol.Request
	if err := json.Unmarshal(line, &req); err != nil {
		return protocol.Failure(nil, protocol.CodeParseError, "parse error")
	}
	if req.HasInvalidID() {
		return protocol.Failure(nil, protocol.CodeInvalidRequest, "invalid id")
	}
	if req.Method == "" {
		return protocol.Failure(req.ID, protocol.CodeInvalidRequest, "missing method")
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		return protocol.Failure(req.ID, protocol.CodeMethodNotFound, "method not found: "+req.Method)
	}

	// Bounded by the method's timeout; handlers honor ctx to abandon a
	// transport call if it runs long (§5's suspension/cancellation model).
	ctx, cancel := context.WithTimeout(context.Background(), s.timeoutFor(req.Method))
	defer cancel()

	result, rpcErr := handler(ctx, req.Params)
	if rpcErr != nil {
		return protocol.Failure(req.ID, rpcErr.Code, rpcErr.Message)
	}
	return protocol.Success(req.ID, result)
}

// readLine reads one newline-terminated frame, mirroring the daemon's
// line-delimited protocol (§6): one JSON object per line.
func readLine(r *bufio.Reader, maxBytes int) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	if len(line) > maxBytes {
		return nil, err
	}
	return trimEOL(line), nil
}

func trimEOL(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func (s *Server) timeoutFor(method string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.methodOverride[method]; ok {
		return t
	}
	return defaultTimeout(method)
}

