// Package remotebridge implements RemoteBridge (component C13, §1): an
// optional HMAC-authenticated HTTP proxy that forwards pairing-based
// remote calls into the daemon's existing RequestServer dispatch table.
// The pairing ceremony itself is specified as deferred (§1, §GLOSSARY);
// this package implements the authenticated-proxy half against a
// pre-shared secret configured out of band, in the config file's
// remote_bridge block.
package remotebridge

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cua-dev/cuad/internal/protocol"
	"github.com/cua-dev/cuad/internal/util"
)

// Dispatcher is the subset of requestserver.Server the bridge depends on,
// kept narrow so this package never imports requestserver's socket-framing
// internals.
type Dispatcher interface {
	Dispatch(ctx context.Context, id any, method string, params json.RawMessage) protocol.Response
}

// clockSkew is the maximum age (in either direction) a signed request's
// timestamp header may have before it is rejected as stale or replayed.
const clockSkew = 30 * time.Second

// rpcEnvelope is the HTTP request body: a single JSON-RPC call, same
// shape as a socket-framed line (§6).
type rpcEnvelope struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Bridge is the HMAC-authenticated HTTP proxy. BindMode and Port select
// the listen address; Secret is the shared pairing secret; a zero Secret
// disables the bridge entirely (CanServe returns false).
type Bridge struct {
	Dispatcher Dispatcher
	Log        *zap.Logger

	BindMode string // "loopback" or "lan"
	Port     int
	Secret   string
	TokenTTL time.Duration

	server *http.Server
}

// CanServe reports whether the bridge has enough configuration to start
// (a non-empty shared secret). Call sites should skip Start entirely
// when this is false rather than serve an always-401 endpoint.
func (b *Bridge) CanServe() bool { return b.Secret != "" }

// Start binds and begins serving in the background. Close stops it.
func (b *Bridge) Start() error {
	addr := b.listenAddr()
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", b.handleRPC)
	b.server = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("remotebridge: listen %s: %w", addr, err)
	}
	util.SafeGo(func() {
		if err := b.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			if b.Log != nil {
				b.Log.Sugar().Warnw("remote bridge server stopped", "error", err)
			}
		}
	})
	return nil
}

// Close shuts the HTTP server down.
func (b *Bridge) Close() {
	if b.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = b.server.Shutdown(ctx)
	}
}

func (b *Bridge) listenAddr() string {
	host := "127.0.0.1"
	if b.BindMode == "lan" {
		host = "0.0.0.0"
	}
	port := b.Port
	if port <= 0 {
		port = 8787
	}
	return host + ":" + strconv.Itoa(port)
}

// handleRPC authenticates the request via HMAC-SHA256 over
// "<timestamp>.<body>" using the shared secret, then forwards the call to
// the daemon's dispatch table exactly as a local socket client would.
func (b *Bridge) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		util.JSONResponse(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		util.JSONResponse(w, http.StatusBadRequest, map[string]string{"error": "body read failed"})
		return
	}

	if !b.verifySignature(r, body) {
		util.JSONResponse(w, http.StatusUnauthorized, map[string]string{"error": "invalid or stale signature"})
		return
	}

	var env rpcEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		util.JSONResponse(w, http.StatusBadRequest, map[string]string{"error": "malformed request"})
		return
	}

	resp := b.Dispatcher.Dispatch(r.Context(), env.ID, env.Method, env.Params)
	util.JSONResponse(w, http.StatusOK, resp)
}

func (b *Bridge) verifySignature(r *http.Request, body []byte) bool {
	ts := r.Header.Get("X-Cuad-Timestamp")
	sig := r.Header.Get("X-Cuad-Signature")
	if ts == "" || sig == "" {
		return false
	}
	seconds, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	sentAt := time.Unix(seconds, 0)
	if d := time.Since(sentAt); d > clockSkew || d < -clockSkew {
		return false
	}

	mac := hmac.New(sha256.New, []byte(b.Secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sig))
}
