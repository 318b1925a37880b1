package remotebridge

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cua-dev/cuad/internal/protocol"
)

type fakeDispatcher struct {
	calledMethod string
	calledID     any
	resp         protocol.Response
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, id any, method string, params json.RawMessage) protocol.Response {
	f.calledMethod = method
	f.calledID = id
	return f.resp
}

func sign(secret, ts, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCanServe_RequiresSecret(t *testing.T) {
	b := &Bridge{}
	assert.False(t, b.CanServe())
	b.Secret = "s"
	assert.True(t, b.CanServe())
}

func TestHandleRPC_ValidSignatureDispatches(t *testing.T) {
	disp := &fakeDispatcher{resp: protocol.Success("1", "ok")}
	b := &Bridge{Dispatcher: disp, Secret: "topsecret"}

	body := []byte(`{"id":"1","method":"ping","params":null}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := sign(b.Secret, ts, string(body))

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	req.Header.Set("X-Cuad-Timestamp", ts)
	req.Header.Set("X-Cuad-Signature", sig)
	rec := httptest.NewRecorder()

	b.handleRPC(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ping", disp.calledMethod)
}

func TestHandleRPC_WrongSignatureRejected(t *testing.T) {
	disp := &fakeDispatcher{}
	b := &Bridge{Dispatcher: disp, Secret: "topsecret"}

	body := []byte(`{"id":"1","method":"ping"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	req.Header.Set("X-Cuad-Timestamp", ts)
	req.Header.Set("X-Cuad-Signature", "deadbeef")
	rec := httptest.NewRecorder()

	b.handleRPC(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, disp.calledMethod)
}

func TestHandleRPC_StaleTimestampRejected(t *testing.T) {
	disp := &fakeDispatcher{}
	b := &Bridge{Dispatcher: disp, Secret: "topsecret"}

	body := []byte(`{"id":"1","method":"ping"}`)
	ts := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	sig := sign(b.Secret, ts, string(body))

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	req.Header.Set("X-Cuad-Timestamp", ts)
	req.Header.Set("X-Cuad-Signature", sig)
	rec := httptest.NewRecorder()

	b.handleRPC(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleRPC_RejectsNonPost(t *testing.T) {
	b := &Bridge{Dispatcher: &fakeDispatcher{}, Secret: "s"}
	req := httptest.NewRequest(http.MethodGet, "/rpc", nil)
	rec := httptest.NewRecorder()

	b.handleRPC(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListenAddr_LoopbackVsLan(t *testing.T) {
	b := &Bridge{Port: 9999}
	assert.Equal(t, "127.0.0.1:9999", b.listenAddr())

	b.BindMode = "lan"
	assert.Equal(t, "0.0.0.0:9999", b.listenAddr())

	b2 := &Bridge{}
	assert.Equal(t, "127.0.0.1:8787", b2.listenAddr())
}
