package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_NumericID(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"ping","params":{},"id":1}`), &req))
	assert.Equal(t, "ping", req.Method)
	assert.EqualValues(t, 1, req.ID)
	assert.False(t, req.HasInvalidID())
}

func TestRequest_StringID(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"ping","id":"abc"}`), &req))
	assert.Equal(t, "abc", req.ID)
	assert.False(t, req.HasInvalidID())
}

func TestRequest_AbsentIDIsNotification(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"ping"}`), &req))
	assert.False(t, req.HasInvalidID())
	assert.Nil(t, req.ID)
}

func TestRequest_ExplicitNullIDIsInvalid(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"ping","id":null}`), &req))
	assert.True(t, req.HasInvalidID())
}

func TestRequest_NonScalarIDIsInvalid(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"ping","id":[1,2]}`), &req))
	assert.True(t, req.HasInvalidID())
}

func TestSuccessAndFailure(t *testing.T) {
	ok := Success(1, map[string]bool{"pong": true})
	assert.Equal(t, "2.0", ok.JSONRPC)
	assert.Nil(t, ok.Error)

	fail := Failure(1, CodeTargetNotFound, "not found")
	require.NotNil(t, fail.Error)
	assert.Equal(t, CodeTargetNotFound, fail.Error.Code)
	assert.Equal(t, "not found", fail.Error.Message)
}
