package browserdebug

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecute_NoSessionForPortIsAnError(t *testing.T) {
	pool := New([]int{1}, nil)
	defer pool.Close()

	_, err := pool.Execute(context.Background(), 9999, "Runtime.evaluate", nil)
	assert.Error(t, err)
}

func TestConnectedPort_FalseWhenNothingLive(t *testing.T) {
	pool := New([]int{1}, nil)
	defer pool.Close()

	_, ok := pool.ConnectedPort()
	assert.False(t, ok)
}

func TestInfo_EmptyBeforeAnyDiscovery(t *testing.T) {
	pool := &Pool{ports: []int{1}, sessions: make(map[int]*session), stopCh: make(chan struct{})}
	defer pool.Close()

	assert.Empty(t, pool.Info())
}
