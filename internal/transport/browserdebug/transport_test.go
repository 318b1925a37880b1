package browserdebug

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cua-dev/cuad/internal/model"
	"github.com/cua-dev/cuad/internal/transport"
)

func unreachablePool() *Pool {
	return New([]int{1}, nil)
}

func TestCanHandle_FalseWithNoConnectedPort(t *testing.T) {
	pool := unreachablePool()
	defer pool.Close()
	tr := NewTransport(pool, nil)
	assert.False(t, tr.CanHandle("Chrome", ""))
}

func TestHealth_ReconnectingWithNoConnectedPort(t *testing.T) {
	pool := unreachablePool()
	defer pool.Close()
	tr := NewTransport(pool, nil)
	assert.Equal(t, model.HealthReconnecting, tr.Health())
}

func TestCompatible_OnlyEvalAction(t *testing.T) {
	tr := NewTransport(unreachablePool(), nil)
	defer tr.pool.Close()
	assert.True(t, tr.Compatible(transport.ActionEval))
	assert.False(t, tr.Compatible(transport.ActionSnapshot))
}

func TestExecute_WrongKindFailsImmediately(t *testing.T) {
	pool := unreachablePool()
	defer pool.Close()
	tr := NewTransport(pool, nil)

	result := tr.Execute(context.Background(), transport.Action{Kind: transport.ActionSnapshot})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unsupported action")
}
