package processtracker

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cua-dev/cuad/internal/eventbus"
	"github.com/cua-dev/cuad/internal/model"
)

func tempResolver(t *testing.T) PathResolver {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.json")
	return func() (string, error) { return path, nil }
}

func alwaysAlive(int) bool { return true }

func TestWatchAndGet(t *testing.T) {
	bus := eventbus.New(nil)
	tr := New(tempResolver(t), bus, nil, alwaysAlive)
	defer tr.Close()

	tr.Watch(123, "build")
	p, ok := tr.Get(123)
	require.True(t, ok)
	assert.Equal(t, model.ProcessStarting, p.State)
	assert.Equal(t, "build", p.Label)
}

func TestOnEvent_ToolStartTestPatternGoesToTesting(t *testing.T) {
	bus := eventbus.New(nil)
	tr := New(tempResolver(t), bus, nil, alwaysAlive)
	defer tr.Close()
	tr.Watch(1, "")

	bus.Publish(model.Event{
		Type: model.EventProcessToolStart,
		PID:  1,
		Details: map[string]model.Value{
			"detail": model.NewString("running go test ./..."),
		},
	})

	require.Eventually(t, func() bool {
		p, _ := tr.Get(1)
		return p.State == model.ProcessTesting
	}, time.Second, 10*time.Millisecond)
}

func TestOnEvent_ToolStartNonTestGoesToBuilding(t *testing.T) {
	bus := eventbus.New(nil)
	tr := New(tempResolver(t), bus, nil, alwaysAlive)
	defer tr.Close()
	tr.Watch(1, "")

	bus.Publish(model.Event{
		Type:    model.EventProcessToolStart,
		PID:     1,
		Details: map[string]model.Value{"detail": model.NewString("cargo build --release")},
	})

	require.Eventually(t, func() bool {
		p, _ := tr.Get(1)
		return p.State == model.ProcessBuilding
	}, time.Second, 10*time.Millisecond)
}

func TestOnEvent_WordBoundaryAnchoring(t *testing.T) {
	// "go testing-utils" must not match the "go test" pattern: the substring
	// is followed by a word character, so it's not anchored.
	assert.False(t, isTestPattern("go testing-utils --flag"))
	assert.True(t, isTestPattern("cd project && go test ./..."))
	assert.True(t, isTestPattern("GO TEST ./..."), "matching must be case-insensitive")
}

func TestOnEvent_TerminalStateNeverRegresses(t *testing.T) {
	bus := eventbus.New(nil)
	tr := New(tempResolver(t), bus, nil, alwaysAlive)
	defer tr.Close()
	tr.Watch(1, "")

	bus.Publish(model.Event{Type: model.EventProcessExit, PID: 1, Details: map[string]model.Value{"exit_code": model.NewInt(0)}})

	require.Eventually(t, func() bool {
		p, _ := tr.Get(1)
		return p.State == model.ProcessDone
	}, time.Second, 10*time.Millisecond)

	bus.Publish(model.Event{Type: model.EventProcessToolStart, PID: 1, Details: map[string]model.Value{"detail": model.NewString("go test")}})
	time.Sleep(50 * time.Millisecond)

	p, _ := tr.Get(1)
	assert.Equal(t, model.ProcessDone, p.State, "a terminal state must never be exited")
}

func TestOnEvent_ExitNonZeroIsFailed(t *testing.T) {
	bus := eventbus.New(nil)
	tr := New(tempResolver(t), bus, nil, alwaysAlive)
	defer tr.Close()
	tr.Watch(1, "")

	bus.Publish(model.Event{Type: model.EventProcessExit, PID: 1, Details: map[string]model.Value{"exit_code": model.NewInt(1)}})

	require.Eventually(t, func() bool {
		p, _ := tr.Get(1)
		return p.State == model.ProcessFailed
	}, time.Second, 10*time.Millisecond)
	p, _ := tr.Get(1)
	require.NotNil(t, p.ExitCode)
	assert.Equal(t, 1, *p.ExitCode)
}

func TestSweepStale_MarksGoneProcessesFailed(t *testing.T) {
	resolver := tempResolver(t)
	bus := eventbus.New(nil)
	tr := New(resolver, bus, nil, alwaysAlive)
	tr.Watch(99, "stale")
	tr.Close()

	neverAlive := func(int) bool { return false }
	tr2 := New(resolver, eventbus.New(nil), nil, neverAlive)
	defer tr2.Close()

	p, ok := tr2.Get(99)
	require.True(t, ok)
	assert.Equal(t, model.ProcessFailed, p.State)
}

func TestPersistence_SurvivesReload(t *testing.T) {
	resolver := tempResolver(t)
	bus := eventbus.New(nil)
	tr := New(resolver, bus, nil, alwaysAlive)
	tr.Watch(7, "persisted")
	tr.Close()

	tr2 := New(resolver, eventbus.New(nil), nil, alwaysAlive)
	defer tr2.Close()
	p, ok := tr2.Get(7)
	require.True(t, ok)
	assert.Equal(t, "persisted", p.Label)
}

func TestUnwatchAndClear(t *testing.T) {
	bus := eventbus.New(nil)
	tr := New(tempResolver(t), bus, nil, alwaysAlive)
	defer tr.Close()

	tr.Watch(1, "a")
	tr.Watch(2, "b")
	assert.True(t, tr.Unwatch(1))
	assert.False(t, tr.Unwatch(1))
	assert.Len(t, tr.List(), 1)

	tr.Clear()
	assert.Empty(t, tr.List())
}
