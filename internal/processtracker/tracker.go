// Package processtracker implements ProcessTracker (§4.11): a state
// machine over watched external processes, driven entirely by events
// published on the EventBus, persisted atomically to a single file.
package processtracker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cua-dev/cuad/internal/eventbus"
	"github.com/cua-dev/cuad/internal/model"
)

// testPatterns is the closed, case-insensitive substring set over tool
// name or command identifying a test run (§4.11, §6). Matches are
// anchored at word boundaries so an unrelated argument merely containing
// one of these substrings does not misclassify the tool call (§9 open
// question, resolved in favor of word-boundary anchoring).
var testPatterns = []string{
	"cargo test", "go test", "pytest", "npm test", "npm run test",
	"yarn test", "jest", "mocha", "rspec", "phpunit", "dotnet test",
	"gradle test", "mvn test", "ctest", "bazel test", "swift test",
}

// PathResolver resolves the persisted-state path; injected so tests
// can redirect it.
type PathResolver func() (string, error)

// Tracker is the ProcessTracker.
type Tracker struct {
	pathResolver PathResolver
	bus          *eventbus.Bus
	log          *zap.Logger

	mu    sync.Mutex
	store model.TrackerStore

	sub eventbus.Subscription
}

// New constructs a ProcessTracker, loads any persisted state, performs
// the startup-time stale-process sweep, and subscribes to process.* events.
func New(pathResolver PathResolver, bus *eventbus.Bus, log *zap.Logger, pidAlive func(pid int) bool) *Tracker {
	t := &Tracker{
		pathResolver: pathResolver,
		bus:          bus,
		log:          log,
		store:        model.TrackerStore{Processes: make(map[int]*model.TrackedProcess)},
	}
	t.load()
	t.sweepStale(pidAlive)
	t.sub = bus.Subscribe(t.onEvent,
		model.EventProcessToolStart, model.EventProcessToolEnd, model.EventProcessMessage,
		model.EventProcessError, model.EventProcessIdle, model.EventProcessExit)
	return t
}

// Close unsubscribes from the event bus.
func (t *Tracker) Close() {
	t.bus.Unsubscribe(t.sub)
}

// Watch begins tracking pid under label.
func (t *Tracker) Watch(pid int, label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.store.Processes[pid]; exists {
		return
	}
	t.store.Processes[pid] = &model.TrackedProcess{
		PID: pid, Label: label, State: model.ProcessStarting, StartTime: time.Now(), LastEventTime: time.Now(),
	}
	t.persistLocked()
}

// Unwatch stops tracking pid.
func (t *Tracker) Unwatch(pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.store.Processes[pid]; !exists {
		return false
	}
	delete(t.store.Processes, pid)
	t.persistLocked()
	return true
}

// Get returns the tracked process for pid, if any.
func (t *Tracker) Get(pid int) (model.TrackedProcess, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.store.Processes[pid]
	if !ok {
		return model.TrackedProcess{}, false
	}
	return *p, true
}

// List returns a snapshot of all tracked processes.
func (t *Tracker) List() []model.TrackedProcess {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.TrackedProcess, 0, len(t.store.Processes))
	for _, p := range t.store.Processes {
		out = append(out, *p)
	}
	return out
}

// Clear removes all tracked processes.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.Processes = make(map[int]*model.TrackedProcess)
	t.persistLocked()
}

func (t *Tracker) onEvent(e model.Event) {
	if e.PID == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.store.Processes[e.PID]
	if !ok || p.State.Terminal() {
		return
	}

	changed := false
	detail := detailOf(e)

	switch e.Type {
	case model.EventProcessToolStart:
		next := model.ProcessBuilding
		if isTestPattern(detail) {
			next = model.ProcessTesting
		}
		changed = p.State != next
		p.State = next
	case model.EventProcessToolEnd:
		// No state change; detail is updated below regardless.
	case model.EventProcessError:
		changed = p.State != model.ProcessError
		p.State = model.ProcessError
	case model.EventProcessIdle:
		changed = p.State != model.ProcessIdle
		p.State = model.ProcessIdle
	case model.EventProcessExit:
		code := exitCode(e)
		next := model.ProcessFailed
		if code == 0 {
			next = model.ProcessDone
		}
		changed = p.State != next
		p.State = next
		p.ExitCode = &code
	}

	p.LastEventType = e.Type
	p.LastEventTime = e.Timestamp
	p.LastDetail = detail
	t.persistLocked()

	if changed {
		t.bus.Publish(model.Event{
			Type: model.EventProcessGroupStateChange,
			PID:  e.PID,
			Details: map[string]model.Value{
				"state": model.NewString(string(p.State)),
				"label": model.NewString(p.Label),
			},
		})
	}
}

func detailOf(e model.Event) string {
	if e.Details == nil {
		return ""
	}
	if v, ok := e.Details["detail"]; ok {
		return v.String()
	}
	if v, ok := e.Details["command"]; ok {
		return v.String()
	}
	return ""
}

func exitCode(e model.Event) int {
	if e.Details == nil {
		return 0
	}
	if v, ok := e.Details["exit_code"]; ok {
		return int(v.Int())
	}
	return 0
}

// isTestPattern reports whether command contains one of the closed test
// patterns, anchored at word boundaries so e.g. "go testing-utils"
// doesn't falsely match "go test" inside an unrelated token run.
func isTestPattern(command string) bool {
	lower := strings.ToLower(command)
	for _, pattern := range testPatterns {
		if containsWordBoundary(lower, pattern) {
			return true
		}
	}
	return false
}

func containsWordBoundary(haystack, needle string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], needle)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(needle)
		beforeOK := start == 0 || !isWordChar(haystack[start-1])
		afterOK := end == len(haystack) || !isWordChar(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// sweepStale marks as failed any stored, non-terminal process whose pid
// no longer exists (§4.11's startup-time sweep).
func (t *Tracker) sweepStale(pidAlive func(pid int) bool) {
	if pidAlive == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := false
	for _, p := range t.store.Processes {
		if !p.State.Terminal() && !pidAlive(p.PID) {
			p.State = model.ProcessFailed
			p.LastDetail = "process not found at daemon startup"
			p.LastEventTime = time.Now()
			changed = true
		}
	}
	if changed {
		t.persistLocked()
	}
}

func (t *Tracker) load() {
	path, err := t.pathResolver()
	if err != nil {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var store model.TrackerStore
	if err := json.Unmarshal(data, &store); err != nil {
		if t.log != nil {
			t.log.Warn("processtracker: discarding corrupt store", zap.Error(err))
		}
		return
	}
	if store.Processes == nil {
		store.Processes = make(map[int]*model.TrackedProcess)
	}
	t.store = store
}

// persistLocked writes the store via atomic temp-file-then-rename replace
// (§4.11, §5). Caller must hold t.mu.
func (t *Tracker) persistLocked() {
	path, err := t.pathResolver()
	if err != nil {
		return
	}
	data, err := json.MarshalIndent(t.store, "", "  ")
	if err != nil {
		return
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tracker-*.tmp")
	if err != nil {
		if t.log != nil {
			t.log.Warn("processtracker: persist failed", zap.Error(err))
		}
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return
	}
	tmp.Close()
	_ = os.Rename(tmpName, path)
}
