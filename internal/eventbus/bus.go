// Package eventbus implements EventBus (§4.9): in-process typed
// publish/subscribe with a bounded retained-history ring buffer.
package eventbus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cua-dev/cuad/internal/buffers"
	"github.com/cua-dev/cuad/internal/model"
	"github.com/cua-dev/cuad/internal/platform"
	"github.com/cua-dev/cuad/internal/util"
)

// defaultHistory is the retained-event ring buffer capacity (100-1000, §4.9).
const defaultHistory = 500

// dispatchTimeout bounds how long a single subscriber callback may run
// before the bus gives up on it for this delivery, preventing one slow
// subscriber from stalling publication (§5 backpressure).
const dispatchTimeout = 250 * time.Millisecond

// Subscription is the handle returned by Subscribe, used to Unsubscribe.
type Subscription struct {
	id string
}

type subscriber struct {
	id       string
	types    map[string]bool // empty/nil means "all types"
	callback func(model.Event)
}

// Bus is the EventBus. Safe for concurrent use; nil-safe (a nil *Bus
// silently drops Publish/Subscribe so components can be wired optionally).
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	history     *buffers.RingBuffer[model.Event]
	log         *zap.Logger
}

// New constructs an EventBus with the default retained-history capacity.
func New(log *zap.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string]*subscriber),
		history:     buffers.NewRingBuffer[model.Event](defaultHistory),
		log:         log,
	}
}

// Subscribe registers callback for delivery of events whose Type is in
// types (all events if types is empty). Returns an unsubscribe handle.
func (b *Bus) Subscribe(callback func(model.Event), types ...string) Subscription {
	if b == nil {
		return Subscription{}
	}
	filter := make(map[string]bool, len(types))
	for _, t := range types {
		filter[t] = true
	}
	sub := &subscriber{id: uuid.NewString(), types: filter, callback: callback}

	b.mu.Lock()
	b.subscribers[sub.id] = sub
	b.mu.Unlock()

	return Subscription{id: sub.id}
}

// Unsubscribe removes a subscription. Safe to call more than once.
func (b *Bus) Unsubscribe(sub Subscription) {
	if b == nil || sub.id == "" {
		return
	}
	b.mu.Lock()
	delete(b.subscribers, sub.id)
	b.mu.Unlock()
}

// Publish fans out event to all matching subscribers synchronously, over
// a snapshot of the subscriber table taken under lock (§4.9, §5), and
// appends it to the retained-history ring buffer. A subscriber whose
// callback exceeds dispatchTimeout is logged and skipped for this
// delivery without blocking the others.
func (b *Bus) Publish(event model.Event) {
	if b == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	snapshot := make([]*subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		snapshot = append(snapshot, s)
	}
	b.mu.Unlock()

	b.history.WriteOne(event)

	for _, s := range snapshot {
		if len(s.types) > 0 && !s.types[event.Type] {
			continue
		}
		b.deliver(s, event)
	}
}

func (b *Bus) deliver(s *subscriber, event model.Event) {
	done := make(chan struct{})
	util.SafeGo(func() {
		defer close(done)
		s.callback(event)
	})
	select {
	case <-done:
	case <-time.After(dispatchTimeout):
		if b.log != nil {
			b.log.Warn("eventbus: subscriber exceeded dispatch timeout, dropping delivery",
				zap.String("subscriber", s.id), zap.String("event_type", event.Type))
		}
	}
}

// Query returns retained events matching appName (if non-empty) and
// types (if non-empty), newest constraint applied via limit (0 = no
// limit), oldest-first.
func (b *Bus) Query(appName string, types []string, limit int) []model.Event {
	if b == nil {
		return nil
	}
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}
	matches := b.history.ReadAllWithFilter(func(e model.Event) bool {
		if appName != "" && e.App != appName {
			return false
		}
		if len(typeSet) > 0 && !typeSet[e.Type] {
			return false
		}
		return true
	}, 0)

	if limit > 0 && len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}
	return matches
}

// Stats are the bus's observability counters.
type Stats struct {
	Subscribers int
	Retained    int
	Capacity    int
}

// Snapshot returns bus-level observability counters.
func (b *Bus) Snapshot() Stats {
	if b == nil {
		return Stats{}
	}
	b.mu.Lock()
	subs := len(b.subscribers)
	b.mu.Unlock()
	return Stats{Subscribers: subs, Retained: b.history.Len(), Capacity: b.history.Cap()}
}

// BindAccessibilityMonitor subscribes to host accessibility/workspace
// notifications and republishes them as Events (§4.9's "distinguished
// monitor"). Returns an unsubscribe function.
func (b *Bus) BindAccessibilityMonitor(provider platform.AccessibilityProvider) (unsubscribe func()) {
	if b == nil || provider == nil {
		return func() {}
	}
	return provider.Subscribe(func(n platform.Notification) {
		b.Publish(model.Event{
			Type:      notificationEventType(n.Type),
			Timestamp: n.Timestamp,
			App:       n.App.Name,
			BundleID:  n.App.BundleID,
			PID:       n.App.PID,
			Details:   map[string]model.Value{"detail": model.NewString(n.Detail)},
		})
	})
}

func notificationEventType(notificationType string) string {
	switch notificationType {
	case "app_launched":
		return model.EventAppLaunched
	case "app_terminated":
		return model.EventAppTerminated
	case "screen_locked":
		return model.EventScreenLocked
	case "screen_unlocked":
		return model.EventScreenUnlocked
	case "display_sleep":
		return model.EventDisplaySleep
	case "display_wake":
		return model.EventDisplayWake
	default:
		return "accessibility." + notificationType
	}
}
