package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cua-dev/cuad/internal/model"
	"github.com/cua-dev/cuad/internal/platform"
)

func TestSubscribe_FiltersByType(t *testing.T) {
	b := New(nil)
	var mu sync.Mutex
	var received []model.Event

	b.Subscribe(func(e model.Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	}, model.EventScreenLocked)

	b.Publish(model.Event{Type: model.EventScreenLocked})
	b.Publish(model.Event{Type: model.EventScreenUnlocked})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, model.EventScreenLocked, received[0].Type)
}

func TestSubscribe_NoFilterReceivesEverything(t *testing.T) {
	b := New(nil)
	var count int
	var mu sync.Mutex

	b.Subscribe(func(e model.Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	b.Publish(model.Event{Type: "a"})
	b.Publish(model.Event{Type: "b"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	}, time.Second, 10*time.Millisecond)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := New(nil)
	var count int
	var mu sync.Mutex

	sub := b.Subscribe(func(e model.Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})
	b.Unsubscribe(sub)
	b.Publish(model.Event{Type: "a"})

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, count)
}

func TestQuery_FiltersByAppAndType(t *testing.T) {
	b := New(nil)
	b.Publish(model.Event{Type: "a", App: "Notes"})
	b.Publish(model.Event{Type: "b", App: "Safari"})
	b.Publish(model.Event{Type: "a", App: "Safari"})

	results := b.Query("Safari", []string{"a"}, 0)
	require.Len(t, results, 1)
	assert.Equal(t, "Safari", results[0].App)
	assert.Equal(t, "a", results[0].Type)
}

func TestQuery_LimitKeepsMostRecent(t *testing.T) {
	b := New(nil)
	for i := 0; i < 5; i++ {
		b.Publish(model.Event{Type: string(rune('a' + i))})
	}
	results := b.Query("", nil, 2)
	assert.Len(t, results, 2)
	assert.Equal(t, "d", results[0].Type)
	assert.Equal(t, "e", results[1].Type)
}

func TestPublish_StampsTimestampWhenZero(t *testing.T) {
	b := New(nil)
	b.Publish(model.Event{Type: "a"})
	results := b.Query("", nil, 0)
	require.Len(t, results, 1)
	assert.False(t, results[0].Timestamp.IsZero())
}

func TestNilBus_DoesNotPanic(t *testing.T) {
	var b *Bus
	assert.NotPanics(t, func() {
		b.Publish(model.Event{Type: "a"})
		b.Subscribe(func(model.Event) {})
		b.Unsubscribe(Subscription{})
		_ = b.Query("", nil, 0)
		_ = b.Snapshot()
	})
}

type fakeProvider struct {
	platform.Noop
	callback func(platform.Notification)
}

func (f *fakeProvider) Subscribe(callback func(platform.Notification)) func() {
	f.callback = callback
	return func() {}
}

func TestBindAccessibilityMonitor_TranslatesNotifications(t *testing.T) {
	b := New(nil)
	fp := &fakeProvider{}
	b.BindAccessibilityMonitor(fp)

	require.NotNil(t, fp.callback)
	fp.callback(platform.Notification{
		Type: "screen_locked",
		App:  model.Application{Name: "Finder"},
	})

	require.Eventually(t, func() bool {
		return len(b.Query("Finder", nil, 0)) == 1
	}, time.Second, 10*time.Millisecond)

	evts := b.Query("Finder", nil, 0)
	assert.Equal(t, model.EventScreenLocked, evts[0].Type)
}
