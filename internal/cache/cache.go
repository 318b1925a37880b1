// Package cache implements the SnapshotCache (§4.8): per-application
// storage of the most recent AppSnapshot plus the transport that produced
// it, with per-transport TTL policy and stable element-ref assignment
// across successive snapshots of the same application.
package cache

import (
	"strconv"
	"sync"
	"time"

	"github.com/cua-dev/cuad/internal/model"
)

// defaultTTL is used for transports with no explicit entry in ttlByTransport.
const defaultTTL = 5 * time.Second

// tombstoneGrace is how long a departed element's ref integer stays
// reserved before it may be reused (§3 ref-stability invariant).
const tombstoneGrace = 60 * time.Second

// ttlByTransport implements the per-transport TTL policy from §3.
var ttlByTransport = map[string]time.Duration{
	"accessibility":     5 * time.Second,
	"browser-debug":     30 * time.Second,
	"external-script":   30 * time.Second,
	"browser-automation": 30 * time.Second,
}

// TTLFor returns the cache TTL for results produced by the named transport.
func TTLFor(transportName string) time.Duration {
	if ttl, ok := ttlByTransport[transportName]; ok {
		return ttl
	}
	return defaultTTL
}

type entry struct {
	snapshot    model.AppSnapshot
	transport   string
	insertedAt  time.Time
}

// logicalKey identifies an element across snapshots independent of ref:
// (role, label or else placeholder or else value text, index within its
// section).
type logicalKey struct {
	role     model.Role
	ident    string
	position int
}

type refRecord struct {
	ref        string
	lastSeen   time.Time
	tombstoned bool
}

type appRefState struct {
	byKey  map[logicalKey]*refRecord
	byRef  map[string]*refRecord
	nextID int
}

// Stats are the cache's observability counters, exposed through the
// status endpoint.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// Cache is the daemon-owned SnapshotCache. Guarded by a single
// reader-writer lock (§5); hit-rate stats are incremented under the lock.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	refs    map[string]*appRefState
	hits    int64
	misses  int64
}

// New constructs an empty SnapshotCache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		refs:    make(map[string]*appRefState),
	}
}

// Get returns the cached snapshot for appName if present and not expired.
// noCache bypasses the lookup entirely, per §4.8's explicit cache-bypass flag.
func (c *Cache) Get(appName string, noCache bool) (model.AppSnapshot, string, time.Time, bool) {
	if noCache {
		return model.AppSnapshot{}, "", time.Time{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[appName]
	if !ok {
		c.misses++
		return model.AppSnapshot{}, "", time.Time{}, false
	}
	if time.Since(e.insertedAt) >= TTLFor(e.transport) {
		delete(c.entries, appName)
		c.misses++
		return model.AppSnapshot{}, "", time.Time{}, false
	}
	c.hits++
	return e.snapshot, e.transport, e.insertedAt, true
}

// Put inserts (replacing any existing entry) a freshly produced snapshot,
// reconciling element refs against the app's ref-preservation map unless
// noCache (bypass) was requested for this read.
func (c *Cache) Put(snapshot model.AppSnapshot, transportName string, noCache bool) model.AppSnapshot {
	appName := snapshot.Application.Name
	c.mu.Lock()
	defer c.mu.Unlock()

	if !noCache {
		snapshot = c.reconcileRefsLocked(appName, snapshot)
	}
	c.entries[appName] = entry{snapshot: snapshot, transport: transportName, insertedAt: time.Now()}
	return snapshot
}

// AssignRefs is the hook transports call while constructing a snapshot
// (during grouping, per §4.2) to preserve stable refs for elements that
// match a previously seen logical key. It is equivalent to, and shares
// state with, the reconciliation Put performs on insertion — transports
// may call it directly to obtain refs to embed in click/fill targets
// before the snapshot is cached.
func (c *Cache) AssignRefs(appName string, sections []model.Section) []model.Section {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assignRefsLocked(appName, sections)
}

func (c *Cache) reconcileRefsLocked(appName string, snapshot model.AppSnapshot) model.AppSnapshot {
	snapshot.Content.Sections = c.assignRefsLocked(appName, snapshot.Content.Sections)
	return snapshot
}

func (c *Cache) assignRefsLocked(appName string, sections []model.Section) []model.Section {
	state, ok := c.refs[appName]
	if !ok {
		state = &appRefState{byKey: make(map[logicalKey]*refRecord), byRef: make(map[string]*refRecord)}
		c.refs[appName] = state
	}

	now := time.Now()
	seen := make(map[logicalKey]bool)

	out := make([]model.Section, len(sections))
	for si, sec := range sections {
		elems := make([]model.Element, len(sec.Elements))
		for ei, el := range sec.Elements {
			key := logicalKey{role: el.Role, ident: elementIdent(el), position: ei}
			seen[key] = true

			rec, exists := state.byKey[key]
			if exists && !rec.tombstoned {
				rec.lastSeen = now
				el.Ref = rec.ref
			} else if exists && rec.tombstoned && now.Sub(rec.lastSeen) >= tombstoneGrace {
				rec.ref = state.nextRef()
				rec.tombstoned = false
				rec.lastSeen = now
				state.byRef[rec.ref] = rec
				el.Ref = rec.ref
			} else if exists && rec.tombstoned {
				// Still within grace: reuse the same ref rather than
				// reissuing the integer, since the element reappeared.
				rec.tombstoned = false
				rec.lastSeen = now
				el.Ref = rec.ref
			} else {
				ref := state.nextRef()
				rec = &refRecord{ref: ref, lastSeen: now}
				state.byKey[key] = rec
				state.byRef[ref] = rec
				el.Ref = ref
			}
			elems[ei] = el
		}
		out[si] = model.Section{Role: sec.Role, Label: sec.Label, Elements: elems}
	}

	// Tombstone keys not seen in this snapshot.
	for key, rec := range state.byKey {
		if !seen[key] && !rec.tombstoned {
			rec.tombstoned = true
			rec.lastSeen = now
		}
	}

	return out
}

func (s *appRefState) nextRef() string {
	s.nextID++
	return refString(s.nextID)
}

func refString(n int) string {
	return "e" + strconv.Itoa(n)
}

func elementIdent(el model.Element) string {
	if el.Label != "" {
		return el.Label
	}
	if el.Placeholder != "" {
		return el.Placeholder
	}
	return el.Value.String()
}

// Snapshot returns cache-level observability counters.
func (c *Cache) Snapshot() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// HitRate is hits / (hits + misses), or 0 when no reads have occurred.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
