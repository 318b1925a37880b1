package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cua-dev/cuad/internal/model"
)

func sectionsWithLabels(labels ...string) []model.Section {
	elems := make([]model.Element, len(labels))
	for i, l := range labels {
		elems[i] = model.Element{Role: model.RoleButton, Label: l}
	}
	return []model.Section{{Role: model.SectionContent, Elements: elems}}
}

func TestAssignRefs_UniqueAndNonEmpty(t *testing.T) {
	c := New()
	out := c.AssignRefs("Notes", sectionsWithLabels("New Note", "Delete", "Share"))

	seen := map[string]bool{}
	for _, sec := range out {
		for _, el := range sec.Elements {
			require.NotEmpty(t, el.Ref)
			assert.False(t, seen[el.Ref], "ref %q assigned twice", el.Ref)
			seen[el.Ref] = true
		}
	}
	assert.Len(t, seen, 3)
}

func TestAssignRefs_StableAcrossConsecutiveSnapshots(t *testing.T) {
	c := New()
	first := c.AssignRefs("Notes", sectionsWithLabels("New Note", "Delete"))
	second := c.AssignRefs("Notes", sectionsWithLabels("New Note", "Delete"))

	firstRefs := map[string]string{}
	for _, sec := range first {
		for _, el := range sec.Elements {
			firstRefs[el.Label] = el.Ref
		}
	}
	for _, sec := range second {
		for _, el := range sec.Elements {
			assert.Equal(t, firstRefs[el.Label], el.Ref, "ref for %q must be stable", el.Label)
		}
	}
}

func TestAssignRefs_NewElementGetsFreshRef(t *testing.T) {
	c := New()
	first := c.AssignRefs("Notes", sectionsWithLabels("New Note"))
	second := c.AssignRefs("Notes", sectionsWithLabels("New Note", "Pin"))

	firstRef := first[0].Elements[0].Ref
	var newRef string
	for _, el := range second[0].Elements {
		if el.Label == "Pin" {
			newRef = el.Ref
		}
	}
	assert.NotEmpty(t, newRef)
	assert.NotEqual(t, firstRef, newRef)
}

func TestGet_MissThenHitThenExpired(t *testing.T) {
	c := New()
	_, _, _, ok := c.Get("Safari", false)
	assert.False(t, ok)

	snap := model.AppSnapshot{Application: model.Application{Name: "Safari"}}
	c.Put(snap, "accessibility", false)

	got, transport, _, ok := c.Get("Safari", false)
	require.True(t, ok)
	assert.Equal(t, "accessibility", transport)
	assert.Equal(t, "Safari", got.Application.Name)

	stats := c.Snapshot()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)

	e := c.entries["Safari"]
	e.insertedAt = time.Now().Add(-TTLFor("accessibility"))
	c.entries["Safari"] = e
	_, _, _, ok = c.Get("Safari", false)
	assert.False(t, ok)
}

func TestGet_NoCacheBypassesLookup(t *testing.T) {
	c := New()
	snap := model.AppSnapshot{Application: model.Application{Name: "Safari"}}
	c.Put(snap, "accessibility", false)

	_, _, _, ok := c.Get("Safari", true)
	assert.False(t, ok, "no_cache must bypass the lookup entirely")
}

func TestTTLFor_PerTransportPolicy(t *testing.T) {
	assert.Equal(t, 5*time.Second, TTLFor("accessibility"))
	assert.Equal(t, 30*time.Second, TTLFor("browser-debug"))
	assert.Equal(t, defaultTTL, TTLFor("unknown-transport"))
}

func TestHitRate(t *testing.T) {
	s := Stats{Hits: 3, Misses: 1}
	assert.InDelta(t, 0.75, s.HitRate(), 0.0001)
	assert.Zero(t, Stats{}.HitRate())
}
