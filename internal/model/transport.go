package model

import (
	"strings"
	"sync"
	"time"
)

// Health is a transport's reported operating condition.
type Health string

const (
	HealthHealthy     Health = "healthy"
	HealthDegraded    Health = "degraded"
	HealthReconnecting Health = "reconnecting"
	HealthDead        Health = "dead"
	HealthUnknown     Health = "unknown"
)

// TransportStats is the success/failure ledger owned by a single
// transport. One lock per transport (§5): guards its own fields only.
type TransportStats struct {
	mu       sync.RWMutex
	successes int
	failures  int
	lastUsed  time.Time
}

// RecordSuccess charges one success to the stats block and stamps LastUsed.
func (s *TransportStats) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successes++
	s.lastUsed = time.Now()
}

// RecordFailure charges one failure to the stats block and stamps LastUsed.
func (s *TransportStats) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	s.lastUsed = time.Now()
}

// Snapshot returns a consistent read of the counters.
func (s *TransportStats) Snapshot() (successes, failures int, lastUsed time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.successes, s.failures, s.lastUsed
}

// SuccessRate is successes/total, defined as 1.0 when total is 0.
func (s *TransportStats) SuccessRate() float64 {
	succ, fail, _ := s.Snapshot()
	total := succ + fail
	if total == 0 {
		return 1.0
	}
	return float64(succ) / float64(total)
}

// DerivedHealth computes health purely from the counters: dead when
// total > 5 and rate < 0.2; degraded when total > 3 and rate < 0.5;
// otherwise healthy. Callers combine this with a transport's own
// self-reported health (e.g. permission denied) — see Transport.Health.
func (s *TransportStats) DerivedHealth() Health {
	succ, fail, _ := s.Snapshot()
	total := succ + fail
	rate := s.SuccessRate()
	switch {
	case total > 5 && rate < 0.2:
		return HealthDead
	case total > 3 && rate < 0.5:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}

// TransportPreference orders candidate transports for applications whose
// name or bundle id match the given substrings.
type TransportPreference struct {
	AppSubstring    string
	BundleSubstring string
	Order           []string
}

// Matches reports whether this preference applies to the given app/bundle.
func (p TransportPreference) Matches(appName, bundleID string) bool {
	if p.AppSubstring != "" && !containsFold(appName, p.AppSubstring) {
		return false
	}
	if p.BundleSubstring != "" && !containsFold(bundleID, p.BundleSubstring) {
		return false
	}
	return p.AppSubstring != "" || p.BundleSubstring != ""
}

func containsFold(haystack, needle string) bool {
	return needle != "" && strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
