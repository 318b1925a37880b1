// Package router implements TransportRouter (§4.7): ordered fallback
// chain construction and execution across registered transports.
package router

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cua-dev/cuad/internal/model"
	"github.com/cua-dev/cuad/internal/transport"
)

// defaultOrder is the chain used when no TransportPreference matches.
var defaultOrder = []string{"accessibility", "browser-debug", "external-script"}

// Router is the TransportRouter.
type Router struct {
	log *zap.Logger

	mu           sync.RWMutex
	transports   map[string]transport.Transport
	preferences  []model.TransportPreference
	lastUsed     map[string]string // app name -> transport name
}

// New constructs an empty Router.
func New(log *zap.Logger) *Router {
	return &Router{
		transports: make(map[string]transport.Transport),
		lastUsed:   make(map[string]string),
		log:        log,
	}
}

// Register adds a transport, keyed by its Name().
func (r *Router) Register(t transport.Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[t.Name()] = t
}

// SetPreferences replaces the ordered list of application-specific
// transport preferences.
func (r *Router) SetPreferences(prefs []model.TransportPreference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preferences = prefs
}

// LastUsed returns the transport name that last succeeded for appName.
func (r *Router) LastUsed(appName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.lastUsed[appName]
	return name, ok
}

// Chain constructs the ordered candidate list for the given app/bundle
// and action kind (§4.7 step 1-3).
func (r *Router) Chain(appName, bundleID string, kind transport.Kind) []transport.Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order := defaultOrder
	for _, pref := range r.preferences {
		if pref.Matches(appName, bundleID) {
			order = pref.Order
			break
		}
	}

	included := make(map[string]bool)
	chain := make([]transport.Transport, 0, len(r.transports))

	appendIfEligible := func(name string) {
		if included[name] {
			return
		}
		t, ok := r.transports[name]
		if !ok {
			return
		}
		if !t.CanHandle(appName, bundleID) {
			return
		}
		if t.Health() == model.HealthDead {
			return
		}
		if !t.Compatible(kind) {
			return
		}
		included[name] = true
		chain = append(chain, t)
	}

	for _, name := range order {
		appendIfEligible(name)
	}
	// Append any remaining registered transports matching the same filter.
	for name := range r.transports {
		appendIfEligible(name)
	}

	return chain
}

// Execute runs action through the constructed chain, trying each
// transport in order until one succeeds, recording the last-used
// transport for the application on success, and returning a composite
// failure carrying the last transport's error on total exhaustion
// (§4.7's observable contract).
func (r *Router) Execute(ctx context.Context, action transport.Action) transport.Result {
	chain := r.Chain(action.App.Name, action.App.BundleID, action.Kind)
	if len(chain) == 0 {
		return transport.Result{Success: false, Error: fmt.Sprintf("no compatible transport for action %q on %q", action.Kind, action.App.Name)}
	}

	var last transport.Result
	for _, t := range chain {
		result := t.Execute(ctx, action)
		if result.Success {
			r.mu.Lock()
			r.lastUsed[action.App.Name] = t.Name()
			r.mu.Unlock()
			return result
		}
		if r.log != nil {
			r.log.Debug("router: transport failed, falling through",
				zap.String("transport", t.Name()), zap.String("app", action.App.Name), zap.String("error", result.Error))
		}
		last = result
	}
	return transport.Result{Success: false, Error: last.Error, TransportUsed: last.TransportUsed}
}
