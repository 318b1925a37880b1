// Package accessibility implements the AccessibilityTransport (§4.2): the
// primary transport, reading and actuating native UI via the host
// accessibility API through a platform.AccessibilityProvider.
package accessibility

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cua-dev/cuad/internal/cache"
	"github.com/cua-dev/cuad/internal/enricher"
	"github.com/cua-dev/cuad/internal/model"
	"github.com/cua-dev/cuad/internal/platform"
	"github.com/cua-dev/cuad/internal/transport"
)

// Name is this transport's stable identifier.
const Name = "accessibility"

// defaultSettle is the fixed settling sleep after actuation (§4.2, 80-300ms
// window; a principled wait-for-notification implementation is left as a
// future improvement per §9's open design note).
const defaultSettle = 150 * time.Millisecond

const defaultMaxDepth = 50

// Transport is the AccessibilityTransport.
type Transport struct {
	provider platform.AccessibilityProvider
	cache    *cache.Cache
	enricher enricher.Enricher
	log      *zap.Logger
	stats    model.TransportStats
	settle   time.Duration
	maxDepth int

	mu       sync.Mutex
	refNodes map[string]map[string]*model.RawNode // appName -> ref -> node
}

// New constructs an AccessibilityTransport over the given platform binding.
func New(provider platform.AccessibilityProvider, snapCache *cache.Cache, log *zap.Logger) *Transport {
	return &Transport{
		provider: provider,
		cache:    snapCache,
		enricher: enricher.New(),
		log:      log,
		settle:   defaultSettle,
		maxDepth: defaultMaxDepth,
		refNodes: make(map[string]map[string]*model.RawNode),
	}
}

// WithSettle overrides the post-actuation settling sleep (config
// accessibility.settling_sleep_millis). Zero or negative leaves the
// default in place.
func (t *Transport) WithSettle(d time.Duration) *Transport {
	if d > 0 {
		t.settle = d
	}
	return t
}

// WithMaxDepth overrides the default traversal depth cap (config
// accessibility.max_depth) used when an action doesn't request its own.
func (t *Transport) WithMaxDepth(depth int) *Transport {
	if depth > 0 {
		t.maxDepth = depth
	}
	return t
}

func (t *Transport) Name() string { return Name }

func (t *Transport) CanHandle(appName, bundleID string) bool {
	return t.provider.PermissionGranted()
}

func (t *Transport) Health() model.Health {
	if !t.provider.PermissionGranted() {
		return model.HealthDead
	}
	return t.stats.DerivedHealth()
}

func (t *Transport) Compatible(kind transport.Kind) bool {
	switch kind {
	case transport.ActionSnapshot, transport.ActionClick, transport.ActionFocus,
		transport.ActionFill, transport.ActionClear, transport.ActionToggle, transport.ActionSelect:
		return true
	default:
		return false
	}
}

func (t *Transport) Stats() *model.TransportStats { return &t.stats }

// Execute dispatches to the per-kind handler, recording success/failure
// exactly once regardless of outcome (§4.1).
func (t *Transport) Execute(ctx context.Context, action transport.Action) transport.Result {
	var result transport.Result
	switch action.Kind {
	case transport.ActionSnapshot:
		result = t.snapshot(ctx, action)
	case transport.ActionClick:
		result = t.actuate(ctx, action, "press", t.provider.Click)
	case transport.ActionFocus:
		result = t.actuate(ctx, action, "", t.provider.Focus)
	case transport.ActionClear:
		result = t.actuate(ctx, action, "", t.provider.Clear)
	case transport.ActionToggle:
		result = t.toggle(ctx, action)
	case transport.ActionFill:
		result = t.fill(ctx, action)
	case transport.ActionSelect:
		result = t.selectOption(ctx, action)
	default:
		result = transport.Result{Success: false, Error: fmt.Sprintf("accessibility: unsupported action %q", action.Kind)}
	}
	result.TransportUsed = Name
	if result.Success {
		t.stats.RecordSuccess()
	} else {
		t.stats.RecordFailure()
	}
	return result
}

func (t *Transport) snapshot(ctx context.Context, action transport.Action) transport.Result {
	if !t.provider.PermissionGranted() {
		return transport.Result{Success: false, Error: "accessibility permission not granted"}
	}

	depth := action.Depth
	if depth <= 0 {
		depth = t.maxDepth
	}

	traverseStart := time.Now()
	root, err := t.provider.Traverse(ctx, action.App, depth)
	traverseMillis := time.Since(traverseStart).Milliseconds()
	if err != nil {
		return transport.Result{Success: false, Error: fmt.Sprintf("traverse: %v", err)}
	}

	rawCount := countNodes(root)

	enrichStart := time.Now()
	pruned := t.enricher.Prune(root)
	grouped := t.enricher.Group(pruned)
	enrichMillis := time.Since(enrichStart).Milliseconds()

	elementCount := 0
	for _, s := range grouped.Sections {
		elementCount += len(s.Elements)
	}

	// Failure policy (§4.2): zero enriched elements is a transport
	// failure, not a legitimately-empty success, so the router can fall
	// through to another transport.
	if elementCount == 0 {
		return transport.Result{Success: false, Error: "zero enriched elements (display off or screen locked)"}
	}

	sections := t.cache.AssignRefs(action.App.Name, grouped.Sections)

	window, _ := t.provider.WindowInfo(ctx, action.App)

	snap := model.AppSnapshot{
		Application: action.App,
		Timestamp:   time.Now(),
		Window:      window,
		Metadata:    map[string]model.Value{},
		Content:     model.ContentTree{Summary: grouped.Summary, Sections: sections},
		Stats: model.Stats{
			RawNodeCount:         rawCount,
			EnrichedElementCount: elementCount,
			TraversalMillis:      traverseMillis,
			EnrichMillis:         enrichMillis,
		},
	}
	snap = t.cache.Put(snap, Name, action.NoCache)

	t.rememberNodes(action.App.Name, sections, grouped.Nodes)

	return transport.Result{Success: true, Data: map[string]model.Value{
		"snapshot": snapshotValue(snap),
	}}
}

// rememberNodes records, per application, the mapping from the ref just
// assigned to each element back to the RawNode it was derived from, so
// later click/fill/toggle/select calls (which only carry a ref) can
// resolve the node to actuate. Sections here have already gone through
// cache.AssignRefs, so section/element ordering matches grouped.Nodes.
func (t *Transport) rememberNodes(appName string, sections []model.Section, nodes [][]*model.RawNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := make(map[string]*model.RawNode)
	for si, sec := range sections {
		if si >= len(nodes) {
			break
		}
		for ei, el := range sec.Elements {
			if ei >= len(nodes[si]) {
				break
			}
			m[el.Ref] = nodes[si][ei]
		}
	}
	t.refNodes[appName] = m
}

func (t *Transport) resolve(appName, ref string) (*model.RawNode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.refNodes[appName]
	if !ok {
		return nil, false
	}
	n, ok := m[ref]
	return n, ok
}

type actuator func(ctx context.Context, app model.Application, node *model.RawNode) error

// actuate resolves action.Ref to a node, checks the required action
// capability when requiredAction is non-empty, dispatches, settles, and
// re-snapshots (§4.2).
func (t *Transport) actuate(ctx context.Context, action transport.Action, requiredAction string, do actuator) transport.Result {
	node, ok := t.resolve(action.App.Name, action.Ref)
	if !ok {
		return transport.Result{Success: false, Error: fmt.Sprintf("unknown ref %q", action.Ref)}
	}
	if requiredAction != "" && !hasAction(node, requiredAction) {
		return transport.Result{Success: false, Error: fmt.Sprintf("element does not support %q", requiredAction)}
	}
	if err := do(ctx, action.App, node); err != nil {
		return transport.Result{Success: false, Error: err.Error()}
	}
	t.settleThenResnapshot(ctx, action.App)
	return transport.Result{Success: true}
}

// toggle actuates a checkbox or radio element. Gated on the node's role
// (§4.2), not on an advertised action capability — some providers report
// these elements' toggle action under varying capability strings, but the
// role itself is the reliable signal.
func (t *Transport) toggle(ctx context.Context, action transport.Action) transport.Result {
	node, ok := t.resolve(action.App.Name, action.Ref)
	if !ok {
		return transport.Result{Success: false, Error: fmt.Sprintf("unknown ref %q", action.Ref)}
	}
	if !isToggleRole(node.Role) {
		return transport.Result{Success: false, Error: "element is not a checkbox or radio role"}
	}
	if err := t.provider.Toggle(ctx, action.App, node); err != nil {
		return transport.Result{Success: false, Error: err.Error()}
	}
	t.settleThenResnapshot(ctx, action.App)
	return transport.Result{Success: true}
}

func (t *Transport) fill(ctx context.Context, action transport.Action) transport.Result {
	node, ok := t.resolve(action.App.Name, action.Ref)
	if !ok {
		return transport.Result{Success: false, Error: fmt.Sprintf("unknown ref %q", action.Ref)}
	}
	if !isTextFieldRole(node.Role) {
		return transport.Result{Success: false, Error: "element is not a text-field-family role"}
	}
	if err := t.provider.Fill(ctx, action.App, node, action.Value); err != nil {
		return transport.Result{Success: false, Error: err.Error()}
	}
	t.settleThenResnapshot(ctx, action.App)
	return transport.Result{Success: true}
}

// selectOption opens a popup, matches a menu item by case-insensitive
// label equality, and either selects it or closes the popup on miss (§4.2).
func (t *Transport) selectOption(ctx context.Context, action transport.Action) transport.Result {
	node, ok := t.resolve(action.App.Name, action.Ref)
	if !ok {
		return transport.Result{Success: false, Error: fmt.Sprintf("unknown ref %q", action.Ref)}
	}
	if err := t.provider.Select(ctx, action.App, node, action.Value); err != nil {
		return transport.Result{Success: false, Error: fmt.Sprintf("no option matched %q: %v", action.Value, err)}
	}
	t.settleThenResnapshot(ctx, action.App)
	return transport.Result{Success: true}
}

func (t *Transport) settleThenResnapshot(ctx context.Context, app model.Application) {
	select {
	case <-time.After(t.settle):
	case <-ctx.Done():
		return
	}
	// Best-effort re-snapshot to refresh refs/state after actuation; a
	// failure here does not fail the actuation itself.
	t.snapshot(ctx, transport.Action{App: app, NoCache: true})
	if t.log != nil {
		t.log.Debug("accessibility: post-actuation resettle", zap.String("app", app.Name))
	}
}

func hasAction(n *model.RawNode, action string) bool {
	for _, a := range n.Actions {
		if strings.EqualFold(a, action) {
			return true
		}
	}
	return false
}

func isTextFieldRole(role string) bool {
	r := strings.ToLower(role)
	return r == "textfield" || r == "textarea" || r == "securetextfield" || r == "combobox"
}

func isToggleRole(role string) bool {
	r := strings.ToLower(role)
	return r == "checkbox" || r == "radiobutton"
}

func countNodes(n *model.RawNode) int {
	if n == nil {
		return 0
	}
	count := 1
	for _, c := range n.Children {
		count += countNodes(c)
	}
	return count
}

func snapshotValue(s model.AppSnapshot) model.Value {
	sections := make([]model.Value, len(s.Content.Sections))
	for i, sec := range s.Content.Sections {
		elems := make([]model.Value, len(sec.Elements))
		for j, el := range sec.Elements {
			elems[j] = model.NewObject(map[string]model.Value{
				"ref":     model.NewString(el.Ref),
				"role":    model.NewString(string(el.Role)),
				"label":   model.NewString(el.Label),
				"value":   el.Value,
				"enabled": model.NewBool(el.Enabled),
			})
		}
		sections[i] = model.NewObject(map[string]model.Value{
			"role":     model.NewString(string(sec.Role)),
			"label":    model.NewString(sec.Label),
			"elements": model.NewArray(elems),
		})
	}
	return model.NewObject(map[string]model.Value{
		"app":     model.NewString(s.Application.Name),
		"summary": model.NewString(s.Content.Summary),
		"sections": model.NewArray(sections),
	})
}
