// Package enricher implements the per-application transformation from raw
// accessibility nodes to semantic Sections of Elements (§4.2, glossary:
// "Enricher"). Its output shape is part of the hard core; the pruning and
// grouping heuristics themselves are explicitly out of scope and are
// expected to vary per application. This package provides the default,
// application-agnostic heuristic so the daemon is usable out of the box.
package enricher

import (
	"strings"

	"github.com/cua-dev/cuad/internal/model"
)

// Result is the enricher's output: Sections with not-yet-assigned refs,
// plus the RawNode each Element in each Section was derived from, so the
// caller (AccessibilityTransport) can resolve a ref back to an actuatable
// node once SnapshotCache has assigned stable refs.
type Result struct {
	Summary  string
	Sections []model.Section
	Nodes    [][]*model.RawNode
}

// Enricher prunes layout noise from a raw accessibility tree and groups
// the remainder into semantic Sections.
type Enricher interface {
	// Prune removes purely-layout nodes, keeping interactive nodes and
	// static text with non-empty content.
	Prune(root *model.RawNode) *model.RawNode

	// Group flattens a pruned tree into Sections of Elements.
	Group(root *model.RawNode) Result
}

// Default is the built-in heuristic enricher: it collapses any node with
// no role-bearing children into its nearest role-bearing ancestor, and
// assigns each surviving subtree to a Section by nearest toolbar/nav/form/
// dialog/list/table/content ancestor role (defaulting to "content").
type Default struct{}

// New returns the default enricher.
func New() Enricher { return Default{} }

var layoutRoles = map[string]bool{
	"group": true, "genericcontainer": true, "scrollarea": true, "splitter": true,
	"layoutarea": true, "unknown": true, "": true,
}

var interactiveRoles = map[string]string{
	"button":       string(model.RoleButton),
	"textfield":    string(model.RoleTextField),
	"textarea":     string(model.RoleTextArea),
	"checkbox":     string(model.RoleCheckbox),
	"radiobutton":  string(model.RoleRadio),
	"combobox":     string(model.RoleCombobox),
	"popupbutton":  string(model.RoleDropdown),
	"slider":       string(model.RoleSlider),
	"tab":          string(model.RoleTab),
	"link":         string(model.RoleLink),
	"image":        string(model.RoleImage),
	"disclosuretriangle": string(model.RoleDisclosure),
	"stepper":      string(model.RoleStepper),
	"statictext":   string(model.RoleText),
}

var sectionRoles = map[string]model.SectionRole{
	"toolbar":    model.SectionToolbar,
	"navigation": model.SectionNavigation,
	"form":       model.SectionForm,
	"list":       model.SectionList,
	"table":      model.SectionTable,
	"dialog":     model.SectionDialog,
	"sheet":      model.SectionSheet,
	"popover":    model.SectionPopover,
	"webarea":    model.SectionWebArea,
}

// Prune removes layout-only nodes with no interactive or textual content.
// It returns a new tree sharing RawNode pointers with the input (nodes are
// immutable once constructed, per §3's ownership rules).
func (Default) Prune(root *model.RawNode) *model.RawNode {
	if root == nil {
		return nil
	}
	return pruneNode(root, map[*model.RawNode]bool{})
}

func pruneNode(n *model.RawNode, visiting map[*model.RawNode]bool) *model.RawNode {
	if n == nil || visiting[n] {
		return nil
	}
	visiting[n] = true
	defer delete(visiting, n)

	children := make([]*model.RawNode, 0, len(n.Children))
	for _, c := range n.Children {
		if pc := pruneNode(c, visiting); pc != nil {
			children = append(children, pc)
		}
	}

	keep := isInteractive(n) || hasContent(n) || len(children) > 0
	if !keep {
		return nil
	}

	clone := *n
	clone.Children = children
	clone.ChildCount = len(children)
	return &clone
}

func isInteractive(n *model.RawNode) bool {
	role := strings.ToLower(n.Role)
	if role == "statictext" {
		return len(n.Actions) > 0
	}
	_, ok := interactiveRoles[role]
	return ok || len(n.Actions) > 0
}

func hasContent(n *model.RawNode) bool {
	if strings.ToLower(n.Role) == "statictext" {
		return strings.TrimSpace(n.Title) != "" || strings.TrimSpace(n.Value.String()) != ""
	}
	return false
}

// Group flattens the pruned tree into Sections, attributing each
// interactive/text node to the nearest ancestor with a known section role
// (defaulting to "content").
func (Default) Group(root *model.RawNode) Result {
	buckets := map[model.SectionRole]*bucket{}
	order := []model.SectionRole{}

	var walk func(n *model.RawNode, section model.SectionRole, label string)
	walk = func(n *model.RawNode, section model.SectionRole, label string) {
		if n == nil {
			return
		}
		role := strings.ToLower(n.Role)
		if sr, ok := sectionRoles[role]; ok {
			section = sr
			label = n.Title
		}

		if publicRole, ok := interactiveRoles[role]; ok || hasContent(n) {
			if publicRole == "" {
				publicRole = string(model.RoleText)
			}
			b, exists := buckets[section]
			if !exists {
				b = &bucket{label: label}
				buckets[section] = b
				order = append(order, section)
			}
			b.elements = append(b.elements, model.Element{
				Role:        model.Role(publicRole),
				Label:       firstNonEmpty(n.Title, n.RoleDescription),
				Value:       n.Value,
				Placeholder: n.Placeholder,
				Enabled:     boolOr(n.Enabled, true),
				Focused:     boolOr(n.Focused, false),
				Selected:    boolOr(n.Selected, false),
				Actions:     n.Actions,
			})
			b.nodes = append(b.nodes, n)
		}

		for _, c := range n.Children {
			walk(c, section, label)
		}
	}
	walk(root, model.SectionContent, "")

	result := Result{Summary: summarize(root)}
	for _, sr := range order {
		b := buckets[sr]
		result.Sections = append(result.Sections, model.Section{Role: sr, Label: b.label, Elements: b.elements})
		result.Nodes = append(result.Nodes, b.nodes)
	}
	return result
}

type bucket struct {
	label    string
	elements []model.Element
	nodes    []*model.RawNode
}

func summarize(root *model.RawNode) string {
	if root == nil {
		return "empty"
	}
	if root.Title != "" {
		return root.Title
	}
	return root.Role
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
