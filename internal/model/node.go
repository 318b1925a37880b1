package model

// RawNode is a node of an accessibility tree, as produced by an
// AccessibilityProvider. It is the pre-enrichment representation: a
// pruner and grouper reduce a RawNode tree into Sections of Elements.
//
// Invariant: len(Children) == ChildCount.
type RawNode struct {
	Role            string
	RoleDescription string
	Title           string
	Value           Value
	Placeholder     string
	Position        *Point
	Size            *Size
	Enabled         *bool
	Focused         *bool
	Selected        *bool
	URL             string
	Actions         []string
	Children        []*RawNode
	ChildCount      int
	DOMID           string
	DOMClasses      []string

	// identity is an opaque pointer used by traversal to detect cycles;
	// it is not part of the public shape and is never serialized.
	identity any
}

// Identity returns a comparable value used to break cycles during
// accessibility-tree traversal (object-identity tracking).
func (n *RawNode) Identity() any {
	if n == nil {
		return nil
	}
	return n.identity
}

// SetIdentity tags the node with the provider-specific identity used for
// cycle detection.
func (n *RawNode) SetIdentity(id any) {
	if n != nil {
		n.identity = id
	}
}

// Point is a 2D coordinate in screen space.
type Point struct {
	X float64
	Y float64
}

// Size is a 2D extent.
type Size struct {
	Width  float64
	Height float64
}

// Role is the closed vocabulary of simplified, public-facing element roles.
type Role string

const (
	RoleButton     Role = "button"
	RoleTextField  Role = "textfield"
	RoleTextArea   Role = "textarea"
	RoleCheckbox   Role = "checkbox"
	RoleRadio      Role = "radio"
	RoleCombobox   Role = "combobox"
	RoleDropdown   Role = "dropdown"
	RoleSlider     Role = "slider"
	RoleTab        Role = "tab"
	RoleLink       Role = "link"
	RoleText       Role = "text"
	RoleImage      Role = "image"
	RoleDisclosure Role = "disclosure"
	RoleStepper    Role = "stepper"
	RoleOther      Role = "other"
)

// Element is the public semantic form of an interactive or informational
// accessibility node.
type Element struct {
	Ref         string   `json:"ref"`
	Role        Role     `json:"role"`
	Label       string   `json:"label,omitempty"`
	Value       Value    `json:"value,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Enabled     bool     `json:"enabled"`
	Focused     bool     `json:"focused"`
	Selected    bool     `json:"selected"`
	Actions     []string `json:"actions,omitempty"`
}

// SectionRole is the closed vocabulary of semantic container roles.
type SectionRole string

const (
	SectionToolbar    SectionRole = "toolbar"
	SectionNavigation SectionRole = "navigation"
	SectionForm       SectionRole = "form"
	SectionContent    SectionRole = "content"
	SectionList       SectionRole = "list"
	SectionTable      SectionRole = "table"
	SectionDialog     SectionRole = "dialog"
	SectionSheet      SectionRole = "sheet"
	SectionPopover    SectionRole = "popover"
	SectionWebArea    SectionRole = "web-area"
)

// Section is a semantic container grouping related Elements.
type Section struct {
	Role     SectionRole `json:"role"`
	Label    string      `json:"label,omitempty"`
	Elements []Element   `json:"elements"`
}

// ContentTree is the enriched, flattened view of an application's UI.
type ContentTree struct {
	Summary  string    `json:"summary"`
	Sections []Section `json:"sections"`
}

// InferredAction is a higher-level action the enricher believes the
// application currently supports (e.g. "submit the visible form").
type InferredAction struct {
	Label string `json:"label"`
	Ref   string `json:"ref,omitempty"`
}

// WindowInfo describes the application's frontmost window.
type WindowInfo struct {
	Title   string `json:"title"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Focused bool    `json:"focused"`
}

// Stats carries node counts and traversal timings for a snapshot.
type Stats struct {
	RawNodeCount      int   `json:"raw_node_count"`
	EnrichedElementCount int `json:"enriched_element_count"`
	TraversalMillis   int64 `json:"traversal_ms"`
	EnrichMillis      int64 `json:"enrich_ms"`
}
