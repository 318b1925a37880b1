package model

import "time"

// Application identifies a running, automatable application. Any one of
// Name, BundleID, or PID may be used to address it; the daemon resolves
// name to process via the host listing at request time.
type Application struct {
	Name     string `json:"name"`
	BundleID string `json:"bundle_id,omitempty"`
	PID      int    `json:"pid"`
}

// AppSnapshot is the top-level output of a read: a timestamped,
// structurally reduced view of an application's UI.
type AppSnapshot struct {
	Application Application        `json:"application"`
	Timestamp   time.Time          `json:"timestamp"`
	Window      WindowInfo         `json:"window"`
	Metadata    map[string]Value   `json:"metadata,omitempty"`
	Content     ContentTree        `json:"content"`
	Actions     []InferredAction   `json:"actions,omitempty"`
	Stats       Stats              `json:"stats"`
}

// AllElements returns every Element across every Section, in section then
// within-section order.
func (s AppSnapshot) AllElements() []Element {
	var out []Element
	for _, sec := range s.Content.Sections {
		out = append(out, sec.Elements...)
	}
	return out
}

// FindRef returns the Element with the given ref, if present.
func (s AppSnapshot) FindRef(ref string) (Element, bool) {
	for _, sec := range s.Content.Sections {
		for _, el := range sec.Elements {
			if el.Ref == ref {
				return el, true
			}
		}
	}
	return Element{}, false
}
