// Package browserautomation implements BrowserAutomationTransport (§4.6):
// host browser control via ExternalScriptTransport-style subprocess calls
// combined with injected page-script fuzzy matching.
package browserautomation

import (
	"sort"
	"strings"
)

// Candidate is one fuzzy-matchable element surfaced by the injected page
// script (anchors, buttons, form controls, elements with click handlers
// or tab-index, elements with appropriate roles).
type Candidate struct {
	Ref            string
	VisibleText    string
	AccessibleLabel string
	Placeholder    string
	Name           string
	ID             string
	Title          string
	Role           string
	Value          string
	SectionLabel   string
	HasAction      bool
}

// Score implements the fuzzy match scoring table (§6): weighted matches
// across visible text, accessible label, placeholder, name, id, and
// title, summed against a lower-cased query.
func Score(c Candidate, query string) int {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}
	score := 0
	score += fieldScore(c.VisibleText, q, 100, 80, 40)
	score += fieldScoreNoSub(c.AccessibleLabel, q, 100, 70)
	score += fieldScoreNoExact(c.Placeholder, q, 60)
	score += fieldScore(c.Name, q, 90, 50, 0)
	score += fieldScore(c.ID, q, 80, 40, 0)
	score += fieldScoreNoExact(c.Title, q, 50)
	score += fieldScoreNoExact(c.Role, q, 30)
	score += fieldScoreNoExact(valueOrSectionLabel(c), q, 15)
	if c.HasAction {
		score += 5
	}
	return score
}

func valueOrSectionLabel(c Candidate) string {
	if c.Value != "" {
		return c.Value
	}
	return c.SectionLabel
}

// fieldScore awards exact/contains/substring weights for a field that
// supports all three match kinds.
func fieldScore(field, q string, exact, contains, substringOf int) int {
	if field == "" {
		return 0
	}
	f := strings.ToLower(field)
	switch {
	case f == q:
		return exact
	case strings.Contains(f, q):
		return contains
	case substringOf > 0 && strings.Contains(q, f):
		return substringOf
	default:
		return 0
	}
}

// fieldScoreNoSub awards exact/contains only (no "needle contains field"
// tier), per the scoring table's "—" entries.
func fieldScoreNoSub(field, q string, exact, contains int) int {
	return fieldScore(field, q, exact, contains, 0)
}

// fieldScoreNoExact awards contains-only weight, per the scoring table's
// fields with no exact tier.
func fieldScoreNoExact(field, q string, contains int) int {
	if field == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(field), q) {
		return contains
	}
	return 0
}

// Match is a scored candidate plus its normalized confidence.
type Match struct {
	Candidate  Candidate
	Score      int
	Confidence float64
}

// Best scores every candidate and returns them sorted by descending
// score, along with an ambiguity flag: true when the top two confidences
// are within 0.1 of each other (§4.6, §6).
func Best(candidates []Candidate, query string) (matches []Match, ambiguous bool) {
	matches = make([]Match, 0, len(candidates))
	for _, c := range candidates {
		s := Score(c, query)
		if s <= 0 {
			continue
		}
		matches = append(matches, Match{Candidate: c, Score: s, Confidence: normalize(s)})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) >= 2 {
		ambiguous = (matches[0].Confidence - matches[1].Confidence) < 0.1
	}
	return matches, ambiguous
}

func normalize(score int) float64 {
	c := float64(score) / 100.0
	if c > 1.0 {
		return 1.0
	}
	return c
}

