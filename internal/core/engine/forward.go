package engine

import (
	"github.com/agenthands/padi/internal/core/model"
)

// RuleMatch is the evaluation of one rule against a symptom selection.
type RuleMatch struct {
	Rule     model.Rule
	Matched  []int64
	Required int
	MinMatch int
	Ratio    float64
	CF       float64
}

// Satisfied reports whether enough required symptoms were selected.
func (m RuleMatch) Satisfied() bool {
	return m.Required > 0 && len(m.Matched) >= m.MinMatch
}

// Full reports whether every required symptom was selected.
func (m RuleMatch) Full() bool {
	return m.Required > 0 && len(m.Matched) == m.Required
}

// ForwardChainer evaluates the rule base against selected facts.
type ForwardChainer struct {
	// AcceptanceRatio is the match ratio at or above which a partial match
	// counts as a forward-chaining success. 1.0 requires a full match.
	AcceptanceRatio float64
}

// Evaluate scores a single rule. Duplicate required symptoms count once and
// min_symptom_match is held inside [1, required].
func (f ForwardChainer) Evaluate(rule model.Rule, selected map[int64]bool) RuleMatch {
	seen := make(map[int64]bool, len(rule.SymptomIDs))
	m := RuleMatch{Rule: rule}
	for _, id := range rule.SymptomIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		m.Required++
		if selected[id] {
			m.Matched = append(m.Matched, id)
		}
	}

	m.MinMatch = rule.MinSymptomMatch
	if m.MinMatch < 1 {
		m.MinMatch = 1
	}
	if m.MinMatch > m.Required {
		m.MinMatch = m.Required
	}

	if m.Required > 0 {
		m.Ratio = float64(len(m.Matched)) / float64(m.Required)
		m.CF = Clamp(rule.ConfidenceLevel * m.Ratio)
	}
	return m
}

// Match returns the best satisfied rule per disease, unsorted.
func (f ForwardChainer) Match(selected map[int64]bool, rules []model.Rule) []RuleMatch {
	best := make(map[int64]RuleMatch)
	var order []int64

	for _, rule := range rules {
		m := f.Evaluate(rule, selected)
		if !m.Satisfied() {
			continue
		}
		cur, ok := best[rule.DiseaseID]
		if !ok {
			order = append(order, rule.DiseaseID)
			best[rule.DiseaseID] = m
			continue
		}
		if better(m, cur) {
			best[rule.DiseaseID] = m
		}
	}

	out := make([]RuleMatch, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

// Accepted reports whether m is strong enough to end inference without the
// certainty factor fallback.
func (f ForwardChainer) Accepted(m RuleMatch) bool {
	if !m.Satisfied() {
		return false
	}
	return m.Full() || m.Ratio >= f.AcceptanceRatio
}

func better(a, b RuleMatch) bool {
	if a.CF != b.CF {
		return a.CF > b.CF
	}
	if a.Full() != b.Full() {
		return a.Full()
	}
	return a.Rule.ID < b.Rule.ID
}
