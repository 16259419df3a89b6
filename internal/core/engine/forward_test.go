package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/padi/internal/core/model"
)

func set(ids ...int64) map[int64]bool {
	s := make(map[int64]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

func TestEvaluate_SatisfactionFlips(t *testing.T) {
	rule := model.Rule{ID: 1, DiseaseID: 1, SymptomIDs: []int64{1, 2, 3, 4}, ConfidenceLevel: 0.9, MinSymptomMatch: 3}
	fc := ForwardChainer{AcceptanceRatio: 1}

	m := fc.Evaluate(rule, set(1, 2, 3))
	assert.True(t, m.Satisfied())
	assert.False(t, m.Full())
	assert.False(t, fc.Accepted(m))
	assert.InDelta(t, 0.675, m.CF, 1e-12)

	m = fc.Evaluate(rule, set(1, 2))
	assert.False(t, m.Satisfied())

	m = fc.Evaluate(rule, set(1, 2, 3, 4, 9))
	assert.True(t, m.Full())
	assert.True(t, fc.Accepted(m))
	assert.Equal(t, 0.9, m.CF)
}

func TestEvaluate_NeverExceedsConfidence(t *testing.T) {
	rule := model.Rule{SymptomIDs: []int64{1, 2, 3}, ConfidenceLevel: 0.6, MinSymptomMatch: 1}
	fc := ForwardChainer{AcceptanceRatio: 1}

	for _, sel := range []map[int64]bool{set(1), set(1, 2), set(1, 2, 3), set(1, 2, 3, 4, 5)} {
		m := fc.Evaluate(rule, sel)
		assert.LessOrEqual(t, m.CF, rule.ConfidenceLevel)
	}
}

func TestEvaluate_MinMatchBounds(t *testing.T) {
	fc := ForwardChainer{AcceptanceRatio: 1}

	m := fc.Evaluate(model.Rule{SymptomIDs: []int64{1, 1, 2}, MinSymptomMatch: 5, ConfidenceLevel: 1}, set(1, 2))
	assert.Equal(t, 2, m.Required)
	assert.Equal(t, 2, m.MinMatch)
	assert.True(t, m.Full())

	m = fc.Evaluate(model.Rule{SymptomIDs: []int64{1, 2}, MinSymptomMatch: 0, ConfidenceLevel: 1}, set(2))
	assert.Equal(t, 1, m.MinMatch)
	assert.True(t, m.Satisfied())

	m = fc.Evaluate(model.Rule{}, set(1))
	assert.False(t, m.Satisfied())
}

func TestMatch_BestRulePerDisease(t *testing.T) {
	rules := []model.Rule{
		{ID: 1, Code: "R01", DiseaseID: 1, SymptomIDs: []int64{1, 2, 3}, ConfidenceLevel: 0.9, MinSymptomMatch: 2},
		{ID: 2, Code: "R02", DiseaseID: 1, SymptomIDs: []int64{1, 2}, ConfidenceLevel: 0.8, MinSymptomMatch: 2},
		{ID: 3, Code: "R03", DiseaseID: 2, SymptomIDs: []int64{2, 4}, ConfidenceLevel: 0.5, MinSymptomMatch: 1},
		{ID: 4, Code: "R04", DiseaseID: 3, SymptomIDs: []int64{5, 6}, ConfidenceLevel: 0.9, MinSymptomMatch: 2},
	}

	matches := ForwardChainer{AcceptanceRatio: 1}.Match(set(1, 2), rules)
	require.Len(t, matches, 2)
	assert.Equal(t, "R02", matches[0].Rule.Code, "0.8 full beats 0.6 partial")
	assert.Equal(t, "R03", matches[1].Rule.Code)
}
