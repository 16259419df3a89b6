package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agenthands/padi/internal/core/model"
)

var cfGrid = []float64{-1, -0.9, -0.75, -0.5, -0.3, -0.1, 0, 0.1, 0.3, 0.5, 0.75, 0.9, 1}

func degenerate(a, b float64) bool {
	return math.Abs(a) == 1 && math.Abs(b) == 1 && a != b
}

func TestCombine_Commutative(t *testing.T) {
	for _, a := range cfGrid {
		for _, b := range cfGrid {
			if degenerate(a, b) {
				continue
			}
			assert.InDelta(t, Combine(a, b), Combine(b, a), 1e-12, "a=%v b=%v", a, b)
		}
	}
}

func TestCombine_NeutralElement(t *testing.T) {
	for _, c := range cfGrid {
		assert.Equal(t, c, Combine(c, 0), "c=%v", c)
	}
}

func TestCombine_StaysInRange(t *testing.T) {
	for _, a := range cfGrid {
		for _, b := range cfGrid {
			got := Combine(a, b)
			assert.GreaterOrEqual(t, got, -1.0)
			assert.LessOrEqual(t, got, 1.0)
		}
	}
}

func TestCombine_OppositeCertainties(t *testing.T) {
	assert.Equal(t, 1.0, Combine(1, -1))
	assert.Equal(t, -1.0, Combine(-1, 1))
}

func TestCombine_Rules(t *testing.T) {
	assert.InDelta(t, 0.82, Combine(0.7, 0.4), 1e-12)
	assert.InDelta(t, -0.82, Combine(-0.7, -0.4), 1e-12)
	assert.InDelta(t, 0.5, Combine(0.7, -0.4), 1e-12)
}

func TestCombineAll(t *testing.T) {
	assert.Equal(t, 0.0, CombineAll(nil))
	assert.Equal(t, 1.0, CombineAll([]float64{3}))
	assert.InDelta(t, 0.928, CombineAll([]float64{0.7, 0.4, 0.6}), 1e-12)
}

func TestSymptomCF(t *testing.T) {
	s := model.Symptom{MB: 0.8, MD: 0.1}
	assert.InDelta(t, 0.7, SymptomCF(s, 1), 1e-12)
	assert.InDelta(t, 0.35, SymptomCF(s, 0.5), 1e-12)
	assert.Equal(t, 0.0, SymptomCF(s, 0))

	// authored values outside [0,1] still produce a bounded factor
	assert.Equal(t, 1.0, SymptomCF(model.Symptom{MB: 3}, 1))
	assert.Equal(t, -1.0, SymptomCF(model.Symptom{MD: 3}, 1))
}

func TestCalculate_OrderIndependent(t *testing.T) {
	snap := fixture()
	symptoms := snap.SymptomIndex()

	forward := CertaintyCalculator{}.Calculate([]int64{1, 2, 4}, nil, symptoms, snap.Rules)
	reversed := make([]model.Rule, len(snap.Rules))
	for i, r := range snap.Rules {
		reversed[len(snap.Rules)-1-i] = r
	}
	backward := CertaintyCalculator{}.Calculate([]int64{1, 2, 4}, nil, symptoms, reversed)

	assert.Equal(t, forward, backward)
	assert.Len(t, forward, 1)
	assert.Equal(t, 4, forward[0].Relevant)
	assert.Equal(t, 3, forward[0].MinMatch)
	assert.True(t, certaintyItem(forward[0], snap.Diseases[0]).MeetsMinMatch())
}

func TestInterpret_Boundaries(t *testing.T) {
	tests := []struct {
		cf   float64
		want string
	}{
		{1, LabelVeryConfident},
		{0.9, LabelVeryConfident},
		{0.8999, LabelConfident},
		{0.7, LabelConfident},
		{0.6999, LabelFairlyConfident},
		{0.5, LabelFairlyConfident},
		{0.4999, LabelLessConfident},
		{0.3, LabelLessConfident},
		{0.2999, LabelNotConfident},
		{0, LabelNotConfident},
		{-1, LabelNotConfident},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Interpret(tt.cf), "cf=%v", tt.cf)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0.82, Normalize(0.7000000000000001+0.39999999999999997*(1-0.7000000000000001)))
	assert.Equal(t, 0.9, Normalize(0.8999999999999999))
	assert.Equal(t, 1.0, Normalize(1.5))
	assert.Equal(t, -1.0, Normalize(-7))
	assert.Equal(t, 0.0, Normalize(math.NaN()))
}
