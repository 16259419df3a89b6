package engine

import (
	"math"
	"sort"

	"github.com/agenthands/padi/internal/core/model"
)

// CombineEpsilon guards the mixed-sign denominator, which only reaches zero
// when both factors are ±1 with opposite signs.
const CombineEpsilon = 1e-9

// DefaultCertainty is used for a selected symptom with no user certainty.
const DefaultCertainty = 1.0

// SymptomCF weights a symptom's MB and MD by the user's certainty.
func SymptomCF(s model.Symptom, certainty float64) float64 {
	mb := s.MB * certainty
	md := s.MD * certainty
	return Clamp(mb - md)
}

// Combine folds next into an accumulated certainty factor.
func Combine(combined, next float64) float64 {
	switch {
	case combined >= 0 && next >= 0:
		return Clamp(combined + next*(1-combined))
	case combined <= 0 && next <= 0:
		return Clamp(combined + next*(1+combined))
	}

	denom := 1 - math.Min(math.Abs(combined), math.Abs(next))
	if denom < CombineEpsilon {
		if combined < 0 {
			return -1
		}
		return 1
	}
	return Clamp((combined + next) / denom)
}

// CombineAll folds cfs left to right. An empty slice yields 0.
func CombineAll(cfs []float64) float64 {
	if len(cfs) == 0 {
		return 0
	}
	combined := Clamp(cfs[0])
	for _, cf := range cfs[1:] {
		combined = Combine(combined, Clamp(cf))
	}
	return combined
}

// CFCandidate is the certainty factor score of one disease.
type CFCandidate struct {
	DiseaseID int64
	CF        float64
	Matched   []int64
	Relevant  int
	MinMatch  int
}

// CertaintyCalculator scores every disease that shares a symptom with the
// selection.
type CertaintyCalculator struct{}

// Calculate returns one candidate per relevant disease, unsorted. selected
// must be sorted ascending; symptoms are folded in that order.
func (CertaintyCalculator) Calculate(selected []int64, certainty map[int64]float64, symptoms map[int64]model.Symptom, rules []model.Rule) []CFCandidate {
	relevance := relevanceSets(rules)

	diseaseIDs := make([]int64, 0, len(relevance))
	for id := range relevance {
		diseaseIDs = append(diseaseIDs, id)
	}
	sort.Slice(diseaseIDs, func(i, j int) bool { return diseaseIDs[i] < diseaseIDs[j] })

	var out []CFCandidate
	for _, diseaseID := range diseaseIDs {
		rel := relevance[diseaseID]
		var cfs []float64
		var matched []int64
		for _, id := range selected {
			if !rel.symptoms[id] {
				continue
			}
			s, ok := symptoms[id]
			if !ok {
				continue
			}
			u, ok := certainty[id]
			if !ok {
				u = DefaultCertainty
			}
			cfs = append(cfs, SymptomCF(s, u))
			matched = append(matched, id)
		}
		if len(matched) == 0 {
			continue
		}
		out = append(out, CFCandidate{
			DiseaseID: diseaseID,
			CF:        CombineAll(cfs),
			Matched:   matched,
			Relevant:  len(rel.symptoms),
			MinMatch:  rel.minMatch,
		})
	}
	return out
}

type relevanceSet struct {
	symptoms map[int64]bool
	minMatch int
}

// relevanceSets unions the required symptoms of each disease's rules. The
// disease's min match is the largest min_symptom_match among them.
func relevanceSets(rules []model.Rule) map[int64]*relevanceSet {
	sets := make(map[int64]*relevanceSet)
	for _, r := range rules {
		set, ok := sets[r.DiseaseID]
		if !ok {
			set = &relevanceSet{symptoms: make(map[int64]bool)}
			sets[r.DiseaseID] = set
		}
		for _, id := range r.SymptomIDs {
			set.symptoms[id] = true
		}
		if r.MinSymptomMatch > set.minMatch {
			set.minMatch = r.MinSymptomMatch
		}
	}
	for _, set := range sets {
		if set.minMatch < 1 {
			set.minMatch = 1
		}
		if set.minMatch > len(set.symptoms) {
			set.minMatch = len(set.symptoms)
		}
	}
	return sets
}
