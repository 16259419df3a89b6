// Package engine scores a symptom selection against the rice disease
// knowledge base. Forward chaining runs first; when no rule is accepted the
// certainty factor method ranks every disease that shares a selected symptom.
package engine

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/agenthands/padi/internal/core/model"
	"github.com/agenthands/padi/internal/kb"
)

// Default thresholds. All of them can be overridden through Config.
const (
	DefaultAcceptanceRatio = 1.0
	DefaultUsableThreshold = 0.2
	DefaultHighConfidence  = 0.8
	DefaultMaxSuggestions  = 4
	DefaultRecommendLow    = 0.4
	DefaultRecommendHigh   = 0.8
)

// WarningMultipleHighConfidence is set when two or more results are in the
// high-confidence bucket.
const WarningMultipleHighConfidence = "multiple high-confidence diseases detected"

// User-facing messages.
const (
	MsgNoSymptoms     = "Pilih minimal satu gejala"
	MsgNoCandidates   = "Tidak ada penyakit yang cocok dengan gejala yang dipilih"
	MsgBelowUsable    = "Tidak ada diagnosis dengan tingkat keyakinan memadai"
	MsgNotSpecific    = "Hasil diagnosa gejala yang anda masukkan tidak merujuk secara spesifik pada satu penyakit tertentu silahkan periksa kembali gejala pada tanaman padi anda"
	msgUnknownSymptom = "Gejala dengan ID %d tidak ditemukan"
	msgBadCertainty   = "Nilai keyakinan gejala %d tidak valid"
	msgRecommend      = "Untuk memastikan diagnosis %s, periksa apakah tanaman juga menunjukkan gejala berikut:"
)

type Config struct {
	// AcceptanceRatio lets a partial forward-chaining match end inference.
	AcceptanceRatio float64
	// UsableThreshold is the lowest top cf_final that yields a primary.
	UsableThreshold float64
	HighConfidence  float64
	// MaxResults truncates the ranked list. 0 keeps everything.
	MaxResults     int
	MaxSuggestions int
	RecommendLow   float64
	RecommendHigh  float64
}

func DefaultConfig() Config {
	return Config{
		AcceptanceRatio: DefaultAcceptanceRatio,
		UsableThreshold: DefaultUsableThreshold,
		HighConfidence:  DefaultHighConfidence,
		MaxSuggestions:  DefaultMaxSuggestions,
		RecommendLow:    DefaultRecommendLow,
		RecommendHigh:   DefaultRecommendHigh,
	}
}

// Engine is stateless apart from its configuration and safe for concurrent use.
type Engine struct {
	cfg   Config
	chain ForwardChainer
	cf    CertaintyCalculator
}

func New(cfg Config) *Engine {
	return &Engine{
		cfg:   cfg,
		chain: ForwardChainer{AcceptanceRatio: cfg.AcceptanceRatio},
	}
}

func (e *Engine) Config() Config { return e.cfg }

type snapshotter interface {
	Snapshot(ctx context.Context) (kb.Snapshot, error)
}

// Diagnose reads the knowledge base and evaluates in against it. A read
// failure is returned as ErrKnowledgeBaseUnavailable.
func (e *Engine) Diagnose(ctx context.Context, base kb.KnowledgeBase, in model.DiagnosisInput) (model.Outcome, error) {
	var (
		snap kb.Snapshot
		err  error
	)
	if s, ok := base.(snapshotter); ok {
		snap, err = s.Snapshot(ctx)
	} else {
		snap, err = kb.Load(ctx, base)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKnowledgeBaseUnavailable, err)
	}
	return e.Evaluate(snap, in)
}

// Evaluate runs inference over an already loaded snapshot.
func (e *Engine) Evaluate(snap kb.Snapshot, in model.DiagnosisInput) (model.Outcome, error) {
	symptoms := snap.SymptomIndex()
	selected, certainty, err := normalizeInput(in, symptoms)
	if err != nil {
		return nil, err
	}

	diseases := snap.DiseaseIndex()
	rules := make([]model.Rule, 0, len(snap.Rules))
	for _, r := range snap.Rules {
		if _, ok := diseases[r.DiseaseID]; ok {
			rules = append(rules, r)
		}
	}
	relevance := relevanceSets(rules)

	selectedSet := make(map[int64]bool, len(selected))
	for _, id := range selected {
		selectedSet[id] = true
	}

	if out, ok := e.forwardChain(selectedSet, rules, diseases); ok {
		out.Recommendations = e.recommend(out.Results, selectedSet, relevance, symptoms)
		out.Results = e.truncate(out.Results)
		return out, nil
	}

	items := e.certaintyFactor(selected, certainty, symptoms, rules, diseases)
	warning := multiInfectionWarning(items, e.cfg.HighConfidence)
	recs := e.recommend(items, selectedSet, relevance, symptoms)

	if len(items) == 0 || items[0].CFFinal < e.cfg.UsableThreshold {
		alert := MsgBelowUsable
		if len(items) == 0 {
			alert = MsgNoCandidates
		}
		return &model.InsufficientMatch{
			By:              model.MethodCertaintyFactor,
			Results:         e.truncate(items),
			Warning:         warning,
			AlertMessage:    alert,
			Recommendations: recs,
		}, nil
	}

	items = e.usable(items)
	top := items[0]
	disease := diseases[top.DiseaseID]
	if !top.MeetsMinMatch() {
		return &model.InsufficientMatch{
			By:              model.MethodCertaintyFactor,
			Primary:         &top,
			Disease:         &disease,
			Results:         e.truncate(items),
			Warning:         warning,
			AlertMessage:    MsgNotSpecific,
			Recommendations: recs,
		}, nil
	}
	return &model.Diagnosed{
		By:              model.MethodCertaintyFactor,
		Primary:         top,
		Disease:         disease,
		Results:         e.truncate(items),
		Warning:         warning,
		Recommendations: recs,
	}, nil
}

// forwardChain returns a Diagnosed outcome when at least one rule is accepted.
// Results hold every satisfied candidate with accepted ones ranked first, so
// the primary is always Results[0].
func (e *Engine) forwardChain(selected map[int64]bool, rules []model.Rule, diseases map[int64]model.Disease) (*model.Diagnosed, bool) {
	matches := e.chain.Match(selected, rules)

	accepted := make(map[int64]bool)
	items := make([]model.ResultItem, 0, len(matches))
	for _, m := range matches {
		if e.chain.Accepted(m) {
			accepted[m.Rule.DiseaseID] = true
		}
		items = append(items, forwardItem(m, diseases[m.Rule.DiseaseID]))
	}
	if len(accepted) == 0 {
		return nil, false
	}
	sortItems(items)
	sort.SliceStable(items, func(i, j int) bool {
		return accepted[items[i].DiseaseID] && !accepted[items[j].DiseaseID]
	})

	primary := items[0]
	return &model.Diagnosed{
		By:      model.MethodForwardChaining,
		Primary: primary,
		Disease: diseases[primary.DiseaseID],
		Results: items,
		Warning: multiInfectionWarning(items, e.cfg.HighConfidence),
	}, true
}

func (e *Engine) certaintyFactor(selected []int64, certainty map[int64]float64, symptoms map[int64]model.Symptom, rules []model.Rule, diseases map[int64]model.Disease) []model.ResultItem {
	candidates := e.cf.Calculate(selected, certainty, symptoms, rules)
	items := make([]model.ResultItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, certaintyItem(c, diseases[c.DiseaseID]))
	}
	sortItems(items)
	return items
}

// usable drops results below the usable threshold. items must be sorted.
func (e *Engine) usable(items []model.ResultItem) []model.ResultItem {
	for i, it := range items {
		if it.CFFinal < e.cfg.UsableThreshold {
			return items[:i]
		}
	}
	return items
}

func (e *Engine) truncate(items []model.ResultItem) []model.ResultItem {
	if e.cfg.MaxResults > 0 && len(items) > e.cfg.MaxResults {
		return items[:e.cfg.MaxResults]
	}
	return items
}

func forwardItem(m RuleMatch, d model.Disease) model.ResultItem {
	cf := Normalize(m.CF)
	return model.ResultItem{
		DiseaseID:         d.ID,
		DiseaseCode:       d.Code,
		DiseaseName:       d.Name,
		CFFinal:           cf,
		Interpretation:    Interpret(cf),
		Method:            model.MethodForwardChaining,
		RuleCode:          m.Rule.Code,
		SymptomsMatched:   len(m.Matched),
		TotalSymptoms:     m.Required,
		MatchPercentage:   percentage(len(m.Matched), m.Required),
		MinSymptomMatch:   m.MinMatch,
		MatchedSymptomIDs: m.Matched,
	}
}

func certaintyItem(c CFCandidate, d model.Disease) model.ResultItem {
	cf := Normalize(c.CF)
	return model.ResultItem{
		DiseaseID:         d.ID,
		DiseaseCode:       d.Code,
		DiseaseName:       d.Name,
		CFFinal:           cf,
		Interpretation:    Interpret(cf),
		Method:            model.MethodCertaintyFactor,
		SymptomsMatched:   len(c.Matched),
		TotalSymptoms:     c.Relevant,
		MatchPercentage:   percentage(len(c.Matched), c.Relevant),
		MinSymptomMatch:   c.MinMatch,
		MatchedSymptomIDs: c.Matched,
	}
}

func percentage(matched, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(matched)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 2).
		InexactFloat64()
}

// sortItems orders by cf_final descending, then disease code ascending.
func sortItems(items []model.ResultItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CFFinal != items[j].CFFinal {
			return items[i].CFFinal > items[j].CFFinal
		}
		return items[i].DiseaseCode < items[j].DiseaseCode
	})
}

func multiInfectionWarning(items []model.ResultItem, high float64) string {
	n := 0
	for _, it := range items {
		if it.CFFinal >= high {
			n++
		}
	}
	if n >= 2 {
		return WarningMultipleHighConfidence
	}
	return ""
}

// normalizeInput collapses duplicate IDs, checks that each resolves to an
// active symptom and clamps certainties into [0,1]. The returned IDs are
// sorted ascending.
func normalizeInput(in model.DiagnosisInput, symptoms map[int64]model.Symptom) ([]int64, map[int64]float64, error) {
	if len(in.SymptomIDs) == 0 {
		return nil, nil, invalid(MsgNoSymptoms)
	}

	seen := make(map[int64]bool, len(in.SymptomIDs))
	ids := make([]int64, 0, len(in.SymptomIDs))
	for _, id := range in.SymptomIDs {
		if seen[id] {
			continue
		}
		if _, ok := symptoms[id]; !ok {
			return nil, nil, invalid(fmt.Sprintf(msgUnknownSymptom, id))
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	certainty := make(map[int64]float64, len(in.Certainty))
	for id, u := range in.Certainty {
		if !seen[id] {
			continue
		}
		if math.IsNaN(u) {
			return nil, nil, invalid(fmt.Sprintf(msgBadCertainty, id))
		}
		certainty[id] = math.Max(0, math.Min(1, u))
	}
	return ids, certainty, nil
}
