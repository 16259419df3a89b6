package engine

import (
	"fmt"

	"github.com/agenthands/padi/internal/core/model"
	"github.com/agenthands/padi/internal/kb"
)

// recommend suggests unselected symptoms for mid-confidence results so the
// user can confirm or rule out the disease.
func (e *Engine) recommend(items []model.ResultItem, selected map[int64]bool, relevance map[int64]*relevanceSet, symptoms map[int64]model.Symptom) []model.Recommendation {
	if e.cfg.MaxSuggestions <= 0 {
		return nil
	}

	var recs []model.Recommendation
	for _, it := range items {
		if it.CFFinal < e.cfg.RecommendLow || it.CFFinal >= e.cfg.RecommendHigh {
			continue
		}
		rel, ok := relevance[it.DiseaseID]
		if !ok {
			continue
		}

		var missing []model.Symptom
		for id := range rel.symptoms {
			if selected[id] {
				continue
			}
			if s, ok := symptoms[id]; ok {
				missing = append(missing, s)
			}
		}
		if len(missing) == 0 {
			continue
		}
		kb.SortSymptoms(missing)
		if len(missing) > e.cfg.MaxSuggestions {
			missing = missing[:e.cfg.MaxSuggestions]
		}

		suggested := make([]model.SuggestedSymptom, 0, len(missing))
		for _, s := range missing {
			suggested = append(suggested, model.SuggestedSymptom{ID: s.ID, Code: s.Code, Name: s.Name})
		}
		recs = append(recs, model.Recommendation{
			DiseaseCode:       it.DiseaseCode,
			DiseaseName:       it.DiseaseName,
			CurrentCF:         it.CFFinal,
			SuggestedSymptoms: suggested,
			Message:           fmt.Sprintf(msgRecommend, it.DiseaseName),
		})
	}
	return recs
}
