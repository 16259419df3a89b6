package model

import "time"

// HistoryRecord is one persisted diagnosis.
type HistoryRecord struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id,omitempty"`
	DiseaseID      int64             `json:"disease_id"`
	DiseaseCode    string            `json:"disease_code"`
	DiseaseName    string            `json:"disease_name"`
	SymptomIDs     []int64           `json:"selected_symptoms"`
	Certainty      map[int64]float64 `json:"cf_values,omitempty"`
	FinalCF        float64           `json:"final_cf_value"`
	CertaintyLevel string            `json:"certainty_level"`
	Method         Method            `json:"diagnosis_method"`
	Results        []ResultItem      `json:"diagnosis_results"`
	Solution       *Solution         `json:"ai_solution,omitempty"`
	ClientIP       string            `json:"ip_address,omitempty"`
	CreatedAt      time.Time         `json:"diagnosis_date"`
	ExpiresAt      time.Time         `json:"expires_at"`
}

func (h HistoryRecord) Expired(now time.Time) bool {
	return !h.ExpiresAt.IsZero() && now.After(h.ExpiresAt)
}
