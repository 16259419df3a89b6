package model

// Rule asserts Disease when enough of SymptomIDs are observed.
type Rule struct {
	ID              int64   `json:"id"`
	Code            string  `json:"code"`
	DiseaseID       int64   `json:"disease_id"`
	SymptomIDs      []int64 `json:"symptom_ids"`
	ConfidenceLevel float64 `json:"confidence_level"`
	MinSymptomMatch int     `json:"min_symptom_match"`
	Active          bool    `json:"active"`
}
