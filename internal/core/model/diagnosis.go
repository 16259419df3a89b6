package model

// Method names the inference pass that produced a result.
type Method string

const (
	MethodForwardChaining Method = "forward_chaining"
	MethodCertaintyFactor Method = "certainty_factor"
)

// Status is the caller-visible classification of an outcome.
type Status string

const (
	StatusDiagnosed         Status = "diagnosed"
	StatusInsufficientMatch Status = "insufficient_match"
)

// DiagnosisInput is one request to the engine. Certainty maps symptom ID to
// the user's belief in [0,1]; missing entries mean 1.0.
type DiagnosisInput struct {
	SymptomIDs []int64
	Certainty  map[int64]float64
}

type ResultItem struct {
	DiseaseID      int64   `json:"disease_id"`
	DiseaseCode    string  `json:"disease_code"`
	DiseaseName    string  `json:"disease_name"`
	CFFinal        float64 `json:"cf_final"`
	Interpretation string  `json:"interpretation"`
	Method         Method  `json:"method"`

	RuleCode          string  `json:"rule_code,omitempty"`
	SymptomsMatched   int     `json:"symptoms_matched"`
	TotalSymptoms     int     `json:"total_symptoms"`
	MatchPercentage   float64 `json:"match_percentage"` // 0..100
	MinSymptomMatch   int     `json:"min_symptom_match"`
	MatchedSymptomIDs []int64 `json:"matched_symptom_ids,omitempty"`
}

// MeetsMinMatch reports whether the disease saw enough of its symptoms.
func (r ResultItem) MeetsMinMatch() bool {
	return r.SymptomsMatched >= r.MinSymptomMatch
}

type SuggestedSymptom struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Recommendation lists symptoms worth checking to confirm a mid-confidence result.
type Recommendation struct {
	DiseaseCode       string             `json:"disease_code"`
	DiseaseName       string             `json:"disease_name"`
	CurrentCF         float64            `json:"current_cf"`
	SuggestedSymptoms []SuggestedSymptom `json:"suggested_symptoms"`
	Message           string             `json:"message"`
}

// Outcome is either *Diagnosed or *InsufficientMatch.
type Outcome interface {
	Status() Status
	Method() Method
	Items() []ResultItem
	outcome()
}

type Diagnosed struct {
	By              Method
	Primary         ResultItem
	Disease         Disease
	Results         []ResultItem
	Warning         string
	Recommendations []Recommendation
}

func (d *Diagnosed) Status() Status      { return StatusDiagnosed }
func (d *Diagnosed) Method() Method      { return d.By }
func (d *Diagnosed) Items() []ResultItem { return d.Results }
func (*Diagnosed) outcome()              {}

// InsufficientMatch is a normal outcome, not an error. Primary and Disease are
// nil when no candidate cleared the usable threshold.
type InsufficientMatch struct {
	By              Method
	Primary         *ResultItem
	Disease         *Disease
	Results         []ResultItem
	Warning         string
	AlertMessage    string
	Recommendations []Recommendation
}

func (m *InsufficientMatch) Status() Status      { return StatusInsufficientMatch }
func (m *InsufficientMatch) Method() Method      { return m.By }
func (m *InsufficientMatch) Items() []ResultItem { return m.Results }
func (*InsufficientMatch) outcome()              {}
