package server

import (
	"github.com/agenthands/padi/internal/core"
	"github.com/agenthands/padi/internal/core/model"
)

const msgDuplicate = "Diagnosis sudah ada, menampilkan hasil sebelumnya"

type DiagnosisRequest struct {
	SymptomIDs []int64 `json:"symptom_ids"`
	// CertaintyValues is keyed by the symptom ID as a string, the way JSON
	// objects carry it.
	CertaintyValues map[string]float64 `json:"certainty_values"`
}

type DiagnosisResponse struct {
	Success   bool          `json:"success"`
	Method    model.Method  `json:"method"`
	Status    model.Status  `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duplicate bool          `json:"duplicate"`
	Data      DiagnosisData `json:"data"`
}

type DiagnosisData struct {
	Results         []model.ResultItem        `json:"results"`
	Primary         *model.ResultItem         `json:"primary"`
	Disease         *model.Disease            `json:"disease"`
	Confidence      float64                   `json:"confidence"`
	CertaintyLevel  string                    `json:"certainty_level"`
	Warning         *string                   `json:"warning"`
	AlertMessage    *string                   `json:"alert_message"`
	Recommendations []model.Recommendation    `json:"recommendations"`
	AISolution      *model.StructuredSolution `json:"ai_solution"`
	SolutionSource  string                    `json:"ai_solution_source,omitempty"`
	SavedToHistory  bool                      `json:"saved_to_history"`
	HistoryID       string                    `json:"history_id,omitempty"`
}

type ErrorResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	LimitReached bool   `json:"limit_reached,omitempty"`
}

type HistoryPage struct {
	Items   []model.HistoryRecord `json:"items"`
	Total   int                   `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
}

// NewDiagnosisResponse renders a diagnosis in the public response contract.
func NewDiagnosisResponse(res *core.DiagnoseResult) DiagnosisResponse {
	out := res.Outcome
	resp := DiagnosisResponse{
		Success:   true,
		Method:    out.Method(),
		Status:    out.Status(),
		Duplicate: res.Duplicate,
		Data: DiagnosisData{
			Results:         nonNil(out.Items()),
			Recommendations: []model.Recommendation{},
			SavedToHistory:  res.SavedToHistory,
			HistoryID:       res.HistoryID,
		},
	}

	switch o := out.(type) {
	case *model.Diagnosed:
		primary, disease := o.Primary, o.Disease
		resp.Data.Primary = &primary
		resp.Data.Disease = &disease
		resp.Data.Warning = optional(o.Warning)
		if o.Recommendations != nil {
			resp.Data.Recommendations = o.Recommendations
		}
	case *model.InsufficientMatch:
		resp.Data.Primary = o.Primary
		resp.Data.Disease = o.Disease
		resp.Data.Warning = optional(o.Warning)
		resp.Data.AlertMessage = optional(o.AlertMessage)
		resp.Message = o.AlertMessage
		if o.Recommendations != nil {
			resp.Data.Recommendations = o.Recommendations
		}
	}

	if p := resp.Data.Primary; p != nil {
		resp.Data.Confidence = p.CFFinal
		resp.Data.CertaintyLevel = p.Interpretation
	}
	if res.Solution != nil {
		structured := res.Solution.Structured
		resp.Data.AISolution = &structured
		resp.Data.SolutionSource = res.Solution.Source
	}
	if res.Duplicate {
		resp.Message = msgDuplicate
	}
	return resp
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
