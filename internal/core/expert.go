package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/padi/internal/core/common"
	"github.com/agenthands/padi/internal/core/dedupe"
	"github.com/agenthands/padi/internal/core/engine"
	"github.com/agenthands/padi/internal/core/model"
	"github.com/agenthands/padi/internal/core/solution"
	"github.com/agenthands/padi/internal/kb"
	"github.com/agenthands/padi/internal/logging"
	"github.com/agenthands/padi/internal/store"
)

var ErrDailyLimitReached = errors.New("daily diagnosis limit reached")

const (
	msgMinSelected = "Minimal %d gejala harus dipilih untuk diagnosis yang akurat"
	msgDailyLimit  = "Anda telah mencapai batas diagnosis hari ini (%d diagnosis). Silakan coba lagi besok."
)

// LimitError reports an exhausted daily quota.
type LimitError struct {
	Limit int
}

func (e *LimitError) Error() string { return fmt.Sprintf(msgDailyLimit, e.Limit) }

func (e *LimitError) Unwrap() error { return ErrDailyLimitReached }

type Options struct {
	// MinSelectedSymptoms is a caller policy checked before inference. 0
	// disables it.
	MinSelectedSymptoms int
	// MaxDiagnosesPerDay caps persisted diagnoses per user since local
	// midnight. 0 disables it.
	MaxDiagnosesPerDay int
	// Retention sets ExpiresAt on saved records. 0 keeps them forever.
	Retention time.Duration
}

type DiagnoseRequest struct {
	UserID     string
	SymptomIDs []int64
	Certainty  map[int64]float64
	ClientIP   string
}

type DiagnoseResult struct {
	Outcome        model.Outcome
	Solution       *model.Solution
	SavedToHistory bool
	HistoryID      string
	// Duplicate is set when the request repeats a recent submission and the
	// stored diagnosis is replayed instead of running inference again.
	Duplicate bool
}

// Expert runs one diagnosis request end to end: policy checks, inference,
// treatment advice and history.
type Expert struct {
	KB           kb.KnowledgeBase
	History      store.HistoryStore
	Engine       *engine.Engine
	Solutions    *solution.Generator
	Deduplicator *dedupe.Deduplicator

	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewExpert wires the service. solutions may be nil to skip treatment advice.
func NewExpert(base kb.KnowledgeBase, history store.HistoryStore, eng *engine.Engine, solutions *solution.Generator, dedup *dedupe.Deduplicator, opts Options, logger *zap.Logger) *Expert {
	return &Expert{
		KB:           base,
		History:      history,
		Engine:       eng,
		Solutions:    solutions,
		Deduplicator: dedup,
		opts:         opts,
		logger:       logging.OrNop(logger),
		now:          time.Now,
	}
}

func (x *Expert) Diagnose(ctx context.Context, req DiagnoseRequest) (*DiagnoseResult, error) {
	if len(req.SymptomIDs) == 0 {
		return nil, &engine.InputError{Message: engine.MsgNoSymptoms}
	}
	if n := x.opts.MinSelectedSymptoms; n > 0 && len(distinct(req.SymptomIDs)) < n {
		return nil, &engine.InputError{Message: fmt.Sprintf(msgMinSelected, n)}
	}

	if dup, err := x.Deduplicator.FindDuplicate(ctx, req.UserID, req.SymptomIDs, req.Certainty); err != nil {
		x.logger.Warn("duplicate check failed", zap.String("user_id", req.UserID), zap.Error(err))
	} else if dup != nil {
		return replay(*dup), nil
	}

	if err := x.checkDailyLimit(ctx, req.UserID); err != nil {
		return nil, err
	}

	out, err := x.Engine.Diagnose(ctx, x.KB, model.DiagnosisInput{
		SymptomIDs: req.SymptomIDs,
		Certainty:  req.Certainty,
	})
	if err != nil {
		return nil, err
	}

	result := &DiagnoseResult{Outcome: out}
	diagnosed, ok := out.(*model.Diagnosed)
	if !ok {
		return result, nil
	}

	secondary := secondaries(diagnosed)
	if x.Solutions != nil {
		sol := x.Solutions.Generate(ctx, diagnosed.Disease, diagnosed.Primary.CFFinal, diagnosed.By, secondary)
		result.Solution = &sol
	}

	created := x.now()
	rec := model.HistoryRecord{
		UserID:         req.UserID,
		DiseaseID:      diagnosed.Disease.ID,
		DiseaseCode:    diagnosed.Disease.Code,
		DiseaseName:    diagnosed.Disease.Name,
		SymptomIDs:     distinct(req.SymptomIDs),
		Certainty:      selectedCertainty(req.SymptomIDs, req.Certainty),
		FinalCF:        common.Round(diagnosed.Primary.CFFinal, engine.CFPrecision),
		CertaintyLevel: diagnosed.Primary.Interpretation,
		Method:         diagnosed.By,
		Results:        diagnosed.Results,
		Solution:       result.Solution,
		ClientIP:       req.ClientIP,
		CreatedAt:      created,
	}
	if x.opts.Retention > 0 {
		rec.ExpiresAt = created.Add(x.opts.Retention)
	}

	id, err := x.History.SaveDiagnosis(ctx, rec)
	if err != nil {
		x.logger.Error("failed to save diagnosis history",
			zap.String("user_id", req.UserID),
			zap.String("disease", rec.DiseaseCode),
			zap.Error(err))
		return result, nil
	}
	result.SavedToHistory = true
	result.HistoryID = id
	return result, nil
}

func (x *Expert) checkDailyLimit(ctx context.Context, userID string) error {
	limit := x.opts.MaxDiagnosesPerDay
	if limit <= 0 || userID == "" {
		return nil
	}
	now := x.now()
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	count, err := x.History.CountSince(ctx, userID, midnight)
	if err != nil {
		// an unreadable history does not block diagnosis
		x.logger.Warn("daily limit check failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if count >= limit {
		return &LimitError{Limit: limit}
	}
	return nil
}

// replay rebuilds a diagnosed outcome from a stored record.
func replay(rec model.HistoryRecord) *DiagnoseResult {
	primary := model.ResultItem{
		DiseaseID:      rec.DiseaseID,
		DiseaseCode:    rec.DiseaseCode,
		DiseaseName:    rec.DiseaseName,
		CFFinal:        rec.FinalCF,
		Interpretation: rec.CertaintyLevel,
		Method:         rec.Method,
	}
	for _, item := range rec.Results {
		if item.DiseaseID == rec.DiseaseID {
			primary = item
			break
		}
	}
	return &DiagnoseResult{
		Outcome: &model.Diagnosed{
			By:      rec.Method,
			Primary: primary,
			Disease: model.Disease{ID: rec.DiseaseID, Code: rec.DiseaseCode, Name: rec.DiseaseName, Active: true},
			Results: rec.Results,
		},
		Solution:       rec.Solution,
		SavedToHistory: true,
		HistoryID:      rec.ID,
		Duplicate:      true,
	}
}

func secondaries(d *model.Diagnosed) []model.ResultItem {
	var out []model.ResultItem
	for _, item := range d.Results {
		if item.DiseaseID != d.Primary.DiseaseID {
			out = append(out, item)
		}
	}
	return out
}

func distinct(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func selectedCertainty(ids []int64, certainty map[int64]float64) map[int64]float64 {
	if len(certainty) == 0 {
		return nil
	}
	out := make(map[int64]float64, len(certainty))
	for id, v := range certainty {
		if slices.Contains(ids, id) {
			out[id] = v
		}
	}
	return out
}
