// Package dedupe detects a diagnosis request that repeats one the same user
// submitted moments ago, typically a double click or a client retry.
package dedupe

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/agenthands/padi/internal/core/model"
)

// RecentFinder is the slice of the history store the guard reads.
type RecentFinder interface {
	RecentByUser(ctx context.Context, userID string, since time.Time) ([]model.HistoryRecord, error)
}

type Deduplicator struct {
	store  RecentFinder
	window time.Duration
	now    func() time.Time
}

// NewDeduplicator returns a guard over window. A zero window or an anonymous
// user never matches.
func NewDeduplicator(store RecentFinder, window time.Duration) *Deduplicator {
	return &Deduplicator{store: store, window: window, now: time.Now}
}

// FindDuplicate returns the newest record of userID inside the window with
// the same symptom set and certainty values, or nil.
func (d *Deduplicator) FindDuplicate(ctx context.Context, userID string, symptomIDs []int64, certainty map[int64]float64) (*model.HistoryRecord, error) {
	if d == nil || d.window <= 0 || userID == "" {
		return nil, nil
	}

	recent, err := d.store.RecentByUser(ctx, userID, d.now().Add(-d.window))
	if err != nil {
		return nil, fmt.Errorf("failed to load recent diagnoses: %w", err)
	}

	var match *model.HistoryRecord
	for i := range recent {
		rec := &recent[i]
		if !SameSubmission(rec.SymptomIDs, rec.Certainty, symptomIDs, certainty) {
			continue
		}
		if match == nil || rec.CreatedAt.After(match.CreatedAt) {
			match = rec
		}
	}
	return match, nil
}

// SameSubmission compares symptom selections as sets and certainty values
// only for selected symptoms.
func SameSubmission(aIDs []int64, aCF map[int64]float64, bIDs []int64, bCF map[int64]float64) bool {
	a, b := symptomSet(aIDs), symptomSet(bIDs)
	if !slices.Equal(a, b) {
		return false
	}
	return maps.Equal(selected(aCF, a), selected(bCF, b))
}

func symptomSet(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

func selected(cf map[int64]float64, ids []int64) map[int64]float64 {
	out := make(map[int64]float64, len(cf))
	for id, v := range cf {
		if _, ok := slices.BinarySearch(ids, id); ok {
			out[id] = v
		}
	}
	return out
}
