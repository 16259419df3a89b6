// Package memstore is an in-memory backend used for tests and the
// "memory" store driver.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agenthands/padi/internal/core/model"
	"github.com/agenthands/padi/internal/kb"
	"github.com/agenthands/padi/internal/store"
)

type Store struct {
	mu      sync.RWMutex
	seed    kb.Seed
	history map[string]model.HistoryRecord
	now     func() time.Time

	// SaveErr makes SaveDiagnosis fail, for exercising write-failure paths.
	SaveErr error
}

var _ store.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		history: make(map[string]model.HistoryRecord),
		now:     time.Now,
	}
}

// NewSeeded returns a store holding seed.
func NewSeeded(seed kb.Seed) *Store {
	s := New()
	s.seed = seed
	return s
}

func (s *Store) Close(ctx context.Context) error { return nil }

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Seed(ctx context.Context, seed kb.Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed = seed
	return nil
}

func (s *Store) ActiveSymptoms(ctx context.Context) ([]model.Symptom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]model.Symptom(nil), s.seed.Snapshot().Symptoms...)
	kb.SortSymptoms(out)
	return out, nil
}

func (s *Store) ActiveDiseases(ctx context.Context) ([]model.Disease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]model.Disease(nil), s.seed.Snapshot().Diseases...)
	kb.SortDiseases(out)
	return out, nil
}

func (s *Store) ActiveRules(ctx context.Context) ([]model.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules := s.seed.Snapshot().Rules
	out := make([]model.Rule, len(rules))
	for i, r := range rules {
		r.SymptomIDs = append([]int64(nil), r.SymptomIDs...)
		out[i] = r
	}
	return out, nil
}

func (s *Store) SaveDiagnosis(ctx context.Context, rec model.HistoryRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return "", s.SaveErr
	}
	if rec.ID == "" {
		rec.ID = store.NewID(rec.CreatedAt)
	}
	s.history[rec.ID] = rec
	return rec.ID, nil
}

func (s *Store) GetDiagnosis(ctx context.Context, id string) (model.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.history[id]
	if !ok {
		return model.HistoryRecord{}, fmt.Errorf("diagnosis %s: %w", id, kb.ErrNotFound)
	}
	return rec, nil
}

func (s *Store) ListDiagnoses(ctx context.Context, userID string, page, perPage int) ([]model.HistoryRecord, int, error) {
	_, perPage, offset := store.Page(page, perPage)
	now := s.now()
	all := s.filter(func(r model.HistoryRecord) bool {
		return r.UserID == userID && !r.Expired(now)
	})
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + perPage
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (s *Store) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	return len(s.since(userID, since)), nil
}

func (s *Store) RecentByUser(ctx context.Context, userID string, since time.Time) ([]model.HistoryRecord, error) {
	return s.since(userID, since), nil
}

func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.history {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.history, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) since(userID string, since time.Time) []model.HistoryRecord {
	return s.filter(func(r model.HistoryRecord) bool {
		return r.UserID == userID && !r.CreatedAt.Before(since)
	})
}

// filter returns matching records newest first.
func (s *Store) filter(keep func(model.HistoryRecord) bool) []model.HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.HistoryRecord
	for _, rec := range s.history {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
