// Package kb defines the knowledge base the diagnosis engine reads from.
package kb

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/agenthands/padi/internal/core/model"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidSeed = errors.New("invalid knowledge base seed")
)

// KnowledgeBase is read-only from the engine's point of view. Every method
// returns active records only.
type KnowledgeBase interface {
	ActiveSymptoms(ctx context.Context) ([]model.Symptom, error)
	ActiveDiseases(ctx context.Context) ([]model.Disease, error)
	ActiveRules(ctx context.Context) ([]model.Rule, error)
}

// Seeder replaces a backend's knowledge base with the given seed.
type Seeder interface {
	Seed(ctx context.Context, seed Seed) error
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Snapshot is a consistent read of the whole knowledge base.
type Snapshot struct {
	Symptoms []model.Symptom
	Diseases []model.Disease
	Rules    []model.Rule
}

// Load reads all three collections from base.
func Load(ctx context.Context, base KnowledgeBase) (Snapshot, error) {
	symptoms, err := base.ActiveSymptoms(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load symptoms: %w", err)
	}
	diseases, err := base.ActiveDiseases(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load diseases: %w", err)
	}
	rules, err := base.ActiveRules(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load rules: %w", err)
	}
	return Snapshot{Symptoms: symptoms, Diseases: diseases, Rules: rules}, nil
}

func (s Snapshot) SymptomIndex() map[int64]model.Symptom {
	idx := make(map[int64]model.Symptom, len(s.Symptoms))
	for _, sym := range s.Symptoms {
		idx[sym.ID] = sym
	}
	return idx
}

func (s Snapshot) DiseaseIndex() map[int64]model.Disease {
	idx := make(map[int64]model.Disease, len(s.Diseases))
	for _, d := range s.Diseases {
		idx[d.ID] = d
	}
	return idx
}

// Disease looks up an active disease by ID.
func (s Snapshot) Disease(id int64) (model.Disease, error) {
	for _, d := range s.Diseases {
		if d.ID == id {
			return d, nil
		}
	}
	return model.Disease{}, fmt.Errorf("disease %d: %w", id, ErrNotFound)
}

// SortSymptoms orders symptoms by code, then ID.
func SortSymptoms(symptoms []model.Symptom) {
	sort.Slice(symptoms, func(i, j int) bool {
		if symptoms[i].Code != symptoms[j].Code {
			return symptoms[i].Code < symptoms[j].Code
		}
		return symptoms[i].ID < symptoms[j].ID
	})
}

// SortDiseases orders diseases by code, then ID.
func SortDiseases(diseases []model.Disease) {
	sort.Slice(diseases, func(i, j int) bool {
		if diseases[i].Code != diseases[j].Code {
			return diseases[i].Code < diseases[j].Code
		}
		return diseases[i].ID < diseases[j].ID
	})
}
