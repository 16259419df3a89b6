package kb

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agenthands/padi/internal/core/model"
)

// Seed is a fully resolved knowledge base ready to be written to a backend.
type Seed struct {
	Symptoms []model.Symptom
	Diseases []model.Disease
	Rules    []model.Rule
}

// Snapshot returns the active part of the seed.
func (s Seed) Snapshot() Snapshot {
	var snap Snapshot
	for _, sym := range s.Symptoms {
		if sym.Active {
			snap.Symptoms = append(snap.Symptoms, sym)
		}
	}
	for _, d := range s.Diseases {
		if d.Active {
			snap.Diseases = append(snap.Diseases, d)
		}
	}
	for _, r := range s.Rules {
		if r.Active {
			snap.Rules = append(snap.Rules, r)
		}
	}
	return snap
}

type seedFile struct {
	Symptoms []seedSymptom `yaml:"symptoms"`
	Diseases []seedDisease `yaml:"diseases"`
	Rules    []seedRule    `yaml:"rules"`
}

type seedSymptom struct {
	ID          int64   `yaml:"id"`
	Code        string  `yaml:"code"`
	Name        string  `yaml:"name"`
	Category    string  `yaml:"category"`
	Description string  `yaml:"description"`
	MB          float64 `yaml:"mb"`
	MD          float64 `yaml:"md"`
	Active      *bool   `yaml:"active"`
}

type seedDisease struct {
	ID          int64  `yaml:"id"`
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Severity    string `yaml:"severity"`
	Active      *bool  `yaml:"active"`
}

// seedRule references diseases and symptoms by code.
type seedRule struct {
	ID              int64    `yaml:"id"`
	Code            string   `yaml:"code"`
	Disease         string   `yaml:"disease"`
	Symptoms        []string `yaml:"symptoms"`
	ConfidenceLevel float64  `yaml:"confidence_level"`
	MinSymptomMatch int      `yaml:"min_symptom_match"`
	Active          *bool    `yaml:"active"`
}

func active(b *bool) bool { return b == nil || *b }

// LoadSeedFile reads and validates a YAML knowledge base.
func LoadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, err
	}
	defer f.Close()
	return ParseSeed(f)
}

// ParseSeed decodes a YAML knowledge base and checks its invariants. All
// violations are reported together, wrapped in ErrInvalidSeed.
func ParseSeed(r io.Reader) (Seed, error) {
	var raw seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return Seed{}, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	seed := Seed{}
	symptomIDs := make(map[string]int64)
	seenSymptomID := make(map[int64]bool)
	for _, s := range raw.Symptoms {
		switch {
		case s.ID <= 0:
			fail("symptom %q: id must be positive", s.Code)
		case seenSymptomID[s.ID]:
			fail("symptom %q: duplicate id %d", s.Code, s.ID)
		}
		if s.Code == "" {
			fail("symptom %d: code is required", s.ID)
		} else if _, dup := symptomIDs[s.Code]; dup {
			fail("symptom %q: duplicate code", s.Code)
		}
		if s.MB < 0 || s.MB > 1 || s.MD < 0 || s.MD > 1 {
			fail("symptom %q: mb and md must be within [0,1]", s.Code)
		}
		seenSymptomID[s.ID] = true
		symptomIDs[s.Code] = s.ID
		seed.Symptoms = append(seed.Symptoms, model.Symptom{
			ID:          s.ID,
			Code:        s.Code,
			Name:        s.Name,
			Category:    model.Category(s.Category),
			Description: s.Description,
			MB:          s.MB,
			MD:          s.MD,
			Active:      active(s.Active),
		})
	}

	diseaseIDs := make(map[string]int64)
	seenDiseaseID := make(map[int64]bool)
	for _, d := range raw.Diseases {
		switch {
		case d.ID <= 0:
			fail("disease %q: id must be positive", d.Code)
		case seenDiseaseID[d.ID]:
			fail("disease %q: duplicate id %d", d.Code, d.ID)
		}
		if d.Code == "" {
			fail("disease %d: code is required", d.ID)
		} else if _, dup := diseaseIDs[d.Code]; dup {
			fail("disease %q: duplicate code", d.Code)
		}
		seenDiseaseID[d.ID] = true
		diseaseIDs[d.Code] = d.ID
		seed.Diseases = append(seed.Diseases, model.Disease{
			ID:          d.ID,
			Code:        d.Code,
			Name:        d.Name,
			Description: d.Description,
			Severity:    d.Severity,
			Active:      active(d.Active),
		})
	}

	seenRuleCode := make(map[string]bool)
	for i, r := range raw.Rules {
		id := r.ID
		if id == 0 {
			id = int64(i + 1)
		}
		if r.Code == "" {
			fail("rule %d: code is required", id)
		} else if seenRuleCode[r.Code] {
			fail("rule %q: duplicate code", r.Code)
		}
		seenRuleCode[r.Code] = true

		diseaseID, ok := diseaseIDs[r.Disease]
		if !ok {
			fail("rule %q: unknown disease %q", r.Code, r.Disease)
		}
		if len(r.Symptoms) == 0 {
			fail("rule %q: at least one symptom is required", r.Code)
		}

		ids := make([]int64, 0, len(r.Symptoms))
		seen := make(map[string]bool, len(r.Symptoms))
		for _, code := range r.Symptoms {
			if seen[code] {
				fail("rule %q: symptom %q listed twice", r.Code, code)
				continue
			}
			seen[code] = true
			sid, ok := symptomIDs[code]
			if !ok {
				fail("rule %q: unknown symptom %q", r.Code, code)
				continue
			}
			ids = append(ids, sid)
		}
		if r.MinSymptomMatch < 1 || r.MinSymptomMatch > len(r.Symptoms) {
			fail("rule %q: min_symptom_match must be within [1,%d]", r.Code, len(r.Symptoms))
		}
		if r.ConfidenceLevel < 0 || r.ConfidenceLevel > 1 {
			fail("rule %q: confidence_level must be within [0,1]", r.Code)
		}

		seed.Rules = append(seed.Rules, model.Rule{
			ID:              id,
			Code:            r.Code,
			DiseaseID:       diseaseID,
			SymptomIDs:      ids,
			ConfidenceLevel: r.ConfidenceLevel,
			MinSymptomMatch: r.MinSymptomMatch,
			Active:          active(r.Active),
		})
	}

	if len(errs) > 0 {
		return Seed{}, fmt.Errorf("%w: %w", ErrInvalidSeed, errors.Join(errs...))
	}
	return seed, nil
}
