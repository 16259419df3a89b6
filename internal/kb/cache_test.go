package kb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/padi/internal/core/model"
)

type MockKB struct {
	mu      sync.Mutex
	Loads   int
	Err     error
	PingErr error
}

func (m *MockKB) ActiveSymptoms(ctx context.Context) ([]model.Symptom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Loads++
	return []model.Symptom{{ID: 2, Code: "G02"}, {ID: 1, Code: "G01"}}, m.Err
}

func (m *MockKB) ActiveDiseases(ctx context.Context) ([]model.Disease, error) {
	return []model.Disease{{ID: 1, Code: "P01"}}, nil
}

func (m *MockKB) ActiveRules(ctx context.Context) ([]model.Rule, error) {
	return []model.Rule{{ID: 1, DiseaseID: 1, SymptomIDs: []int64{1, 2}}}, nil
}

func (m *MockKB) Ping(ctx context.Context) error { return m.PingErr }

func TestCache_LoadsOnce(t *testing.T) {
	base := &MockKB{}
	c := NewCache(base, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Snapshot(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, base.Loads)

	c.Invalidate()
	rules, err := c.ActiveRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, rules, 1)
	assert.Equal(t, 2, base.Loads)
}

func TestCache_Disabled(t *testing.T) {
	base := &MockKB{}
	c := NewCache(base, 0)

	_, _ = c.ActiveSymptoms(context.Background())
	_, _ = c.ActiveSymptoms(context.Background())
	assert.Equal(t, 2, base.Loads)
}

func TestCache_ErrorNotCached(t *testing.T) {
	base := &MockKB{Err: errors.New("db down")}
	c := NewCache(base, time.Minute)

	_, err := c.Snapshot(context.Background())
	require.Error(t, err)

	base.Err = nil
	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Symptoms, 2)
}

func TestCache_Ping(t *testing.T) {
	base := &MockKB{PingErr: errors.New("unreachable")}
	assert.EqualError(t, NewCache(base, time.Minute).Ping(context.Background()), "unreachable")
}

func TestSnapshot_Lookups(t *testing.T) {
	snap, err := Load(context.Background(), &MockKB{})
	require.NoError(t, err)

	assert.Len(t, snap.SymptomIndex(), 2)
	d, err := snap.Disease(1)
	require.NoError(t, err)
	assert.Equal(t, "P01", d.Code)

	_, err = snap.Disease(42)
	assert.ErrorIs(t, err, ErrNotFound)

	SortSymptoms(snap.Symptoms)
	assert.Equal(t, "G01", snap.Symptoms[0].Code)
}
