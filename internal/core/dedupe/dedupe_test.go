package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/padi/internal/core/model"
)

type MockRecent struct {
	Records []model.HistoryRecord
	Err     error
	Since   time.Time
	Calls   int
}

func (m *MockRecent) RecentByUser(ctx context.Context, userID string, since time.Time) ([]model.HistoryRecord, error) {
	m.Calls++
	m.Since = since
	if m.Err != nil {
		return nil, m.Err
	}
	var out []model.HistoryRecord
	for _, r := range m.Records {
		if r.UserID == userID && !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestFindDuplicate(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	mock := &MockRecent{Records: []model.HistoryRecord{
		{ID: "old", UserID: "u1", SymptomIDs: []int64{1, 2, 3}, CreatedAt: now.Add(-time.Minute)},
		{ID: "a", UserID: "u1", SymptomIDs: []int64{3, 1, 2}, Certainty: map[int64]float64{1: 0.8}, CreatedAt: now.Add(-5 * time.Second)},
		{ID: "b", UserID: "u1", SymptomIDs: []int64{1, 2, 3}, Certainty: map[int64]float64{1: 0.8}, CreatedAt: now.Add(-2 * time.Second)},
		{ID: "other", UserID: "u2", SymptomIDs: []int64{1, 2, 3}, CreatedAt: now},
	}}
	d := NewDeduplicator(mock, 10*time.Second)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	rec, err := d.FindDuplicate(ctx, "u1", []int64{2, 3, 1}, map[int64]float64{1: 0.8, 9: 0.1})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "b", rec.ID, "newest match wins")
	assert.Equal(t, now.Add(-10*time.Second), mock.Since)

	rec, err = d.FindDuplicate(ctx, "u1", []int64{1, 2, 3}, nil)
	require.NoError(t, err)
	assert.Nil(t, rec, "the bare selection is outside the window")

	rec, err = d.FindDuplicate(ctx, "u1", []int64{1, 2, 3}, map[int64]float64{1: 0.6})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFindDuplicate_Disabled(t *testing.T) {
	mock := &MockRecent{}

	rec, err := NewDeduplicator(mock, 0).FindDuplicate(context.Background(), "u1", []int64{1}, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = NewDeduplicator(mock, time.Minute).FindDuplicate(context.Background(), "", []int64{1}, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)

	var nilGuard *Deduplicator
	rec, err = nilGuard.FindDuplicate(context.Background(), "u1", []int64{1}, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)

	assert.Zero(t, mock.Calls)
}

func TestFindDuplicate_StoreError(t *testing.T) {
	mock := &MockRecent{Err: errors.New("locked")}
	_, err := NewDeduplicator(mock, time.Minute).FindDuplicate(context.Background(), "u1", []int64{1}, nil)
	assert.ErrorContains(t, err, "locked")
}

func TestSameSubmission(t *testing.T) {
	tests := []struct {
		name string
		aIDs []int64
		aCF  map[int64]float64
		bIDs []int64
		bCF  map[int64]float64
		want bool
	}{
		{"order and duplicates ignored", []int64{1, 2, 2}, nil, []int64{2, 1}, nil, true},
		{"nil and empty certainty", []int64{1}, nil, []int64{1}, map[int64]float64{}, true},
		{"unselected certainty ignored", []int64{1}, map[int64]float64{5: 0.4}, []int64{1}, nil, true},
		{"different sets", []int64{1, 2}, nil, []int64{1, 3}, nil, false},
		{"different certainty", []int64{1}, map[int64]float64{1: 0.4}, []int64{1}, map[int64]float64{1: 0.6}, false},
		{"certainty only on one side", []int64{1}, map[int64]float64{1: 1.0}, []int64{1}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameSubmission(tt.aIDs, tt.aCF, tt.bIDs, tt.bCF))
		})
	}
}
