package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/padi/internal/core/model"
	"github.com/agenthands/padi/internal/kb"
)

type executed struct {
	Query  string
	Params map[string]any
}

type MockDriver struct {
	Executed    []executed
	ResultQueue []neo4j.EagerResult
	Err         error
	Closed      bool
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error) {
	m.Executed = append(m.Executed, executed{Query: query, Params: params})
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	if len(m.ResultQueue) > 0 {
		res := m.ResultQueue[0]
		m.ResultQueue = m.ResultQueue[1:]
		return res, nil
	}
	return neo4j.EagerResult{}, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error { return nil }

func (m *MockDriver) Close(ctx context.Context) error {
	m.Closed = true
	return nil
}

func result(keys []string, rows ...[]any) neo4j.EagerResult {
	res := neo4j.EagerResult{Keys: keys}
	for _, row := range rows {
		res.Records = append(res.Records, &neo4j.Record{Keys: keys, Values: row})
	}
	return res
}

func TestGraphStore_KnowledgeBase(t *testing.T) {
	mock := &MockDriver{ResultQueue: []neo4j.EagerResult{
		result([]string{"id", "code", "name", "category", "description", "mb", "md"},
			[]any{int64(1), "G01", "Bercak", "daun", nil, 0.8, 0.1},
			[]any{int64(2), "G02", "Kerdil", nil, nil, int64(1), 0.0},
		),
		result([]string{"id", "code", "name", "description", "severity"},
			[]any{int64(1), "P01", "Blas", "Jamur", "high"},
		),
		result([]string{"id", "code", "disease_id", "confidence_level", "min_symptom_match", "symptom_ids"},
			[]any{int64(1), "R01", int64(1), 0.9, int64(2), []any{int64(2), int64(1)}},
		),
	}}
	g := NewGraphStore(mock, nil)

	snap, err := kb.Load(context.Background(), g)
	require.NoError(t, err)

	require.Len(t, snap.Symptoms, 2)
	assert.Equal(t, model.CategoryLeaf, snap.Symptoms[0].Category)
	assert.Equal(t, 1.0, snap.Symptoms[1].MB, "integral floats come back as int64")
	assert.Equal(t, "high", snap.Diseases[0].Severity)

	require.Len(t, snap.Rules, 1)
	assert.Equal(t, []int64{2, 1}, snap.Rules[0].SymptomIDs)
	assert.Equal(t, 2, snap.Rules[0].MinSymptomMatch)

	assert.Equal(t, ActiveSymptomsQuery, mock.Executed[0].Query)
	assert.Equal(t, ActiveRulesQuery, mock.Executed[2].Query)
}

func TestGraphStore_Seed(t *testing.T) {
	mock := &MockDriver{}
	g := NewGraphStore(mock, nil)

	err := g.Seed(context.Background(), kb.Seed{
		Diseases: []model.Disease{{ID: 1, Code: "P01", Name: "Blas", Active: true}},
		Symptoms: []model.Symptom{{ID: 1, Code: "G01", MB: 0.8, Active: true}},
		Rules:    []model.Rule{{ID: 1, Code: "R01", DiseaseID: 1, SymptomIDs: []int64{1}, ConfidenceLevel: 0.9, MinSymptomMatch: 1, Active: true}},
	})
	require.NoError(t, err)

	require.Len(t, mock.Executed, 4)
	assert.Equal(t, ClearKnowledgeQuery, mock.Executed[0].Query)
	rules := mock.Executed[3].Params["rules"].([]any)
	rule := rules[0].(map[string]any)
	assert.Equal(t, []any{int64(1)}, rule["symptom_ids"])
	assert.Equal(t, int64(1), rule["min_symptom_match"])
}

func TestGraphStore_SeedError(t *testing.T) {
	mock := &MockDriver{Err: errors.New("bolt closed")}
	err := NewGraphStore(mock, nil).Seed(context.Background(), kb.Seed{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed clear")
}

func TestGraphStore_HistoryRoundTrip(t *testing.T) {
	mock := &MockDriver{}
	g := NewGraphStore(mock, nil)
	created := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

	in := model.HistoryRecord{
		UserID:         "u1",
		DiseaseID:      1,
		DiseaseCode:    "P01",
		DiseaseName:    "Blas",
		SymptomIDs:     []int64{1, 2},
		Certainty:      map[int64]float64{2: 0.5},
		FinalCF:        0.82,
		CertaintyLevel: "Yakin",
		Method:         model.MethodCertaintyFactor,
		Results:        []model.ResultItem{{DiseaseID: 1, DiseaseCode: "P01", CFFinal: 0.82}},
		Solution:       &model.Solution{RawText: "ok", Source: "fallback"},
		CreatedAt:      created,
		ExpiresAt:      created.Add(24 * time.Hour),
	}
	id, err := g.SaveDiagnosis(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	params := mock.Executed[0].Params
	assert.Equal(t, id, params["id"])
	assert.Equal(t, created.UnixMilli(), params["created_at"])

	// feed the saved properties back as the stored node
	mock.ResultQueue = []neo4j.EagerResult{result([]string{"h"}, []any{params})}
	got, err := g.GetDiagnosis(context.Background(), id)
	require.NoError(t, err)

	in.ID = id
	assert.Equal(t, in, got)
}

func TestGraphStore_GetDiagnosisNotFound(t *testing.T) {
	g := NewGraphStore(&MockDriver{}, nil)
	_, err := g.GetDiagnosis(context.Background(), "nope")
	assert.ErrorIs(t, err, kb.ErrNotFound)
}

func TestGraphStore_ListAndCounts(t *testing.T) {
	now := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	node := map[string]any{
		"id": "01J", "user_id": "u1", "disease_id": int64(1), "symptom_ids": []any{int64(1)},
		"results": "[]", "created_at": now.UnixMilli(), "expires_at": int64(0),
	}
	mock := &MockDriver{ResultQueue: []neo4j.EagerResult{
		result([]string{"total"}, []any{int64(7)}),
		result([]string{"h"}, []any{node}),
		result([]string{"total"}, []any{int64(3)}),
		result([]string{"deleted"}, []any{int64(2)}),
	}}
	g := NewGraphStore(mock, nil)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	list, total, err := g.ListDiagnoses(ctx, "u1", 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, list, 1)
	assert.True(t, list[0].ExpiresAt.IsZero())
	assert.Equal(t, int64(5), mock.Executed[1].Params["skip"])
	assert.Equal(t, now.UnixMilli(), mock.Executed[1].Params["now"])

	n, err := g.CountSince(ctx, "u1", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	deleted, err := g.DeleteBefore(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}

func TestGraphStore_PingAndClose(t *testing.T) {
	mock := &MockDriver{}
	g := NewGraphStore(mock, nil)

	require.NoError(t, g.Ping(context.Background()))
	assert.Equal(t, PingQuery, mock.Executed[0].Query)
	require.NoError(t, g.Close(context.Background()))
	assert.True(t, mock.Closed)
}
