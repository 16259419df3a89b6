//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/padi/internal/core"
	"github.com/agenthands/padi/internal/core/dedupe"
	"github.com/agenthands/padi/internal/core/engine"
	"github.com/agenthands/padi/internal/core/model"
	"github.com/agenthands/padi/internal/core/solution"
	"github.com/agenthands/padi/internal/driver"
	"github.com/agenthands/padi/internal/kb"
)

func openGraphStore(t *testing.T) *driver.GraphStore {
	t.Helper()
	_ = godotenv.Load("../../.env")

	uri := os.Getenv("MEMGRAPH_URI")
	if uri == "" {
		t.Skip("Skipping integration test: MEMGRAPH_URI not set")
	}

	ctx := context.Background()
	d, err := driver.NewMemgraphDriver(ctx, uri, os.Getenv("MEMGRAPH_USER"), os.Getenv("MEMGRAPH_PASSWORD"), nil)
	require.NoError(t, err)
	require.NoError(t, d.BuildIndices(ctx))

	g := driver.NewGraphStore(d, nil)
	t.Cleanup(func() { g.Close(context.Background()) })

	seed, err := kb.LoadSeedFile("../../config/knowledge.yaml")
	require.NoError(t, err)
	require.NoError(t, g.Seed(ctx, seed))
	return g
}

func TestMemgraph_KnowledgeBase(t *testing.T) {
	g := openGraphStore(t)
	ctx := context.Background()

	snap, err := kb.Load(ctx, g)
	require.NoError(t, err)
	assert.Len(t, snap.Symptoms, 18)
	assert.Len(t, snap.Diseases, 6)
	assert.Len(t, snap.Rules, 7)

	for _, r := range snap.Rules {
		if r.Code == "R01" {
			assert.ElementsMatch(t, []int64{1, 2, 7, 12}, r.SymptomIDs)
		}
	}
	require.NoError(t, g.Ping(ctx))
}

func TestMemgraph_DiagnoseAndHistory(t *testing.T) {
	g := openGraphStore(t)
	ctx := context.Background()

	gen, err := solution.NewGenerator(nil, "", 0, nil)
	require.NoError(t, err)
	expert := core.NewExpert(kb.NewCache(g, time.Minute), g, engine.New(engine.DefaultConfig()), gen,
		dedupe.NewDeduplicator(g, 10*time.Second), core.Options{Retention: time.Hour}, nil)

	user := "it-" + time.Now().Format("150405.000000")
	res, err := expert.Diagnose(ctx, core.DiagnoseRequest{UserID: user, SymptomIDs: []int64{4, 17, 18}})
	require.NoError(t, err)
	require.Equal(t, model.StatusDiagnosed, res.Outcome.Status())
	require.True(t, res.SavedToHistory)

	rec, err := g.GetDiagnosis(ctx, res.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, "P03", rec.DiseaseCode)
	assert.Equal(t, user, rec.UserID)
	require.NotNil(t, rec.Solution)

	dup, err := expert.Diagnose(ctx, core.DiagnoseRequest{UserID: user, SymptomIDs: []int64{18, 17, 4}})
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.Equal(t, res.HistoryID, dup.HistoryID)

	list, total, err := g.ListDiagnoses(ctx, user, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)

	deleted, err := g.DeleteBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, 1)
}
