package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/agenthands/padi/internal/core/model"
	"github.com/agenthands/padi/internal/kb"
	"github.com/agenthands/padi/internal/store"
)

// GraphStore keeps the knowledge base as a graph of Rule nodes that
// CONCLUDE a Disease and REQUIRE Symptoms. Diagnosis history lives in
// Diagnosis nodes with JSON-encoded nested fields.
type GraphStore struct {
	driver GraphDriver
	logger *zap.Logger
	now    func() time.Time
}

var _ store.Backend = (*GraphStore)(nil)

func NewGraphStore(driver GraphDriver, logger *zap.Logger) *GraphStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphStore{driver: driver, logger: logger, now: time.Now}
}

func (g *GraphStore) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

func (g *GraphStore) Ping(ctx context.Context) error {
	_, err := g.driver.ExecuteQuery(ctx, PingQuery, nil)
	return err
}

func (g *GraphStore) ActiveSymptoms(ctx context.Context) ([]model.Symptom, error) {
	res, err := g.driver.ExecuteQuery(ctx, ActiveSymptomsQuery, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.Symptom, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, model.Symptom{
			ID:          getInt(rec, "id"),
			Code:        getString(rec, "code"),
			Name:        getString(rec, "name"),
			Category:    model.Category(getString(rec, "category")),
			Description: getString(rec, "description"),
			MB:          getFloat(rec, "mb"),
			MD:          getFloat(rec, "md"),
			Active:      true,
		})
	}
	return out, nil
}

func (g *GraphStore) ActiveDiseases(ctx context.Context) ([]model.Disease, error) {
	res, err := g.driver.ExecuteQuery(ctx, ActiveDiseasesQuery, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.Disease, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, model.Disease{
			ID:          getInt(rec, "id"),
			Code:        getString(rec, "code"),
			Name:        getString(rec, "name"),
			Description: getString(rec, "description"),
			Severity:    getString(rec, "severity"),
			Active:      true,
		})
	}
	return out, nil
}

func (g *GraphStore) ActiveRules(ctx context.Context) ([]model.Rule, error) {
	res, err := g.driver.ExecuteQuery(ctx, ActiveRulesQuery, nil)
	if err != nil {
		return nil, err
	}
	out := make([]model.Rule, 0, len(res.Records))
	for _, rec := range res.Records {
		r := model.Rule{
			ID:              getInt(rec, "id"),
			Code:            getString(rec, "code"),
			DiseaseID:       getInt(rec, "disease_id"),
			ConfidenceLevel: getFloat(rec, "confidence_level"),
			MinSymptomMatch: int(getInt(rec, "min_symptom_match")),
			Active:          true,
		}
		if ids, ok := get(rec, "symptom_ids").([]any); ok {
			for _, id := range ids {
				r.SymptomIDs = append(r.SymptomIDs, toInt(id))
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// Seed replaces the knowledge base. Memgraph runs each statement in its own
// transaction, so a failure part way leaves a partial graph; re-running the
// seed repairs it.
func (g *GraphStore) Seed(ctx context.Context, seed kb.Seed) error {
	diseases := make([]any, 0, len(seed.Diseases))
	for _, d := range seed.Diseases {
		diseases = append(diseases, map[string]any{
			"id": d.ID, "code": d.Code, "name": d.Name,
			"description": d.Description, "severity": d.Severity, "active": d.Active,
		})
	}
	symptoms := make([]any, 0, len(seed.Symptoms))
	for _, s := range seed.Symptoms {
		symptoms = append(symptoms, map[string]any{
			"id": s.ID, "code": s.Code, "name": s.Name, "category": string(s.Category),
			"description": s.Description, "mb": s.MB, "md": s.MD, "active": s.Active,
		})
	}
	rules := make([]any, 0, len(seed.Rules))
	for _, r := range seed.Rules {
		ids := make([]any, len(r.SymptomIDs))
		for i, id := range r.SymptomIDs {
			ids[i] = id
		}
		rules = append(rules, map[string]any{
			"id": r.ID, "code": r.Code, "disease_id": r.DiseaseID, "symptom_ids": ids,
			"confidence_level": r.ConfidenceLevel, "min_symptom_match": int64(r.MinSymptomMatch),
			"active": r.Active,
		})
	}

	steps := []struct {
		name   string
		query  string
		params map[string]any
	}{
		{"clear", ClearKnowledgeQuery, nil},
		{"diseases", SeedDiseasesQuery, map[string]any{"diseases": diseases}},
		{"symptoms", SeedSymptomsQuery, map[string]any{"symptoms": symptoms}},
		{"rules", SeedRulesQuery, map[string]any{"rules": rules}},
	}
	for _, step := range steps {
		if _, err := g.driver.ExecuteQuery(ctx, step.query, step.params); err != nil {
			return fmt.Errorf("seed %s: %w", step.name, err)
		}
	}
	g.logger.Info("knowledge base seeded",
		zap.Int("diseases", len(diseases)),
		zap.Int("symptoms", len(symptoms)),
		zap.Int("rules", len(rules)))
	return nil
}

func (g *GraphStore) SaveDiagnosis(ctx context.Context, rec model.HistoryRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = store.NewID(rec.CreatedAt)
	}
	params, err := historyParams(rec)
	if err != nil {
		return "", err
	}
	if _, err := g.driver.ExecuteQuery(ctx, SaveDiagnosisQuery, params); err != nil {
		g.logger.Error("save diagnosis failed", zap.String("id", rec.ID), zap.Error(err))
		return "", err
	}
	return rec.ID, nil
}

func (g *GraphStore) GetDiagnosis(ctx context.Context, id string) (model.HistoryRecord, error) {
	res, err := g.driver.ExecuteQuery(ctx, GetDiagnosisQuery, map[string]any{"id": id})
	if err != nil {
		return model.HistoryRecord{}, err
	}
	if len(res.Records) == 0 {
		return model.HistoryRecord{}, fmt.Errorf("diagnosis %s: %w", id, kb.ErrNotFound)
	}
	return decodeHistory(res.Records[0])
}

func (g *GraphStore) ListDiagnoses(ctx context.Context, userID string, page, perPage int) ([]model.HistoryRecord, int, error) {
	_, perPage, offset := store.Page(page, perPage)
	now := g.now().UnixMilli()

	res, err := g.driver.ExecuteQuery(ctx, CountDiagnosesQuery, map[string]any{"user_id": userID, "now": now})
	if err != nil {
		return nil, 0, err
	}
	total := 0
	if len(res.Records) > 0 {
		total = int(getInt(res.Records[0], "total"))
	}

	res, err = g.driver.ExecuteQuery(ctx, ListDiagnosesQuery, map[string]any{
		"user_id": userID, "now": now, "skip": int64(offset), "limit": int64(perPage),
	})
	if err != nil {
		return nil, 0, err
	}
	out, err := decodeHistories(res.Records)
	return out, total, err
}

func (g *GraphStore) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	res, err := g.driver.ExecuteQuery(ctx, CountSinceQuery, map[string]any{"user_id": userID, "since": since.UnixMilli()})
	if err != nil {
		return 0, err
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	return int(getInt(res.Records[0], "total")), nil
}

func (g *GraphStore) RecentByUser(ctx context.Context, userID string, since time.Time) ([]model.HistoryRecord, error) {
	res, err := g.driver.ExecuteQuery(ctx, RecentByUserQuery, map[string]any{"user_id": userID, "since": since.UnixMilli()})
	if err != nil {
		return nil, err
	}
	return decodeHistories(res.Records)
}

func (g *GraphStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := g.driver.ExecuteQuery(ctx, DeleteBeforeQuery, map[string]any{"cutoff": cutoff.UnixMilli()})
	if err != nil {
		return 0, err
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	return int(getInt(res.Records[0], "deleted")), nil
}

func historyParams(rec model.HistoryRecord) (map[string]any, error) {
	certainty, err := json.Marshal(rec.Certainty)
	if err != nil {
		return nil, err
	}
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return nil, err
	}
	solution := ""
	if rec.Solution != nil {
		b, err := json.Marshal(rec.Solution)
		if err != nil {
			return nil, err
		}
		solution = string(b)
	}
	ids := make([]any, len(rec.SymptomIDs))
	for i, id := range rec.SymptomIDs {
		ids[i] = id
	}
	var expires int64
	if !rec.ExpiresAt.IsZero() {
		expires = rec.ExpiresAt.UnixMilli()
	}
	return map[string]any{
		"id":              rec.ID,
		"user_id":         rec.UserID,
		"disease_id":      rec.DiseaseID,
		"disease_code":    rec.DiseaseCode,
		"disease_name":    rec.DiseaseName,
		"symptom_ids":     ids,
		"certainty":       string(certainty),
		"final_cf":        rec.FinalCF,
		"certainty_level": rec.CertaintyLevel,
		"method":          string(rec.Method),
		"results":         string(results),
		"solution":        solution,
		"ip_address":      rec.ClientIP,
		"created_at":      rec.CreatedAt.UnixMilli(),
		"expires_at":      expires,
	}, nil
}

func decodeHistories(records []*neo4j.Record) ([]model.HistoryRecord, error) {
	out := make([]model.HistoryRecord, 0, len(records))
	for _, r := range records {
		rec, err := decodeHistory(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeHistory(r *neo4j.Record) (model.HistoryRecord, error) {
	props, ok := get(r, "h").(map[string]any)
	if !ok {
		return model.HistoryRecord{}, fmt.Errorf("diagnosis record has no properties")
	}

	rec := model.HistoryRecord{
		ID:             str(props["id"]),
		UserID:         str(props["user_id"]),
		DiseaseID:      toInt(props["disease_id"]),
		DiseaseCode:    str(props["disease_code"]),
		DiseaseName:    str(props["disease_name"]),
		FinalCF:        toFloat(props["final_cf"]),
		CertaintyLevel: str(props["certainty_level"]),
		Method:         model.Method(str(props["method"])),
		ClientIP:       str(props["ip_address"]),
		CreatedAt:      time.UnixMilli(toInt(props["created_at"])).UTC(),
	}
	if exp := toInt(props["expires_at"]); exp > 0 {
		rec.ExpiresAt = time.UnixMilli(exp).UTC()
	}
	if ids, ok := props["symptom_ids"].([]any); ok {
		for _, id := range ids {
			rec.SymptomIDs = append(rec.SymptomIDs, toInt(id))
		}
	}
	if s := str(props["certainty"]); s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &rec.Certainty); err != nil {
			return rec, fmt.Errorf("decode certainty: %w", err)
		}
	}
	if s := str(props["results"]); s != "" {
		if err := json.Unmarshal([]byte(s), &rec.Results); err != nil {
			return rec, fmt.Errorf("decode results: %w", err)
		}
	}
	if s := str(props["solution"]); s != "" {
		rec.Solution = &model.Solution{}
		if err := json.Unmarshal([]byte(s), rec.Solution); err != nil {
			return rec, fmt.Errorf("decode solution: %w", err)
		}
	}
	return rec, nil
}

func get(rec *neo4j.Record, key string) any {
	v, _ := rec.Get(key)
	return v
}

func getInt(rec *neo4j.Record, key string) int64     { return toInt(get(rec, key)) }
func getFloat(rec *neo4j.Record, key string) float64 { return toFloat(get(rec, key)) }
func getString(rec *neo4j.Record, key string) string { return str(get(rec, key)) }

func toInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
