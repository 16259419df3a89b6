// Package sqlite stores the knowledge base and diagnosis history in a single
// SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/agenthands/padi/internal/core/model"
	"github.com/agenthands/padi/internal/kb"
	"github.com/agenthands/padi/internal/store"
)

type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

var _ store.Backend = (*Store)(nil)

// Open opens path with WAL and foreign keys enabled and creates the schema
// if needed. ":memory:" is accepted for tests.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// dsn applies per-connection pragmas through the driver so every pooled
// connection enforces foreign keys.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS diseases (
	id INTEGER PRIMARY KEY,
	code TEXT UNIQUE NOT NULL,
	name TEXT NOT NULL,
	description TEXT,
	severity TEXT,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS symptoms (
	id INTEGER PRIMARY KEY,
	code TEXT UNIQUE NOT NULL,
	name TEXT NOT NULL,
	category TEXT,
	description TEXT,
	mb REAL NOT NULL DEFAULT 0,
	md REAL NOT NULL DEFAULT 0,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS rules (
	id INTEGER PRIMARY KEY,
	code TEXT UNIQUE NOT NULL,
	disease_id INTEGER NOT NULL,
	confidence_level REAL NOT NULL,
	min_symptom_match INTEGER NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	FOREIGN KEY(disease_id) REFERENCES diseases(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS rule_symptoms (
	rule_id INTEGER NOT NULL,
	symptom_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY(rule_id, symptom_id),
	FOREIGN KEY(rule_id) REFERENCES rules(id) ON DELETE CASCADE,
	FOREIGN KEY(symptom_id) REFERENCES symptoms(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS diagnosis_history (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	disease_id INTEGER NOT NULL,
	disease_code TEXT NOT NULL,
	disease_name TEXT NOT NULL,
	symptom_ids TEXT NOT NULL,
	certainty TEXT,
	final_cf REAL NOT NULL,
	certainty_level TEXT NOT NULL,
	method TEXT NOT NULL,
	results TEXT NOT NULL,
	solution TEXT,
	ip_address TEXT,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_history_user_created ON diagnosis_history(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_history_created ON diagnosis_history(created_at);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (s *Store) ActiveSymptoms(ctx context.Context) ([]model.Symptom, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, code, name, COALESCE(category, ''), COALESCE(description, ''), mb, md
FROM symptoms WHERE active = 1 ORDER BY code, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Symptom
	for rows.Next() {
		sym := model.Symptom{Active: true}
		var category string
		if err := rows.Scan(&sym.ID, &sym.Code, &sym.Name, &category, &sym.Description, &sym.MB, &sym.MD); err != nil {
			return nil, err
		}
		sym.Category = model.Category(category)
		out = append(out, sym)
	}
	return out, rows.Err()
}

func (s *Store) ActiveDiseases(ctx context.Context) ([]model.Disease, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, code, name, COALESCE(description, ''), COALESCE(severity, '')
FROM diseases WHERE active = 1 ORDER BY code, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Disease
	for rows.Next() {
		d := model.Disease{Active: true}
		if err := rows.Scan(&d.ID, &d.Code, &d.Name, &d.Description, &d.Severity); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) ActiveRules(ctx context.Context) ([]model.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, code, disease_id, confidence_level, min_symptom_match
FROM rules WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}

	var out []model.Rule
	index := make(map[int64]int)
	for rows.Next() {
		r := model.Rule{Active: true}
		if err := rows.Scan(&r.ID, &r.Code, &r.DiseaseID, &r.ConfidenceLevel, &r.MinSymptomMatch); err != nil {
			rows.Close()
			return nil, err
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links, err := s.db.QueryContext(ctx, `
SELECT rs.rule_id, rs.symptom_id
FROM rule_symptoms rs JOIN rules r ON r.id = rs.rule_id
WHERE r.active = 1
ORDER BY rs.rule_id, rs.position`)
	if err != nil {
		return nil, err
	}
	defer links.Close()
	for links.Next() {
		var ruleID, symptomID int64
		if err := links.Scan(&ruleID, &symptomID); err != nil {
			return nil, err
		}
		if i, ok := index[ruleID]; ok {
			out[i].SymptomIDs = append(out[i].SymptomIDs, symptomID)
		}
	}
	return out, links.Err()
}

// Seed replaces the whole knowledge base in one transaction. History is kept.
func (s *Store) Seed(ctx context.Context, seed kb.Seed) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"rule_symptoms", "rules", "symptoms", "diseases"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, d := range seed.Diseases {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO diseases (id, code, name, description, severity, active) VALUES (?, ?, ?, ?, ?, ?)`,
			d.ID, d.Code, d.Name, d.Description, d.Severity, d.Active); err != nil {
			return fmt.Errorf("insert disease %s: %w", d.Code, err)
		}
	}
	for _, sym := range seed.Symptoms {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO symptoms (id, code, name, category, description, mb, md, active) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sym.ID, sym.Code, sym.Name, string(sym.Category), sym.Description, sym.MB, sym.MD, sym.Active); err != nil {
			return fmt.Errorf("insert symptom %s: %w", sym.Code, err)
		}
	}
	for _, r := range seed.Rules {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rules (id, code, disease_id, confidence_level, min_symptom_match, active) VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, r.Code, r.DiseaseID, r.ConfidenceLevel, r.MinSymptomMatch, r.Active); err != nil {
			return fmt.Errorf("insert rule %s: %w", r.Code, err)
		}
		for pos, sid := range r.SymptomIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO rule_symptoms (rule_id, symptom_id, position) VALUES (?, ?, ?)`,
				r.ID, sid, pos); err != nil {
				return fmt.Errorf("link rule %s: %w", r.Code, err)
			}
		}
	}
	return tx.Commit()
}

const historyColumns = `id, user_id, disease_id, disease_code, disease_name, symptom_ids, certainty,
final_cf, certainty_level, method, results, solution, ip_address, created_at, expires_at`

func (s *Store) SaveDiagnosis(ctx context.Context, rec model.HistoryRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = store.NewID(rec.CreatedAt)
	}

	symptomIDs, err := json.Marshal(rec.SymptomIDs)
	if err != nil {
		return "", err
	}
	certainty, err := json.Marshal(rec.Certainty)
	if err != nil {
		return "", err
	}
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return "", err
	}
	var solution []byte
	if rec.Solution != nil {
		if solution, err = json.Marshal(rec.Solution); err != nil {
			return "", err
		}
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO diagnosis_history (`+historyColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.DiseaseID, rec.DiseaseCode, rec.DiseaseName,
		string(symptomIDs), string(certainty), rec.FinalCF, rec.CertaintyLevel, string(rec.Method),
		string(results), nullString(solution), rec.ClientIP,
		millis(rec.CreatedAt), millis(rec.ExpiresAt))
	if err != nil {
		s.logger.Error("save diagnosis failed", zap.String("id", rec.ID), zap.Error(err))
		return "", err
	}
	return rec.ID, nil
}

func (s *Store) GetDiagnosis(ctx context.Context, id string) (model.HistoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM diagnosis_history WHERE id = ?`, id)
	rec, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.HistoryRecord{}, fmt.Errorf("diagnosis %s: %w", id, kb.ErrNotFound)
	}
	return rec, err
}

func (s *Store) ListDiagnoses(ctx context.Context, userID string, page, perPage int) ([]model.HistoryRecord, int, error) {
	_, perPage, offset := store.Page(page, perPage)
	now := millis(s.now())

	var total int
	if err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM diagnosis_history
WHERE user_id = ? AND (expires_at = 0 OR expires_at > ?)`, userID, now).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+historyColumns+` FROM diagnosis_history
WHERE user_id = ? AND (expires_at = 0 OR expires_at > ?)
ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, userID, now, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out, err := scanHistoryRows(rows)
	return out, total, err
}

func (s *Store) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM diagnosis_history WHERE user_id = ? AND created_at >= ?`,
		userID, millis(since)).Scan(&n)
	return n, err
}

func (s *Store) RecentByUser(ctx context.Context, userID string, since time.Time) ([]model.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+historyColumns+` FROM diagnosis_history
WHERE user_id = ? AND created_at >= ? ORDER BY created_at DESC, id DESC`, userID, millis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM diagnosis_history WHERE created_at < ?`, millis(cutoff))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHistory(row scanner) (model.HistoryRecord, error) {
	var (
		rec                            model.HistoryRecord
		method                         string
		symptomIDs, certainty, results string
		solution, ip                   sql.NullString
		createdAt, expiresAt           int64
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.DiseaseID, &rec.DiseaseCode, &rec.DiseaseName,
		&symptomIDs, &certainty, &rec.FinalCF, &rec.CertaintyLevel, &method,
		&results, &solution, &ip, &createdAt, &expiresAt)
	if err != nil {
		return rec, err
	}

	rec.Method = model.Method(method)
	rec.ClientIP = ip.String
	rec.CreatedAt = fromMillis(createdAt)
	if expiresAt > 0 {
		rec.ExpiresAt = fromMillis(expiresAt)
	}
	if err := json.Unmarshal([]byte(symptomIDs), &rec.SymptomIDs); err != nil {
		return rec, fmt.Errorf("decode symptom ids: %w", err)
	}
	if certainty != "" && certainty != "null" {
		if err := json.Unmarshal([]byte(certainty), &rec.Certainty); err != nil {
			return rec, fmt.Errorf("decode certainty: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(results), &rec.Results); err != nil {
		return rec, fmt.Errorf("decode results: %w", err)
	}
	if solution.Valid && solution.String != "" {
		rec.Solution = &model.Solution{}
		if err := json.Unmarshal([]byte(solution.String), rec.Solution); err != nil {
			return rec, fmt.Errorf("decode solution: %w", err)
		}
	}
	return rec, nil
}

func scanHistoryRows(rows *sql.Rows) ([]model.HistoryRecord, error) {
	var out []model.HistoryRecord
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
