// Package store defines diagnosis history persistence shared by every backend.
package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agenthands/padi/internal/core/model"
	"github.com/agenthands/padi/internal/kb"
)

// HistoryStore is append-only from the diagnosis path. Listing never returns
// expired records.
type HistoryStore interface {
	SaveDiagnosis(ctx context.Context, rec model.HistoryRecord) (string, error)
	GetDiagnosis(ctx context.Context, id string) (model.HistoryRecord, error)
	ListDiagnoses(ctx context.Context, userID string, page, perPage int) ([]model.HistoryRecord, int, error)
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	RecentByUser(ctx context.Context, userID string, since time.Time) ([]model.HistoryRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Backend is a complete storage backend: knowledge base, history and seeding.
type Backend interface {
	kb.KnowledgeBase
	kb.Seeder
	kb.Pinger
	HistoryStore
	Close(ctx context.Context) error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a time-sortable history record ID.
func NewID(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Page clamps pagination arguments and returns the row offset.
func Page(page, perPage int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage, (page - 1) * perPage
}

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)
