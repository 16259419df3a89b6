// Package retention periodically deletes expired diagnosis history.
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/padi/internal/logging"
	"github.com/agenthands/padi/internal/store"
)

type Cleaner struct {
	store     store.HistoryStore
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewCleaner(s store.HistoryStore, retention, interval time.Duration, logger *zap.Logger) *Cleaner {
	return &Cleaner{
		store:     s,
		retention: retention,
		interval:  interval,
		logger:    logging.OrNop(logger),
		now:       time.Now,
	}
}

// RunOnce deletes every record created before now minus the retention
// period. A zero retention keeps history forever.
func (c *Cleaner) RunOnce(ctx context.Context) (int, error) {
	if c.retention <= 0 {
		return 0, nil
	}
	cutoff := c.now().Add(-c.retention)
	n, err := c.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.logger.Info("expired diagnosis history deleted", zap.Int("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Run sweeps once immediately and then on every interval tick until ctx is
// done. Sweep failures are logged and do not stop the loop.
func (c *Cleaner) Run(ctx context.Context) error {
	if c.retention <= 0 || c.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if _, err := c.RunOnce(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("history retention sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
