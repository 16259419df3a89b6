package kb

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/agenthands/padi/internal/core/model"
)

const snapshotKey = "kb"

// Cache serves snapshots of an underlying knowledge base from memory until
// they expire or Invalidate is called. A non-positive TTL disables caching.
type Cache struct {
	base KnowledgeBase
	ttl  time.Duration

	mu  sync.Mutex
	lru *expirable.LRU[string, Snapshot]
}

func NewCache(base KnowledgeBase, ttl time.Duration) *Cache {
	c := &Cache{base: base, ttl: ttl}
	if ttl > 0 {
		c.lru = expirable.NewLRU[string, Snapshot](1, nil, ttl)
	}
	return c
}

// Snapshot returns the cached snapshot, loading it on a miss. Concurrent
// misses trigger a single load.
func (c *Cache) Snapshot(ctx context.Context) (Snapshot, error) {
	if c.lru == nil {
		return Load(ctx, c.base)
	}
	if snap, ok := c.lru.Get(snapshotKey); ok {
		return snap, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if snap, ok := c.lru.Get(snapshotKey); ok {
		return snap, nil
	}
	snap, err := Load(ctx, c.base)
	if err != nil {
		return Snapshot{}, err
	}
	c.lru.Add(snapshotKey, snap)
	return snap, nil
}

// Invalidate drops the cached snapshot.
func (c *Cache) Invalidate() {
	if c.lru != nil {
		c.lru.Purge()
	}
}

func (c *Cache) ActiveSymptoms(ctx context.Context) ([]model.Symptom, error) {
	snap, err := c.Snapshot(ctx)
	return snap.Symptoms, err
}

func (c *Cache) ActiveDiseases(ctx context.Context) ([]model.Disease, error) {
	snap, err := c.Snapshot(ctx)
	return snap.Diseases, err
}

func (c *Cache) ActiveRules(ctx context.Context) ([]model.Rule, error) {
	snap, err := c.Snapshot(ctx)
	return snap.Rules, err
}

// Ping forwards to the underlying backend when it supports it.
func (c *Cache) Ping(ctx context.Context) error {
	if p, ok := c.base.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
