package scoring

import (
	"context"
	"sync"
)

// MaxSpendCache stores the population maximum spend keyed by ledger
// fingerprint. A miss is (0, false, nil).
type MaxSpendCache interface {
	Get(ctx context.Context, fingerprint string) (float64, bool, error)
	Set(ctx context.Context, fingerprint string, v float64) error
}

// MemoryMaxSpendCache is a process-local MaxSpendCache.
type MemoryMaxSpendCache struct {
	mu sync.RWMutex
	m  map[string]float64
}

func NewMemoryMaxSpendCache() *MemoryMaxSpendCache {
	return &MemoryMaxSpendCache{m: make(map[string]float64)}
}

func (c *MemoryMaxSpendCache) Get(_ context.Context, fingerprint string) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[fingerprint]
	return v, ok, nil
}

func (c *MemoryMaxSpendCache) Set(_ context.Context, fingerprint string, v float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[fingerprint] = v
	return nil
}
