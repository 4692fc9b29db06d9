package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryDeduper is the single-process Deduper used when Valkey is disabled.
type MemoryDeduper struct {
	mu      sync.Mutex
	claims  map[string]time.Time
	now     func() time.Time
	lastGC  time.Time
	gcEvery time.Duration
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{
		claims:  make(map[string]time.Time),
		now:     time.Now,
		gcEvery: time.Minute,
	}
}

func (d *MemoryDeduper) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.Sub(d.lastGC) > d.gcEvery {
		for k, exp := range d.claims {
			if now.After(exp) {
				delete(d.claims, k)
			}
		}
		d.lastGC = now
	}

	if exp, ok := d.claims[key]; ok && now.Before(exp) {
		return false, nil
	}
	d.claims[key] = now.Add(ttl)
	return true, nil
}

func (d *MemoryDeduper) Release(ctx context.Context, key string) error {
	d.mu.Lock()
	delete(d.claims, key)
	d.mu.Unlock()
	return nil
}
