package domain

import (
	"context"
	"time"
)

// Deduper claims gateway message ids so one delivery is processed once.
type Deduper interface {
	// Claim returns true only for the first caller within ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
