package repository

import (
	"context"
	"sync"
	"time"

	"github.com/eduzayn/educhat/channels/domain"
)

type memoryStatusEntry struct {
	status    domain.CachedStatus
	expiresAt time.Time
}

// MemoryStatusCache is the single-process StatusCache used when Valkey is disabled.
type MemoryStatusCache struct {
	mu      sync.RWMutex
	entries map[uint]memoryStatusEntry
	now     func() time.Time
}

func NewMemoryStatusCache() *MemoryStatusCache {
	return &MemoryStatusCache{entries: make(map[uint]memoryStatusEntry), now: time.Now}
}

func (s *MemoryStatusCache) Get(ctx context.Context, channelID uint) (*domain.CachedStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[channelID]
	if !ok || s.now().After(e.expiresAt) {
		return nil, nil
	}
	st := e.status
	return &st, nil
}

func (s *MemoryStatusCache) Set(ctx context.Context, status domain.CachedStatus, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[status.ChannelID] = memoryStatusEntry{status: status, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStatusCache) Invalidate(ctx context.Context, channelID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, channelID)
	return nil
}
