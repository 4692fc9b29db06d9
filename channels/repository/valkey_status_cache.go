package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/eduzayn/educhat/channels/domain"
	"github.com/eduzayn/educhat/infrastructure/valkey"
)

// ValkeyStatusCache shares status probes between instances. Expiry is enforced by Valkey.
type ValkeyStatusCache struct {
	client *valkey.Client
}

func NewValkeyStatusCache(client *valkey.Client) *ValkeyStatusCache {
	return &ValkeyStatusCache{client: client}
}

func (s *ValkeyStatusCache) key(channelID uint) string {
	return s.client.Key("channel_status", strconv.FormatUint(uint64(channelID), 10))
}

func (s *ValkeyStatusCache) Get(ctx context.Context, channelID uint) (*domain.CachedStatus, error) {
	data, err := s.client.Get(ctx, s.key(channelID))
	if err != nil {
		return nil, fmt.Errorf("failed to get channel status from valkey: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var st domain.CachedStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channel status: %w", err)
	}
	return &st, nil
}

func (s *ValkeyStatusCache) Set(ctx context.Context, status domain.CachedStatus, ttl time.Duration) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.client.SetEx(ctx, s.key(status.ChannelID), data, ttl)
}

func (s *ValkeyStatusCache) Invalidate(ctx context.Context, channelID uint) error {
	return s.client.Del(ctx, s.key(channelID))
}
