package repository

import (
	"context"
	"time"

	"github.com/eduzayn/educhat/infrastructure/valkey"
)

type ValkeyDeduper struct {
	client *valkey.Client
}

func NewValkeyDeduper(client *valkey.Client) *ValkeyDeduper {
	return &ValkeyDeduper{client: client}
}

func (d *ValkeyDeduper) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.client.Claim(ctx, d.client.Key("webhook", "msg", key), ttl)
}

func (d *ValkeyDeduper) Release(ctx context.Context, key string) error {
	return d.client.Del(ctx, d.client.Key("webhook", "msg", key))
}
