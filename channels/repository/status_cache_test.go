package repository

import (
	"context"
	"testing"
	"time"

	"github.com/eduzayn/educhat/channels/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStatusCache_Expiry(t *testing.T) {
	c := NewMemoryStatusCache()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(context.Background(), domain.CachedStatus{ChannelID: 1, Connected: true}, 30*time.Second))

	got, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Connected)

	now = now.Add(31 * time.Second)
	got, err = c.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStatusCache_Invalidate(t *testing.T) {
	c := NewMemoryStatusCache()
	require.NoError(t, c.Set(context.Background(), domain.CachedStatus{ChannelID: 2}, time.Minute))
	require.NoError(t, c.Invalidate(context.Background(), 2))

	got, err := c.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, got)
}
