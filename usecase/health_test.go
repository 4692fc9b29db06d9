package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/eduzayn/educhat/domains/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_CheckAllKeepsLastSuccess(t *testing.T) {
	failing := false
	svc := NewHealthService(
		health.Probe{EntityType: health.EntityDatabase, EntityID: "primary", Check: func(ctx context.Context) error {
			if failing {
				return errors.New("connection refused")
			}
			return nil
		}},
		health.Probe{EntityType: health.EntityValkey, EntityID: "cache", Check: func(ctx context.Context) error { return nil }},
	)
	ctx := context.Background()

	before, err := svc.GetStatus(ctx)
	require.NoError(t, err)
	require.Len(t, before, 2)
	assert.Equal(t, health.StatusUnknown, before[0].Status)

	records, err := svc.CheckAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, health.StatusOk, records[0].Status)
	require.NotNil(t, records[0].LastSuccess)

	failing = true
	records, err = svc.CheckAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, health.StatusError, records[0].Status)
	assert.Equal(t, "connection refused", records[0].LastMessage)
	assert.NotNil(t, records[0].LastSuccess)

	status, err := svc.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, health.StatusError, status[0].Status)
	assert.Equal(t, health.StatusOk, status[1].Status)
}
