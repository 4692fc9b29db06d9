package msgworker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_TryDispatchIsNonBlocking(t *testing.T) {
	pool := NewPool(2, 10)
	pool.Start(context.Background())
	defer pool.Stop()

	start := time.Now()
	ok := pool.TryDispatch(Job{
		Key:  "conv-1",
		Name: "slow",
		Handler: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	})
	assert.True(t, ok)
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestPool_SameKeyRunsInOrder(t *testing.T) {
	pool := NewPool(4, 100)
	pool.Start(context.Background())

	var mu sync.Mutex
	var results []int
	for i := 1; i <= 5; i++ {
		val := i
		require.True(t, pool.TryDispatch(Job{
			Key: "conv-42",
			Handler: func(ctx context.Context) error {
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				results = append(results, val)
				mu.Unlock()
				return nil
			},
		}))
	}

	// Stop drains queued jobs before returning.
	pool.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, results)
}

func TestPool_DropsWhenQueueFull(t *testing.T) {
	pool := NewPool(1, 1)
	pool.Start(context.Background())
	defer pool.Stop()

	release := make(chan struct{})
	blocker := Job{Key: "k", Handler: func(ctx context.Context) error { <-release; return nil }}

	require.True(t, pool.TryDispatch(blocker))
	// Give the worker time to pick up the first job so the queue is empty again.
	time.Sleep(20 * time.Millisecond)
	require.True(t, pool.TryDispatch(blocker))
	assert.False(t, pool.TryDispatch(blocker))
	close(release)

	assert.EqualValues(t, 1, pool.Stats().TotalDropped)
}

func TestPool_CountsErrorsAndPanics(t *testing.T) {
	pool := NewPool(2, 10)
	pool.Start(context.Background())

	var ran int32
	pool.TryDispatch(Job{Key: "a", Handler: func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return errors.New("boom")
	}})
	pool.TryDispatch(Job{Key: "b", Handler: func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		panic("kaboom")
	}})
	pool.Stop()

	stats := pool.Stats()
	assert.EqualValues(t, 2, atomic.LoadInt32(&ran))
	assert.EqualValues(t, 2, stats.TotalErrors)
	assert.EqualValues(t, 2, stats.TotalProcessed)
}

func TestPool_RejectsBeforeStartAndAfterStop(t *testing.T) {
	pool := NewPool(1, 1)
	assert.False(t, pool.TryDispatch(Job{Key: "x", Handler: func(ctx context.Context) error { return nil }}))

	pool.Start(context.Background())
	pool.Stop()
	assert.False(t, pool.TryDispatch(Job{Key: "x", Handler: func(ctx context.Context) error { return nil }}))
}

func TestPool_Healthy(t *testing.T) {
	pool := NewPool(1, 1)
	assert.ErrorIs(t, pool.Healthy(), ErrPoolNotRunning)

	pool.Start(context.Background())
	require.NoError(t, pool.Healthy())

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, pool.TryDispatch(Job{Key: "a", Handler: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started
	require.True(t, pool.TryDispatch(Job{Key: "a", Handler: func(ctx context.Context) error { return nil }}))
	assert.ErrorIs(t, pool.Healthy(), ErrPoolSaturated)

	close(release)
	pool.Stop()
	assert.ErrorIs(t, pool.Healthy(), ErrPoolNotRunning)
}
