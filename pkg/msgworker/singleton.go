package msgworker

import (
	"context"
	"sync"

	coreconfig "github.com/eduzayn/educhat/core/config"
)

var (
	globalPool     *Pool
	globalPoolOnce sync.Once
	globalCancel   context.CancelFunc
)

// GetGlobalPool returns the process-wide pool, starting it on first use.
func GetGlobalPool() *Pool {
	globalPoolOnce.Do(func() {
		var ctx context.Context
		ctx, globalCancel = context.WithCancel(context.Background())

		size, queue := 8, 256
		if coreconfig.Global != nil {
			if coreconfig.Global.Worker.Size > 0 {
				size = coreconfig.Global.Worker.Size
			}
			if coreconfig.Global.Worker.QueueSize > 0 {
				queue = coreconfig.Global.Worker.QueueSize
			}
		}

		globalPool = NewPool(size, queue)
		globalPool.Start(ctx)
	})
	return globalPool
}

// StopGlobalPool drains and stops the process-wide pool.
func StopGlobalPool() {
	if globalPool != nil {
		globalPool.Stop()
	}
	if globalCancel != nil {
		globalCancel()
	}
}
