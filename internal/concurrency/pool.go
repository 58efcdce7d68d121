// Package concurrency wraps alitto/pond for the bounded worker pools the
// Orchestrator uses to fan work out across pairs within one tick (market
// sells on a paused pair, reconciliation on startup) while always joining
// before the next control-flow step.
package concurrency

import (
	"fmt"
	"sync"
	"time"

	"gridbot/internal/core"

	"github.com/alitto/pond"
)

// PoolConfig configures one named worker pool.
type PoolConfig struct {
	Name        string
	MaxWorkers  int
	MaxCapacity int
	IdleTimeout time.Duration
	NonBlocking bool
}

// WorkerPool wraps alitto/pond with the logging and sane-default behavior
// the rest of the codebase expects from a pool.
type WorkerPool struct {
	pool   *pond.WorkerPool
	config PoolConfig
	logger core.ILogger
	mu     sync.RWMutex
}

// NewWorkerPool builds a pool, filling in conservative defaults for any
// unset sizing field.
func NewWorkerPool(cfg PoolConfig, logger core.ILogger) *WorkerPool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 8
	}
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = 64
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	pool := pond.New(
		cfg.MaxWorkers,
		cfg.MaxCapacity,
		pond.MinWorkers(1),
		pond.IdleTimeout(cfg.IdleTimeout),
		pond.Strategy(pond.Balanced()),
		pond.PanicHandler(func(p interface{}) {
			logger.Error("worker pool panic recovered", "pool", cfg.Name, "panic", p)
		}),
	)

	return &WorkerPool{
		pool:   pool,
		config: cfg,
		logger: logger.WithField("component", "worker_pool").WithField("pool", cfg.Name),
	}
}

// Submit enqueues a task; in NonBlocking mode a full pool returns an error
// instead of blocking the caller.
func (wp *WorkerPool) Submit(task func()) error {
	if wp.config.NonBlocking {
		if !wp.pool.TrySubmit(task) {
			return fmt.Errorf("concurrency: pool %q is full (capacity %d)", wp.config.Name, wp.config.MaxCapacity)
		}
		return nil
	}
	wp.pool.Submit(task)
	return nil
}

// SubmitEach runs fn(i) for i in [0, n) across the pool and blocks until
// every invocation completes — the fan-out/join shape the tick loop needs.
func (wp *WorkerPool) SubmitEach(n int, fn func(i int)) {
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		wp.pool.Submit(func() {
			defer wg.Done()
			fn(i)
		})
	}
	wg.Wait()
}

// Stop drains and stops the pool, waiting for in-flight tasks.
func (wp *WorkerPool) Stop() {
	wp.pool.StopAndWait()
}

// Stats reports pond's running counters, exposed for the dashboard.
func (wp *WorkerPool) Stats() map[string]int {
	return map[string]int{
		"running_workers":  wp.pool.RunningWorkers(),
		"idle_workers":     wp.pool.IdleWorkers(),
		"submitted_tasks":  int(wp.pool.SubmittedTasks()),
		"waiting_tasks":    int(wp.pool.WaitingTasks()),
		"successful_tasks": int(wp.pool.SuccessfulTasks()),
		"failed_tasks":     int(wp.pool.FailedTasks()),
	}
}
