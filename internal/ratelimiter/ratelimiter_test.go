package ratelimiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireConsumesAvailableTokenImmediately(t *testing.T) {
	rl := New(10, 2)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, rl.Acquire(ctx))
	require.NoError(t, rl.Acquire(ctx))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestAcquireBlocksUntilRefill(t *testing.T) {
	rl := New(100, 1) // 1 token/10ms
	ctx := context.Background()

	require.NoError(t, rl.Acquire(ctx)) // drains the single token

	start := time.Now()
	require.NoError(t, rl.Acquire(ctx))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	rl := New(1, 1)
	ctx := context.Background()
	require.NoError(t, rl.Acquire(ctx)) // drain the bucket

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rl.Acquire(cctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquireServesAllConcurrentWaiters(t *testing.T) {
	rl := New(1000, 1)
	ctx := context.Background()
	require.NoError(t, rl.Acquire(ctx))

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = rl.Acquire(ctx)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestAvailableNeverExceedsCapacity(t *testing.T) {
	rl := New(1000, 5)
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, rl.Available(), 5.0)
}
