// Package ratelimiter implements a token bucket: a configured rate
// (tokens/sec) and capacity, refilled linearly with wall time, with
// callers served in arrival order under mutual exclusion.
//
// This one is hand-rolled rather than delegated to golang.org/x/time/rate:
// FIFO ordering under the bucket's own mutex is an explicit guarantee
// of this package, not an implementation detail
// golang.org/x/time/rate promises to preserve. golang.org/x/time/rate is
// still wired elsewhere (the dashboard's per-IP connection throttle) where
// that guarantee isn't required.
package ratelimiter

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// RateLimiter is a single choke point every outbound venue call acquires
// a token from before issuing.
type RateLimiter struct {
	mu         sync.Mutex
	rate       float64 // tokens/sec
	capacity   float64
	tokens     float64
	lastRefill time.Time
	waiters    *list.List // of chan struct{}
	timer      *time.Timer
}

// New builds a limiter with the given refill rate (tokens/sec) and
// capacity, starting full.
func New(rate, capacity float64) *RateLimiter {
	return &RateLimiter{
		rate:       rate,
		capacity:   capacity,
		tokens:     capacity,
		lastRefill: time.Now(),
		waiters:    list.New(),
	}
}

// Acquire blocks the caller until one token is available, or ctx is
// cancelled. Waiters are granted tokens in arrival order.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	r.mu.Lock()
	r.refillLocked()

	if r.tokens >= 1 && r.waiters.Len() == 0 {
		r.tokens--
		r.mu.Unlock()
		return nil
	}

	ch := make(chan struct{})
	elem := r.waiters.PushBack(ch)
	r.armTimerLocked()
	r.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		r.mu.Lock()
		for e := r.waiters.Front(); e != nil; e = e.Next() {
			if e == elem {
				r.waiters.Remove(e)
				break
			}
		}
		r.mu.Unlock()
		return ctx.Err()
	}
}

// refillLocked adds tokens for elapsed wall time and wakes as many FIFO
// waiters as the refreshed balance allows. Caller must hold r.mu.
func (r *RateLimiter) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	if elapsed > 0 {
		r.tokens += elapsed * r.rate
		if r.tokens > r.capacity {
			r.tokens = r.capacity
		}
		r.lastRefill = now
	}

	for r.tokens >= 1 && r.waiters.Len() > 0 {
		front := r.waiters.Front()
		r.waiters.Remove(front)
		r.tokens--
		close(front.Value.(chan struct{}))
	}
}

// armTimerLocked schedules a refill check for whenever the next token
// will be available, so a sole waiter is woken even if no other caller
// invokes Acquire in the meantime. Caller must hold r.mu.
func (r *RateLimiter) armTimerLocked() {
	if r.waiters.Len() == 0 || r.rate <= 0 {
		return
	}
	deficit := 1 - r.tokens
	if deficit < 0 {
		deficit = 0
	}
	wait := time.Duration(deficit/r.rate*1000) * time.Millisecond
	if wait < time.Millisecond {
		wait = time.Millisecond
	}

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(wait, func() {
		r.mu.Lock()
		r.refillLocked()
		stillWaiting := r.waiters.Len() > 0
		r.mu.Unlock()
		if stillWaiting {
			r.mu.Lock()
			r.armTimerLocked()
			r.mu.Unlock()
		}
	})
}

// Available reports the current token balance without consuming one;
// intended for dashboard/metrics, not for gating decisions.
func (r *RateLimiter) Available() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refillLocked()
	return r.tokens
}
