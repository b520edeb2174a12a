// Package ratelimit provides token bucket limiters shared across goroutines.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket allows Capacity calls in a burst and refills at a steady rate.
// Wait reserves a token up front, so concurrent waiters are served in the
// order they arrived.
type TokenBucket struct {
	capacity   int
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
	now        func() time.Time
}

// NewTokenBucket creates a full bucket allowing limit calls per window.
func NewTokenBucket(limit int, window time.Duration, burst int) *TokenBucket {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if burst <= 0 {
		burst = limit
	}
	return newTokenBucket(burst, float64(limit)/window.Seconds(), time.Now)
}

func newTokenBucket(capacity int, refillRate float64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: now(),
		now:        now,
	}
}

// refill must be called with mu held.
func (tb *TokenBucket) refill() time.Time {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed > 0 {
		tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed.Seconds()*tb.refillRate)
		tb.lastRefill = now
	}
	return now
}

// Allow consumes a token if one is available right now.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// reserve takes a token, possibly going into debt, and returns how long the
// caller has to wait before using it.
func (tb *TokenBucket) reserve() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	tb.tokens -= 1.0
	if tb.tokens >= 0 {
		return 0
	}
	return time.Duration(-tb.tokens / tb.refillRate * float64(time.Second))
}

func (tb *TokenBucket) cancelReservation() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	tb.tokens = min(float64(tb.capacity), tb.tokens+1.0)
}

// Wait blocks until a token is available or ctx is done. A cancelled wait
// gives its token back.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	delay := tb.reserve()
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		tb.cancelReservation()
		return ctx.Err()
	}
}

// Status returns the bucket state without consuming a token.
func (tb *TokenBucket) Status() Info {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.refill()
	info := Info{
		Allowed:   tb.tokens >= 1.0,
		Limit:     tb.capacity,
		Remaining: max(0, int(tb.tokens)),
		ResetTime: now,
	}

	if tb.tokens < float64(tb.capacity) {
		missing := float64(tb.capacity) - tb.tokens
		info.ResetTime = now.Add(time.Duration(missing / tb.refillRate * float64(time.Second)))
	}
	if tb.tokens < 1.0 {
		info.RetryAfter = time.Duration((1.0 - tb.tokens) / tb.refillRate * float64(time.Second))
	}
	return info
}

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}
