// Package ratelimit implements token-bucket admission control for outbound
// API calls.
//
// Each external API gets one named TokenBucket that refills continuously
// (rather than in window-sized bursts) so sustained traffic is smoothed out
// below the provider's hard limit. Buckets track per-bucket metrics
// (throttled and rejected requests, cumulative wait) and a Manager keys
// buckets by API name so every caller hitting the same API shares one pool.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// maxSleep caps a single wait increment. A long waiter re-checks bucket
// state at least once per second instead of sleeping its full requirement
// in one step.
const maxSleep = time.Second

// Metrics is a snapshot of one bucket's counters. Counters are mutated
// under the bucket's lock and read via TokenBucket.Metrics.
type Metrics struct {
	TotalRequests     int64         // acquire calls, counted at entry regardless of outcome
	ThrottledRequests int64         // sleep iterations taken by waiting acquirers
	RejectedRequests  int64         // non-blocking misses + deadline rejections
	TotalWaitTime     time.Duration // cumulative scheduled sleep time
}

// AvgWaitTime returns TotalWaitTime / ThrottledRequests, 0 when nothing was
// ever throttled.
func (m Metrics) AvgWaitTime() time.Duration {
	if m.ThrottledRequests == 0 {
		return 0
	}
	return m.TotalWaitTime / time.Duration(m.ThrottledRequests)
}

// TokenBucket is a thread-safe token-bucket rate limiter with continuous
// refill. Tokens never exceed capacity; refill is monotonic in elapsed
// wall-clock time. There is no fairness guarantee across waiters: each
// sleeper re-evaluates the bucket when it wakes and first-ready wins.
type TokenBucket struct {
	name     string
	rate     float64 // tokens refilled per second, > 0
	capacity float64 // maximum burst size

	mu         sync.Mutex
	tokens     float64 // current available tokens (fractional allowed)
	lastUpdate time.Time
	metrics    Metrics
}

// NewTokenBucket creates a rate limiter named for metrics and logging.
// rate is tokens added per second. capacity <= 0 defaults to round(rate)
// (minimum 1), so by default the burst size is one second's worth of
// traffic.
func NewTokenBucket(name string, rate float64, capacity int) *TokenBucket {
	if capacity <= 0 {
		capacity = int(math.Round(rate))
		if capacity < 1 {
			capacity = 1
		}
	}
	return &TokenBucket{
		name:       name,
		rate:       rate,
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		lastUpdate: time.Now(),
	}
}

// Name returns the bucket's label.
func (b *TokenBucket) Name() string { return b.name }

// Capacity returns the maximum burst size.
func (b *TokenBucket) Capacity() int { return int(b.capacity) }

// TryAcquire takes n tokens without blocking. It returns false when the
// bucket cannot satisfy the request right now — an expected outcome the
// caller handles by backing off, not an error. The only error is a request
// for more tokens than the bucket can ever hold.
func (b *TokenBucket) TryAcquire(n int) (bool, error) {
	return b.acquire(context.Background(), n, false)
}

// Acquire takes n tokens, sleeping until they become available. The lock is
// released for the duration of each sleep so other acquirers (including
// ones requesting fewer tokens) are not blocked behind a long waiter.
//
// A deadline on ctx bounds the total wait: once the remaining budget is
// less than the computed wait for the next refill milestone, Acquire
// returns (false, nil) rather than oversleeping past the deadline.
// Cancellation returns ctx.Err().
func (b *TokenBucket) Acquire(ctx context.Context, n int) (bool, error) {
	return b.acquire(ctx, n, true)
}

func (b *TokenBucket) acquire(ctx context.Context, n int, wait bool) (bool, error) {
	need := float64(n)

	b.mu.Lock()
	b.metrics.TotalRequests++

	if n < 1 {
		b.mu.Unlock()
		return false, fmt.Errorf("ratelimit %q: requested %d tokens, want >= 1", b.name, n)
	}
	if need > b.capacity {
		// Can never be satisfied; fail fast instead of retrying forever.
		b.mu.Unlock()
		return false, fmt.Errorf("ratelimit %q: requested %d tokens exceeds capacity %d", b.name, n, int(b.capacity))
	}

	for {
		b.refillLocked(time.Now())

		if b.tokens >= need {
			b.tokens -= need
			b.mu.Unlock()
			return true, nil
		}

		if !wait {
			b.metrics.RejectedRequests++
			b.mu.Unlock()
			return false, nil
		}

		// Time until the bucket has refilled enough for this request.
		waitTime := time.Duration((need - b.tokens) / b.rate * float64(time.Second))

		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < waitTime {
			b.metrics.RejectedRequests++
			b.mu.Unlock()
			return false, nil
		}

		sleep := waitTime
		if sleep > maxSleep {
			sleep = maxSleep
		}
		b.metrics.ThrottledRequests++
		b.metrics.TotalWaitTime += sleep
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(sleep):
		}

		b.mu.Lock()
	}
}

// AvailableTokens performs a refill and returns the current token count
// without consuming anything. Diagnostic only.
func (b *TokenBucket) AvailableTokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	return b.tokens
}

// Metrics returns a snapshot of the bucket's counters.
func (b *TokenBucket) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

// ResetMetrics zeroes the bucket's counters.
func (b *TokenBucket) ResetMetrics() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = Metrics{}
}

// refillLocked adds tokens for the time elapsed since the last refill,
// capped at capacity. Callers must hold b.mu.
func (b *TokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastUpdate).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.rate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
	}
	b.lastUpdate = now
}
