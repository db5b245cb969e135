// Package ratelimit paces upstream affiliate API calls with a token bucket
// that honors throttle feedback (429/Retry-After) via a cooldown window.
package ratelimit

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Bucket is a token-bucket limiter. Take blocks until a token is available
// or ctx is done. Penalize opens a cooldown window during which all Take
// calls wait; Reward is a no-op hook kept for symmetry with throttled
// clients that may later re-enable adaptive rates.
type Bucket struct {
	mu sync.Mutex

	rps         float64
	burstFactor float64
	tokens      float64
	lastRefill  time.Time

	cooldownUntil time.Time
	jitterMs      int
}

func NewBucket(rps float64, jitterMs int) *Bucket {
	if rps <= 0 {
		rps = 1
	}
	if jitterMs < 0 {
		jitterMs = 0
	}
	return &Bucket{
		rps:         rps,
		burstFactor: 2.0,
		tokens:      rps,
		lastRefill:  time.Now(),
		jitterMs:    jitterMs,
	}
}

func (b *Bucket) burstCap() float64 { return b.rps * b.burstFactor }

func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(b.burstCap(), b.tokens+elapsed*b.rps)
	b.lastRefill = now
}

// Take blocks for a token. Returns false only when ctx is done.
func (b *Bucket) Take(ctx context.Context) bool {
	for {
		b.mu.Lock()
		now := time.Now()

		if now.Before(b.cooldownUntil) {
			sleep := time.Until(b.cooldownUntil)
			if b.jitterMs > 0 {
				sleep += time.Duration(rand.Intn(b.jitterMs)) * time.Millisecond
			}
			b.mu.Unlock()
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return false
			}
			continue
		}

		b.refill(now)
		if b.tokens >= 1.0 {
			b.tokens -= 1.0
			b.mu.Unlock()
			return true
		}

		need := (1.0 - b.tokens) / b.rps
		b.mu.Unlock()
		wait := time.Duration(need*float64(time.Second)) + time.Millisecond
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return false
		}
	}
}

// Penalize opens a cooldown window, typically from a 429 Retry-After header
// or a fallback throttle duration. Tokens are drained so the first call
// after cooldown pays full price.
func (b *Bucket) Penalize(d time.Duration) {
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(b.cooldownUntil) {
		b.cooldownUntil = until
	}
	b.tokens = 0
}

// Reward signals a clean 2xx. Fixed-rate buckets take no action.
func (b *Bucket) Reward() {}
