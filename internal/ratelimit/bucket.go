package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Bucket is an in-memory token bucket. It allows bursts up to capacity and
// then throttles to refillRate tokens per second. Refill is computed lazily
// from elapsed wall-clock time at call time, so no background timer is
// needed. State is process-local and resets to full on restart; this is
// burst smoothing only, hard limits live in the quota ledger.
type Bucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// NewBucket creates a full bucket. Capacity and refillRate must be positive;
// non-positive values are coerced to 1.
func NewBucket(capacity, refillRate float64) *Bucket {
	if capacity <= 0 {
		capacity = 1
	}
	if refillRate <= 0 {
		refillRate = 1
	}

	b := &Bucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		now:        time.Now,
	}
	b.lastRefill = b.now()

	return b
}

// Consume refills the bucket and then takes amount tokens if available.
// There is no partial consumption: either the full amount is taken and true
// is returned, or nothing is taken. An amount greater than capacity can
// never succeed.
func (b *Bucket) Consume(amount float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()

	if b.tokens >= amount {
		b.tokens -= amount
		return true
	}

	return false
}

// Tokens refills and reports the current level.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	return b.tokens
}

func (b *Bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()

	// Guard against backward clock jumps.
	if elapsed < 0 {
		elapsed = 0
	}

	b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}
