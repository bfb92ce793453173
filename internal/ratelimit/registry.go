package ratelimit

import (
	"sync"
	"time"
)

// Registry hands out one Bucket per key, created lazily on first use.
// Buckets live for the process lifetime; an idle sweep drops entries that
// have not been touched for idleTTL so abandoned keys do not accumulate.
type Registry struct {
	mu         sync.Mutex
	buckets    map[string]*registryEntry
	capacity   float64
	refillRate float64
	idleTTL    time.Duration
	now        func() time.Time
}

type registryEntry struct {
	bucket   *Bucket
	lastSeen time.Time
}

const defaultIdleTTL = time.Hour

func NewRegistry(capacity, refillRate float64) *Registry {
	return &Registry{
		buckets:    make(map[string]*registryEntry),
		capacity:   capacity,
		refillRate: refillRate,
		idleTTL:    defaultIdleTTL,
		now:        time.Now,
	}
}

// Consume takes amount tokens from the bucket for key.
func (r *Registry) Consume(key string, amount float64) bool {
	return r.get(key).Consume(amount)
}

// Tokens reports the current level for key.
func (r *Registry) Tokens(key string) float64 {
	return r.get(key).Tokens()
}

func (r *Registry) get(key string) *Bucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.buckets[key]
	if !ok {
		entry = &registryEntry{bucket: NewBucket(r.capacity, r.refillRate)}
		r.buckets[key] = entry
	}
	entry.lastSeen = r.now()

	return entry.bucket
}

// Cleanup removes buckets idle for longer than idleTTL. A dropped bucket is
// recreated full on next use, which only ever favors the caller.
func (r *Registry) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.idleTTL)
	for key, entry := range r.buckets {
		if entry.lastSeen.Before(cutoff) {
			delete(r.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup on the given interval until stop is closed.
func (r *Registry) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}
