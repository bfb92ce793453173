package quota

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBackendUnavailable is returned when the preferred counter backend
	// cannot be reached at startup. The caller selects the fallback once
	// and keeps it for the process lifetime.
	ErrBackendUnavailable = errors.New("counter backend unavailable")

	// ErrTxConflict is returned by the transactional fallback when the
	// bounded retry budget is exhausted.
	ErrTxConflict = errors.New("ledger transaction conflict")

	// ErrInvalidAmount is returned for non-positive increment amounts.
	ErrInvalidAmount = errors.New("increment amount must be positive")
)

// CounterStore is an atomic counter keyed by string. Both implementations
// guarantee that N concurrent IncrBy calls against one key sum exactly:
// no lost updates, no double counts. That property is what the whole quota
// subsystem depends on.
type CounterStore interface {
	// IncrBy atomically adds amount to key and returns the new total.
	// On the first write of a fresh key the entry is set to expire at
	// expireAt, the end of the key's time bucket.
	IncrBy(ctx context.Context, key string, amount int64, expireAt time.Time) (int64, error)

	// Get returns the current value, or 0 for a missing or expired key.
	Get(ctx context.Context, key string) (int64, error)
}
