package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-memory CounterStore used to test the Manager without
// a backend. It honors the same contract: atomic increments, expiry set on
// first write of a fresh key.
type memoryStore struct {
	mu       sync.Mutex
	counts   map[string]int64
	expiries map[string]time.Time
	err      error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		counts:   make(map[string]int64),
		expiries: make(map[string]time.Time),
	}
}

func (s *memoryStore) IncrBy(ctx context.Context, key string, amount int64, expireAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, s.err
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	if _, exists := s.counts[key]; !exists {
		s.expiries[key] = expireAt
	}
	s.counts[key] += amount

	return s.counts[key], nil
}

func (s *memoryStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, s.err
	}

	return s.counts[key], nil
}

type staticTiers struct {
	tiers map[string]string
	err   error
}

func (s *staticTiers) GetSubscriptionTier(ctx context.Context, subject string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if tier, ok := s.tiers[subject]; ok {
		return tier, nil
	}

	return "free", nil
}

func newTestManager(store CounterStore, tiers TierSource) *Manager {
	m := NewManager(store, tiers, DefaultLimits())
	m.now = func() time.Time {
		return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	}

	return m
}

func TestManager_DailyAIRequestScenario(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	m := newTestManager(store, &staticTiers{})

	// Three successive charges against the 3/day limit.
	for i, wantRemaining := range []int64{2, 1, 0} {
		usage, err := m.IncrementDaily(ctx, "subject", KindAIRequests, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), usage.Current)
		assert.Equal(t, int64(3), usage.Limit)
		assert.Equal(t, wantRemaining, usage.Remaining)
	}

	// The fourth request is denied with the next-midnight reset.
	result := m.Check(ctx, "subject", OpAIRequest, 1)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), result.ResetTime)
}

func TestManager_MonthlyTokensPremiumScenario(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	m := newTestManager(store, &staticTiers{tiers: map[string]string{"subject": "premium"}})

	usage, err := m.IncrementMonthlyTokens(ctx, "subject", 150)
	require.NoError(t, err)
	assert.Equal(t, int64(150), usage.Current)

	usage, err = m.IncrementMonthlyTokens(ctx, "subject", 200)
	require.NoError(t, err)
	assert.Equal(t, int64(350), usage.Current)
	assert.Equal(t, int64(100000), usage.Limit)
	assert.Equal(t, int64(99650), usage.Remaining)

	tokens, err := m.MonthlyTokenUsage(ctx, "subject")
	require.NoError(t, err)
	assert.Equal(t, int64(350), tokens.Current)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), tokens.ResetDate)
}

func TestManager_RemainingNeverNegative(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	m := newTestManager(store, &staticTiers{})

	// Blow way past the 5/day write limit in one charge.
	usage, err := m.IncrementDaily(ctx, "subject", KindWrites, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), usage.Current)
	assert.Equal(t, int64(0), usage.Remaining)

	result := m.Check(ctx, "subject", OpWrite, 1)
	assert.False(t, result.Allowed)
	assert.GreaterOrEqual(t, result.Remaining, int64(0))
}

func TestManager_ChecksFailClosedOnBackendError(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	m := newTestManager(store, &staticTiers{})

	for _, op := range []Operation{OpRead, OpWrite, OpAIRequest, OpMonthlyTokens} {
		result := m.Check(ctx, "subject", op, 1)
		assert.False(t, result.Allowed, "op %s must fail closed", op)
		assert.Equal(t, int64(0), result.Remaining)
	}
}

func TestManager_ChecksFailClosedOnTierLookupError(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	m := newTestManager(store, &staticTiers{err: errors.New("profile store down")})

	result := m.Check(ctx, "subject", OpMonthlyTokens, 1)
	assert.False(t, result.Allowed)
	assert.Equal(t, int64(0), result.Remaining)
}

func TestManager_TimeBucketIsolation(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	m := newTestManager(store, &staticTiers{})

	_, err := m.IncrementDaily(ctx, "subject", KindAIRequests, 3)
	require.NoError(t, err)

	// Roll the clock to the next day: the counter starts fresh.
	m.now = func() time.Time {
		return time.Date(2026, 3, 15, 0, 0, 1, 0, time.UTC)
	}

	result := m.Check(ctx, "subject", OpAIRequest, 1)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(3), result.Remaining)

	// And yesterday's bucket is untouched by a new increment.
	usage, err := m.IncrementDaily(ctx, "subject", KindAIRequests, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.Current)
}

func TestManager_SubjectIsolation(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	m := newTestManager(store, &staticTiers{})

	_, err := m.IncrementDaily(ctx, "alice", KindAIRequests, 3)
	require.NoError(t, err)

	result := m.Check(ctx, "bob", OpAIRequest, 1)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(3), result.Remaining)
}

func TestManager_ConcurrentIncrementsSumPreserved(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	m := newTestManager(store, &staticTiers{})

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		amount := int64(i%3 + 1)
		go func() {
			defer wg.Done()
			_, err := m.IncrementMonthlyTokens(ctx, "subject", amount)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var want int64
	for i := 0; i < workers; i++ {
		want += int64(i%3 + 1)
	}

	tokens, err := m.MonthlyTokenUsage(ctx, "subject")
	require.NoError(t, err)
	assert.Equal(t, want, tokens.Current)
}

func TestManager_RejectsInvalidAmounts(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(newMemoryStore(), &staticTiers{})

	_, err := m.IncrementDaily(ctx, "subject", KindReads, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = m.IncrementDaily(ctx, "subject", KindReads, -5)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = m.IncrementMonthlyTokens(ctx, "subject", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestManager_DailyIncrementRejectsTokenKind(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(newMemoryStore(), &staticTiers{})

	_, err := m.IncrementDaily(ctx, "subject", KindTokens, 1)
	assert.Error(t, err)
}

func TestManager_UnknownTierFallsBackToFree(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(newMemoryStore(), &staticTiers{tiers: map[string]string{"subject": "legacy-gold"}})

	usage, err := m.IncrementMonthlyTokens(ctx, "subject", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), usage.Limit)
}

func TestManager_FreshKeyExpiryAlignedToBucketEnd(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	m := newTestManager(store, &staticTiers{})

	_, err := m.IncrementDaily(ctx, "subject", KindReads, 1)
	require.NoError(t, err)

	key := DailyKey("subject", KindReads, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), store.expiries[key])
}

func TestManager_CheckDefaultsAmountToOne(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(newMemoryStore(), &staticTiers{})

	result := m.Check(ctx, "subject", OpRead, 0)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(30), result.Remaining)
}
