package quota

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Limits is the static limit table. Daily caps apply to every subject;
// monthly token ceilings vary by subscription tier. Limits are policy
// constants, not per-user overridable here.
type Limits struct {
	DailyReads      int64
	DailyWrites     int64
	DailyAIRequests int64
	MonthlyTokens   map[string]int64
}

// DefaultLimits mirrors the production cost-control defaults.
func DefaultLimits() Limits {
	return Limits{
		DailyReads:      30,
		DailyWrites:     5,
		DailyAIRequests: 3,
		MonthlyTokens: map[string]int64{
			"free":       10000,
			"premium":    100000,
			"enterprise": 500000,
		},
	}
}

func (l Limits) Daily(kind ResourceKind) int64 {
	switch kind {
	case KindWrites:
		return l.DailyWrites
	case KindAIRequests:
		return l.DailyAIRequests
	default:
		return l.DailyReads
	}
}

func (l Limits) Monthly(tier string) int64 {
	if limit, ok := l.MonthlyTokens[tier]; ok {
		return limit
	}

	return l.MonthlyTokens["free"]
}

// TierSource resolves a subject's subscription tier at check time. The tier
// is read fresh on every monthly accounting call because it can change
// independently of usage.
type TierSource interface {
	GetSubscriptionTier(ctx context.Context, subject string) (string, error)
}

// Usage is the result of an increment: the new total, the applicable limit
// and the remaining headroom clamped to zero.
type Usage struct {
	Current   int64 `json:"current"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}

// Result is the outcome of a read-only quota check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int64     `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

// TokenUsage is the monthly token ledger view used by dashboards.
type TokenUsage struct {
	Current   int64     `json:"current"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	ResetDate time.Time `json:"reset_date"`
}

// Manager layers the domain rules on a CounterStore: key construction,
// limit lookup, reset-time computation and the fail-closed translation of
// backend errors.
type Manager struct {
	store  CounterStore
	tiers  TierSource
	limits Limits
	now    func() time.Time
}

func NewManager(store CounterStore, tiers TierSource, limits Limits) *Manager {
	return &Manager{
		store:  store,
		tiers:  tiers,
		limits: limits,
		now:    time.Now,
	}
}

// IncrementDaily charges amount against a subject's daily counter and
// returns the updated usage.
func (m *Manager) IncrementDaily(ctx context.Context, subject string, kind ResourceKind, amount int64) (Usage, error) {
	if amount <= 0 {
		return Usage{}, ErrInvalidAmount
	}
	if kind == KindTokens {
		return Usage{}, fmt.Errorf("kind %q is monthly, use IncrementMonthlyTokens", kind)
	}

	now := m.now()
	key := DailyKey(subject, kind, now)

	current, err := m.store.IncrBy(ctx, key, amount, BucketEnd(kind, now))
	if err != nil {
		return Usage{}, fmt.Errorf("increment daily %s: %w", kind, err)
	}

	limit := m.limits.Daily(kind)

	return Usage{
		Current:   current,
		Limit:     limit,
		Remaining: clamp(limit - current),
	}, nil
}

// IncrementMonthlyTokens charges actual token spend against the subject's
// monthly ledger. The tier ceiling is resolved from the profile store on
// every call.
func (m *Manager) IncrementMonthlyTokens(ctx context.Context, subject string, tokens int64) (Usage, error) {
	if tokens <= 0 {
		return Usage{}, ErrInvalidAmount
	}

	now := m.now()
	key := MonthlyKey(subject, now)

	current, err := m.store.IncrBy(ctx, key, tokens, BucketEnd(KindTokens, now))
	if err != nil {
		return Usage{}, fmt.Errorf("increment monthly tokens: %w", err)
	}

	limit, err := m.monthlyLimit(ctx, subject)
	if err != nil {
		return Usage{}, err
	}

	return Usage{
		Current:   current,
		Limit:     limit,
		Remaining: clamp(limit - current),
	}, nil
}

// Check is the read-only gate. It never increments and it never fails open:
// any backend error is logged and reported as not allowed with zero
// remaining, because denying a paying user is cheaper than unbounded AI
// spend from an accounting bug.
func (m *Manager) Check(ctx context.Context, subject string, op Operation, amount int64) Result {
	if amount <= 0 {
		amount = 1
	}

	now := m.now()

	if op == OpMonthlyTokens {
		usage, err := m.MonthlyTokenUsage(ctx, subject)
		if err != nil {
			log.Printf("quota check failed for %s/%s: %v", subject, op, err)
			return Result{Allowed: false, Remaining: 0}
		}

		return Result{
			Allowed:   usage.Remaining >= amount,
			Remaining: usage.Remaining,
			ResetTime: usage.ResetDate,
		}
	}

	kind := op.Kind()
	key := DailyKey(subject, kind, now)

	current, err := m.store.Get(ctx, key)
	if err != nil {
		log.Printf("quota check failed for %s/%s: %v", subject, op, err)
		return Result{Allowed: false, Remaining: 0}
	}

	remaining := clamp(m.limits.Daily(kind) - current)

	return Result{
		Allowed:   remaining >= amount,
		Remaining: remaining,
		ResetTime: StartOfNextDay(now),
	}
}

// MonthlyTokenUsage returns the current month's token ledger with the
// explicit reset date, for client-facing dashboards.
func (m *Manager) MonthlyTokenUsage(ctx context.Context, subject string) (TokenUsage, error) {
	now := m.now()

	current, err := m.store.Get(ctx, MonthlyKey(subject, now))
	if err != nil {
		return TokenUsage{}, fmt.Errorf("monthly token usage: %w", err)
	}

	limit, err := m.monthlyLimit(ctx, subject)
	if err != nil {
		return TokenUsage{}, err
	}

	return TokenUsage{
		Current:   current,
		Limit:     limit,
		Remaining: clamp(limit - current),
		ResetDate: StartOfNextMonth(now),
	}, nil
}

// Limits exposes the static limit table for dashboards.
func (m *Manager) Limits() Limits {
	return m.limits
}

func (m *Manager) monthlyLimit(ctx context.Context, subject string) (int64, error) {
	tier, err := m.tiers.GetSubscriptionTier(ctx, subject)
	if err != nil {
		return 0, fmt.Errorf("resolve subscription tier: %w", err)
	}

	return m.limits.Monthly(tier), nil
}

func clamp(n int64) int64 {
	if n < 0 {
		return 0
	}

	return n
}
