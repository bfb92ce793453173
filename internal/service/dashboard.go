package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/solace-app/solace-gateway/internal/quota"
	"github.com/solace-app/solace-gateway/internal/repository"
	"github.com/solace-app/solace-gateway/internal/storage"
)

// ErrUserNotFound is returned when the subject has no profile row.
var ErrUserNotFound = errors.New("user not found")

const dashboardCacheTTL = 30 * time.Second

// StorageLimitBytes is the per-user storage cap (2 MiB).
const StorageLimitBytes = 2 * 1024 * 1024

// DashboardService aggregates the subject's profile with all four quota
// ledgers. Results are cached briefly in Redis because the dashboard is the
// most-polled endpoint and every uncached hit costs four counter reads.
type DashboardService struct {
	users *repository.UserRepository
	quota *quota.Manager
	redis *storage.RedisClient // nil in fallback mode, cache disabled
}

func NewDashboardService(users *repository.UserRepository, quotaManager *quota.Manager, redis *storage.RedisClient) *DashboardService {
	return &DashboardService{
		users: users,
		quota: quotaManager,
		redis: redis,
	}
}

type Dashboard struct {
	User   DashboardUser   `json:"user"`
	Usage  DashboardUsage  `json:"usage"`
	Limits DashboardLimits `json:"limits"`
}

type DashboardUser struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	SubscriptionTier string `json:"subscription_tier"`
	TotalSessions    int64  `json:"total_sessions"`
}

type DashboardUsage struct {
	Reads         int64 `json:"reads"`
	Writes        int64 `json:"writes"`
	AIRequests    int64 `json:"ai_requests"`
	MonthlyTokens int64 `json:"monthly_tokens"`
	StorageUsed   int64 `json:"storage_used"`
}

type DashboardLimits struct {
	DailyReads      int64 `json:"daily_reads"`
	DailyWrites     int64 `json:"daily_writes"`
	DailyAIRequests int64 `json:"daily_ai_requests"`
	MonthlyTokens   int64 `json:"monthly_tokens"`
	StorageLimit    int64 `json:"storage_limit"`
}

func (s *DashboardService) Get(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	cacheKey := fmt.Sprintf("dashboard:%s", userID)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey); err == nil && cached != "" {
			var dashboard Dashboard
			if err := json.Unmarshal([]byte(cached), &dashboard); err == nil {
				return &dashboard, nil
			}
		}
	}

	user, err := s.users.FindByID(ctx, userID.String())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	subject := userID.String()
	limits := s.quota.Limits()

	reads := s.quota.Check(ctx, subject, quota.OpRead, 1)
	writes := s.quota.Check(ctx, subject, quota.OpWrite, 1)
	ai := s.quota.Check(ctx, subject, quota.OpAIRequest, 1)

	tokens, err := s.quota.MonthlyTokenUsage(ctx, subject)
	if err != nil {
		return nil, err
	}

	dashboard := &Dashboard{
		User: DashboardUser{
			Name:             user.Name,
			Email:            user.Email,
			SubscriptionTier: user.SubscriptionTier,
			TotalSessions:    user.TotalSessions,
		},
		Usage: DashboardUsage{
			Reads:         limits.DailyReads - reads.Remaining,
			Writes:        limits.DailyWrites - writes.Remaining,
			AIRequests:    limits.DailyAIRequests - ai.Remaining,
			MonthlyTokens: tokens.Current,
			StorageUsed:   user.StorageUsed,
		},
		Limits: DashboardLimits{
			DailyReads:      limits.DailyReads,
			DailyWrites:     limits.DailyWrites,
			DailyAIRequests: limits.DailyAIRequests,
			MonthlyTokens:   tokens.Limit,
			StorageLimit:    StorageLimitBytes,
		},
	}

	if s.redis != nil {
		if data, err := json.Marshal(dashboard); err == nil {
			s.redis.Set(ctx, cacheKey, data, dashboardCacheTTL)
		}
	}

	// Serving the dashboard is itself one metered read.
	if _, err := s.quota.IncrementDaily(ctx, subject, quota.KindReads, 1); err != nil {
		log.Printf("failed to charge read for %s: %v", subject, err)
	}

	return dashboard, nil
}
