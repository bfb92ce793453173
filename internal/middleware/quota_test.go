package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solace-app/solace-gateway/internal/quota"
)

// fixedStore reports the same count for every key.
type fixedStore struct {
	count int64
	err   error
}

func (s *fixedStore) IncrBy(ctx context.Context, key string, amount int64, expireAt time.Time) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.count += amount
	return s.count, nil
}

func (s *fixedStore) Get(ctx context.Context, key string) (int64, error) {
	return s.count, s.err
}

type freeTiers struct{}

func (freeTiers) GetSubscriptionTier(ctx context.Context, subject string) (string, error) {
	return "free", nil
}

func newQuotaRouter(store quota.CounterStore, subject string) (*gin.Engine, *int) {
	gin.SetMode(gin.TestMode)

	manager := quota.NewManager(store, freeTiers{}, quota.DefaultLimits())

	calls := 0
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if subject != "" {
			c.Set("uid", subject)
		}
	})
	router.Use(Quota(manager))
	router.Any("/*path", func(c *gin.Context) {
		calls++
		c.Status(http.StatusOK)
	})

	return router, &calls
}

func TestClassify(t *testing.T) {
	assert.Equal(t, quota.OpAIRequest, Classify(http.MethodPost, "/api/chat"))
	assert.Equal(t, quota.OpAIRequest, Classify(http.MethodGet, "/api/chat/history"))
	assert.Equal(t, quota.OpWrite, Classify(http.MethodPost, "/api/settings"))
	assert.Equal(t, quota.OpWrite, Classify(http.MethodPut, "/api/settings"))
	assert.Equal(t, quota.OpWrite, Classify(http.MethodDelete, "/api/settings"))
	assert.Equal(t, quota.OpRead, Classify(http.MethodGet, "/api/dashboard"))
}

func TestQuota_RejectsAnonymousRequests(t *testing.T) {
	router, calls := newQuotaRouter(&fixedStore{}, "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, *calls, "handler must not run for anonymous identity")
}

func TestQuota_AllowsAndAnnotatesRemaining(t *testing.T) {
	// 10 reads already used of the 30/day limit.
	router, calls := newQuotaRouter(&fixedStore{count: 10}, "subject")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, "20", w.Header().Get("X-Quota-Remaining"))
}

func TestQuota_RejectsWhenExhausted(t *testing.T) {
	// ai_requests limit is 3; pretend 3 are used.
	router, calls := newQuotaRouter(&fixedStore{count: 3}, "subject")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 0, *calls, "downstream handler must never execute after a deny")
	assert.Equal(t, "0", w.Header().Get("X-Quota-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Contains(t, w.Body.String(), "Quota exceeded")
	assert.Contains(t, w.Body.String(), "ai_request")
	assert.Contains(t, w.Body.String(), "reset_time")
}

func TestQuota_FailsClosedOnBackendError(t *testing.T) {
	router, calls := newQuotaRouter(&fixedStore{err: errors.New("backend down")}, "subject")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	// Surfaced as a quota rejection, never a 500.
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 0, *calls)
	assert.Equal(t, "0", w.Header().Get("X-Quota-Remaining"))
	assert.Equal(t, "86400", w.Header().Get("Retry-After"))
}
