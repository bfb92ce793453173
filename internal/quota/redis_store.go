package quota

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/solace-app/solace-gateway/internal/storage"
)

// RedisStore is the preferred counter backend. Atomicity is delegated to
// Redis INCRBY; no locks are taken anywhere.
type RedisStore struct {
	redis *storage.RedisClient
}

func NewRedisStore(client *storage.RedisClient) *RedisStore {
	return &RedisStore{redis: client}
}

func (s *RedisStore) IncrBy(ctx context.Context, key string, amount int64, expireAt time.Time) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	total, err := s.redis.IncrBy(ctx, key, amount)
	if err != nil {
		return 0, err
	}

	// First write of a fresh key: align expiry to the end of the time
	// bucket so the counter disappears exactly when its label rolls over.
	if total == amount {
		if err := s.redis.ExpireAt(ctx, key, expireAt); err != nil {
			return total, err
		}
	}

	return total, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	val, err := s.redis.Get(ctx, key)
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, err
	}

	return count, nil
}
