package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solace-app/solace-gateway/internal/models"
	"github.com/solace-app/solace-gateway/internal/storage"
)

const maxTxAttempts = 5

// SQLStore emulates the atomic counter contract on Postgres when Redis is
// not available. Each increment is a read-modify-write transaction against
// a single ledger row; concurrent writers are serialized by a row lock, and
// duplicate-key races on fresh rows are retried until the increment commits
// exactly once.
type SQLStore struct {
	db  *storage.Postgres
	now func() time.Time
}

func NewSQLStore(db *storage.Postgres) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) IncrBy(ctx context.Context, key string, amount int64, expireAt time.Time) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var total int64
	var lastErr error

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var entry models.QuotaLedger
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("key = ?", key).
				First(&entry).Error

			if errors.Is(err, gorm.ErrRecordNotFound) {
				entry = models.QuotaLedger{
					Key:       key,
					Count:     amount,
					ExpiresAt: expireAt,
				}
				if err := tx.Create(&entry).Error; err != nil {
					return err
				}
				total = entry.Count
				return nil
			}
			if err != nil {
				return err
			}

			// A row left over from a previous bucket counts from zero.
			if entry.ExpiresAt.Before(s.now()) {
				entry.Count = amount
				entry.ExpiresAt = expireAt
			} else {
				entry.Count += amount
			}

			if err := tx.Model(&models.QuotaLedger{}).
				Where("key = ?", key).
				Updates(map[string]interface{}{
					"count":      entry.Count,
					"expires_at": entry.ExpiresAt,
				}).Error; err != nil {
				return err
			}

			total = entry.Count
			return nil
		})

		if err == nil {
			return total, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return 0, err
		}
	}

	return 0, fmt.Errorf("%w: %v", ErrTxConflict, lastErr)
}

func (s *SQLStore) Get(ctx context.Context, key string) (int64, error) {
	var entry models.QuotaLedger
	err := s.db.DB.WithContext(ctx).
		Where("key = ?", key).
		First(&entry).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	if entry.ExpiresAt.Before(s.now()) {
		return 0, nil
	}

	return entry.Count, nil
}

// CleanupExpired deletes ledger rows whose bucket has rolled over. Unlike
// Redis there is no TTL, so a periodic sweep keeps the table bounded.
func (s *SQLStore) CleanupExpired(ctx context.Context) (int64, error) {
	result := s.db.DB.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.QuotaLedger{})

	return result.RowsAffected, result.Error
}

// isRetryable reports whether a transaction error is a conflict worth
// retrying: duplicate-key races on fresh rows, serialization failures and
// deadlocks.
func isRetryable(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "deadlock")
}
