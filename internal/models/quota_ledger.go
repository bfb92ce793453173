package models

import (
	"time"
)

// QuotaLedger is one counter row for the transactional fallback backend.
// The key embeds subject, resource kind and time-bucket label, so a new
// bucket always starts as a fresh row. Rows past ExpiresAt are treated as
// absent and swept periodically.
type QuotaLedger struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Count     int64     `gorm:"not null" json:"count"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (QuotaLedger) TableName() string {
	return "quota_ledgers"
}
