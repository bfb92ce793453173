package quota

import (
	"fmt"
	"time"
)

// ResourceKind is a metered counter category.
type ResourceKind string

const (
	KindReads      ResourceKind = "reads"
	KindWrites     ResourceKind = "writes"
	KindAIRequests ResourceKind = "ai_requests"
	KindTokens     ResourceKind = "tokens"
)

// Operation is the request-level classification mapped onto resource kinds.
type Operation string

const (
	OpRead          Operation = "read"
	OpWrite         Operation = "write"
	OpAIRequest     Operation = "ai_request"
	OpMonthlyTokens Operation = "monthly_tokens"
)

// Kind maps an operation to the counter it consumes.
func (op Operation) Kind() ResourceKind {
	switch op {
	case OpWrite:
		return KindWrites
	case OpAIRequest:
		return KindAIRequests
	case OpMonthlyTokens:
		return KindTokens
	default:
		return KindReads
	}
}

// BucketLabel returns the time-bucket component of a ledger key. Daily kinds
// use the UTC calendar day, the monthly token kind uses the UTC year-month.
// Keys built from these labels age out naturally when the bucket rolls over.
func BucketLabel(kind ResourceKind, now time.Time) string {
	now = now.UTC()

	if kind == KindTokens {
		return now.Format("2006-01")
	}

	return now.Format("2006-01-02")
}

// DailyKey builds the ledger key for a subject's daily counter.
func DailyKey(subject string, kind ResourceKind, now time.Time) string {
	return fmt.Sprintf("quota:daily:%s:%s:%s", subject, kind, BucketLabel(kind, now))
}

// MonthlyKey builds the ledger key for a subject's monthly token counter.
func MonthlyKey(subject string, now time.Time) string {
	return fmt.Sprintf("quota:monthly:%s:tokens:%s", subject, BucketLabel(KindTokens, now))
}

// StartOfNextDay is the UTC instant the daily buckets reset.
func StartOfNextDay(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}

// StartOfNextMonth is the UTC instant the monthly token bucket resets.
func StartOfNextMonth(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// BucketEnd returns the expiry boundary for a fresh ledger key of the given
// kind, used to align store TTLs with label rollover.
func BucketEnd(kind ResourceKind, now time.Time) time.Time {
	if kind == KindTokens {
		return StartOfNextMonth(now)
	}

	return StartOfNextDay(now)
}
