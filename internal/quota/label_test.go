package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketLabel_DailyKindsUseCalendarDay(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	assert.Equal(t, "2026-03-14", BucketLabel(KindReads, now))
	assert.Equal(t, "2026-03-14", BucketLabel(KindWrites, now))
	assert.Equal(t, "2026-03-14", BucketLabel(KindAIRequests, now))
}

func TestBucketLabel_TokensUseYearMonth(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	assert.Equal(t, "2026-03", BucketLabel(KindTokens, now))
}

func TestBucketLabel_NormalizesToUTC(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2026, 3, 14, 23, 30, 0, 0, loc)

	assert.Equal(t, "2026-03-15", BucketLabel(KindReads, now))
}

func TestKeys_EmbedSubjectKindAndBucket(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "quota:daily:user-1:ai_requests:2026-03-14", DailyKey("user-1", KindAIRequests, now))
	assert.Equal(t, "quota:monthly:user-1:tokens:2026-03", MonthlyKey("user-1", now))
}

func TestStartOfNextDay(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), StartOfNextDay(now))
}

func TestStartOfNextDay_MonthRollover(t *testing.T) {
	now := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), StartOfNextDay(now))
}

func TestStartOfNextMonth(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), StartOfNextMonth(now))
}

func TestStartOfNextMonth_YearRollover(t *testing.T) {
	now := time.Date(2026, 12, 25, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), StartOfNextMonth(now))
}

func TestBucketEnd_AlignsWithLabels(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, StartOfNextDay(now), BucketEnd(KindReads, now))
	assert.Equal(t, StartOfNextMonth(now), BucketEnd(KindTokens, now))
}

func TestOperationKind(t *testing.T) {
	assert.Equal(t, KindReads, OpRead.Kind())
	assert.Equal(t, KindWrites, OpWrite.Kind())
	assert.Equal(t, KindAIRequests, OpAIRequest.Kind())
	assert.Equal(t, KindTokens, OpMonthlyTokens.Kind())
}
