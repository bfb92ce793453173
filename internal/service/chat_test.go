package service

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/solace-app/solace-gateway/internal/models"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("hi"))
	assert.Equal(t, 3, EstimateTokens("Hello world")) // 11 chars
	assert.Equal(t, 512, EstimateTokens(strings.Repeat("a", 2048)))
	assert.Equal(t, 513, EstimateTokens(strings.Repeat("a", 2049)))
}

func TestTruncateResponse_ShortTextUntouched(t *testing.T) {
	assert.Equal(t, "brief", truncateResponse("brief", 256))
}

func TestTruncateResponse_NeverSplitsARune(t *testing.T) {
	// 400 three-byte runes = 1200 bytes; the naive cut at 256*4 = 1024
	// bytes would land mid-rune (1024 is not a multiple of 3).
	text := strings.Repeat("祈", 400)

	out := truncateResponse(text, 256)

	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "... [Response truncated]"))

	kept := strings.TrimSuffix(out, "... [Response truncated]")
	assert.LessOrEqual(t, len(kept), 256*4)
	assert.Empty(t, strings.Trim(kept, "祈"), "only whole runes survive the cut")
}

func TestBuildPrompt_NoHistory(t *testing.T) {
	assert.Equal(t, "guide me", buildPrompt(nil, "guide me"))
}

func TestBuildPrompt_ReplaysHistoryOldestFirst(t *testing.T) {
	now := time.Now()

	// Repository order: newest first.
	history := []models.ChatMessage{
		{Content: "Peace be with you.", IsUser: false, Timestamp: now},
		{Content: "Hello", IsUser: true, Timestamp: now.Add(-time.Minute)},
	}

	prompt := buildPrompt(history, "What should I pray for?")

	assert.Contains(t, prompt, "Previous conversation:\nUser: Hello\nAssistant: Peace be with you.\n")
	assert.True(t, strings.HasSuffix(prompt, "New message: What should I pray for?"))

	// Oldest message comes before the newest.
	assert.Less(t, strings.Index(prompt, "Hello"), strings.Index(prompt, "Peace"))
}
