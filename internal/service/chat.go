package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/solace-app/solace-gateway/internal/models"
	"github.com/solace-app/solace-gateway/internal/quota"
	"github.com/solace-app/solace-gateway/internal/repository"
)

// ErrInputTooLong is returned when the message exceeds the input token cap.
var ErrInputTooLong = errors.New("message exceeds input token limit")

// ChatService is the AI gateway handler. Admission happens upstream in the
// quota middleware; this service executes the generation and then reports
// the actual cost back to the quota manager. Charging is deliberately
// post-hoc: the pre-call estimate and the model's real token count differ.
type ChatService struct {
	client          *genai.Client // nil when GEMINI_API_KEY is unset
	model           string
	maxInputTokens  int
	maxOutputTokens int
	quota           *quota.Manager
	chats           *repository.ChatRepository
	users           *repository.UserRepository
}

type ChatConfig struct {
	APIKey          string
	Model           string
	MaxInputTokens  int
	MaxOutputTokens int
}

func NewChatService(cfg ChatConfig, quotaManager *quota.Manager, chats *repository.ChatRepository, users *repository.UserRepository) (*ChatService, error) {
	var client *genai.Client

	if cfg.APIKey != "" {
		c, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: cfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		client = c
	}

	return &ChatService{
		client:          client,
		model:           cfg.Model,
		maxInputTokens:  cfg.MaxInputTokens,
		maxOutputTokens: cfg.MaxOutputTokens,
		quota:           quotaManager,
		chats:           chats,
		users:           users,
	}, nil
}

type ChatResult struct {
	Response       string `json:"response"`
	TokensUsed     int    `json:"tokens_used"`
	SessionID      string `json:"session_id"`
	QuotaRemaining int64  `json:"quota_remaining"`
}

// EstimateTokens approximates token count from text length (1 token ≈ 4
// characters). Used only for the pre-call input cap; real accounting uses
// the model's usage metadata.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Send runs one quota-approved chat turn: generate, persist, then charge
// the daily AI request and the actual monthly token spend.
func (s *ChatService) Send(ctx context.Context, userID uuid.UUID, sessionID, message string) (*ChatResult, error) {
	if EstimateTokens(message) > s.maxInputTokens {
		return nil, ErrInputTooLong
	}

	subject := userID.String()

	if sessionID == "" {
		sessionID = fmt.Sprintf("session-%d", time.Now().UnixMilli())

		if err := s.users.IncrementSessions(ctx, subject); err != nil {
			log.Printf("failed to count session for %s: %v", subject, err)
		}
	}

	history, err := s.chats.History(ctx, userID, sessionID, 3)
	if err != nil {
		log.Printf("failed to load conversation history for %s: %v", subject, err)
		history = nil
	}

	prompt := buildPrompt(history, message)

	var text string
	var tokensUsed int

	if s.client == nil {
		// No API key configured; answer with a stub so the rest of the
		// pipeline (persistence, charging) stays exercised.
		text = fmt.Sprintf("Mock AI response to: %q. Configure GEMINI_API_KEY to use real AI.", message)
		tokensUsed = EstimateTokens(prompt) + EstimateTokens(text)
	} else {
		text, tokensUsed, err = s.generate(ctx, prompt)
		if err != nil {
			return nil, err
		}
	}

	if EstimateTokens(text) > s.maxOutputTokens {
		text = truncateResponse(text, s.maxOutputTokens)
	}

	if err := s.chats.SaveExchange(ctx, userID, sessionID, message, text, tokensUsed); err != nil {
		// The conversation can continue even if persistence fails.
		log.Printf("failed to save conversation for %s: %v", subject, err)
	} else if _, err := s.quota.IncrementDaily(ctx, subject, quota.KindWrites, 2); err != nil {
		log.Printf("failed to charge writes for %s: %v", subject, err)
	}

	// Report-actual-cost step: the single charge point for the AI request
	// and its measured token spend.
	if _, err := s.quota.IncrementDaily(ctx, subject, quota.KindAIRequests, 1); err != nil {
		log.Printf("failed to charge ai_requests for %s: %v", subject, err)
	}
	if _, err := s.quota.IncrementMonthlyTokens(ctx, subject, int64(tokensUsed)); err != nil {
		log.Printf("failed to charge monthly tokens for %s: %v", subject, err)
	}

	remaining := s.quota.Check(ctx, subject, quota.OpAIRequest, 1)

	return &ChatResult{
		Response:       text,
		TokensUsed:     tokensUsed,
		SessionID:      sessionID,
		QuotaRemaining: remaining.Remaining,
	}, nil
}

// truncateResponse cuts text to roughly maxTokens worth of characters,
// backing the cut up to a rune boundary so a multi-byte character is never
// split mid-sequence.
func truncateResponse(text string, maxTokens int) string {
	cut := maxTokens * 4
	if cut >= len(text) {
		return text
	}

	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	return text[:cut] + "... [Response truncated]"
}

func (s *ChatService) generate(ctx context.Context, prompt string) (string, int, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(s.maxOutputTokens),
		Temperature:     genai.Ptr(float32(0.7)),
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), config)
	if err != nil {
		return "", 0, fmt.Errorf("Gemini generation failed: %w", err)
	}

	text := resp.Text()

	tokensUsed := EstimateTokens(prompt) + EstimateTokens(text)
	if resp.UsageMetadata != nil {
		tokensUsed = int(resp.UsageMetadata.PromptTokenCount + resp.UsageMetadata.CandidatesTokenCount)
	}

	return text, tokensUsed, nil
}

type HistoryResult struct {
	Messages          []models.ChatMessage `json:"messages"`
	DailyRequestsUsed int64                `json:"daily_requests_used"`
}

// History returns recent messages in chronological order plus how many AI
// requests the subject has used today.
func (s *ChatService) History(ctx context.Context, userID uuid.UUID, sessionID string, limit int) (*HistoryResult, error) {
	if limit <= 0 {
		limit = 20
	}

	messages, err := s.chats.History(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, err
	}

	// Newest-first from the repository; flip for display.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	check := s.quota.Check(ctx, userID.String(), quota.OpAIRequest, 1)
	used := s.quota.Limits().DailyAIRequests - check.Remaining
	if used < 0 {
		used = 0
	}

	return &HistoryResult{
		Messages:          messages,
		DailyRequestsUsed: used,
	}, nil
}

func buildPrompt(history []models.ChatMessage, message string) string {
	if len(history) == 0 {
		return message
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")

	// History arrives newest-first; replay it oldest-first.
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.IsUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}

	b.WriteString("\nNew message: ")
	b.WriteString(message)

	return b.String()
}
