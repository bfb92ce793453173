package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/solace-app/solace-gateway/internal/models"
	"github.com/solace-app/solace-gateway/internal/storage"
)

type ChatRepository struct {
	db *storage.Postgres
}

func NewChatRepository(db *storage.Postgres) *ChatRepository {
	return &ChatRepository{db: db}
}

// SaveExchange persists a user message and the model's reply together.
func (r *ChatRepository) SaveExchange(ctx context.Context, userID uuid.UUID, sessionID, userMessage, aiResponse string, tokensUsed int) error {
	now := time.Now().UTC()

	messages := []*models.ChatMessage{
		{
			UserID:    userID,
			SessionID: sessionID,
			Content:   userMessage,
			IsUser:    true,
			Timestamp: now,
		},
		{
			UserID:     userID,
			SessionID:  sessionID,
			Content:    aiResponse,
			IsUser:     false,
			TokensUsed: tokensUsed,
			Timestamp:  now.Add(time.Second),
		},
	}

	return r.db.DB.WithContext(ctx).Create(&messages).Error
}

// History returns the most recent messages, newest first.
func (r *ChatRepository) History(ctx context.Context, userID uuid.UUID, sessionID string, limit int) ([]models.ChatMessage, error) {
	query := r.db.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit)

	if sessionID != "" {
		query = query.Where("session_id = ?", sessionID)
	}

	var messages []models.ChatMessage
	err := query.Find(&messages).Error

	return messages, err
}
