package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatMessage struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	SessionID  string    `gorm:"index" json:"session_id"`
	Content    string    `gorm:"not null" json:"content"`
	IsUser     bool      `json:"is_user"`
	TokensUsed int       `json:"tokens_used,omitempty"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	return nil
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
