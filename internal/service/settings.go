package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/solace-app/solace-gateway/internal/models"
	"github.com/solace-app/solace-gateway/internal/quota"
)

// ErrInvalidSettings is returned when a settings update fails validation.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings are the per-user preferences stored on the profile row. An
// update replaces the stored set wholesale, so absent fields clear.
type Settings struct {
	Theme              string `json:"theme,omitempty"`
	Language           string `json:"language,omitempty"`
	Notifications      *bool  `json:"notifications,omitempty"`
	EmailNotifications *bool  `json:"email_notifications,omitempty"`
	PushNotifications  *bool  `json:"push_notifications,omitempty"`
}

func (s Settings) validate() error {
	switch s.Theme {
	case "", "light", "dark", "auto":
		return nil
	default:
		return fmt.Errorf("%w: theme must be light, dark or auto", ErrInvalidSettings)
	}
}

type preferenceStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
}

// SettingsService reads and writes user preferences. Both operations are
// metered: a fetch costs one daily read, an update one daily write.
type SettingsService struct {
	users preferenceStore
	quota *quota.Manager
}

func NewSettingsService(users preferenceStore, quotaManager *quota.Manager) *SettingsService {
	return &SettingsService{
		users: users,
		quota: quotaManager,
	}
}

func (s *SettingsService) Get(ctx context.Context, userID uuid.UUID) (*Settings, error) {
	subject := userID.String()

	user, err := s.users.FindByID(ctx, subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	var settings Settings
	if user.Preferences != "" {
		if err := json.Unmarshal([]byte(user.Preferences), &settings); err != nil {
			log.Printf("corrupt preferences for %s, serving defaults: %v", subject, err)
			settings = Settings{}
		}
	}

	if _, err := s.quota.IncrementDaily(ctx, subject, quota.KindReads, 1); err != nil {
		log.Printf("failed to charge read for %s: %v", subject, err)
	}

	return &settings, nil
}

func (s *SettingsService) Update(ctx context.Context, userID uuid.UUID, settings Settings) error {
	if err := settings.validate(); err != nil {
		return err
	}

	subject := userID.String()

	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}

	if err := s.users.Update(ctx, subject, map[string]interface{}{
		"preferences": string(data),
	}); err != nil {
		return err
	}

	if _, err := s.quota.IncrementDaily(ctx, subject, quota.KindWrites, 1); err != nil {
		log.Printf("failed to charge write for %s: %v", subject, err)
	}

	return nil
}
