package repository

import (
	"context"

	"github.com/solace-app/solace-gateway/internal/models"
	"github.com/solace-app/solace-gateway/internal/storage"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *storage.Postgres
}

func NewUserRepository(db *storage.Postgres) *UserRepository {
	return &UserRepository{db: db}
}

// Inserts a new user into the database
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.DB.WithContext(ctx).Create(user).Error
}

// Retrieves user by email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.DB.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &user, err
}

// Retrieves user by id
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &user, err
}

// GetSubscriptionTier resolves the subject's tier for monthly token
// ceilings. Unknown subjects default to the free tier rather than erroring,
// matching how profiles behave before the first subscription sync.
func (r *UserRepository) GetSubscriptionTier(ctx context.Context, subject string) (string, error) {
	var user models.User
	err := r.db.DB.WithContext(ctx).
		Select("subscription_tier").
		Where("id = ?", subject).
		First(&user).Error

	if err == gorm.ErrRecordNotFound {
		return "free", nil
	}
	if err != nil {
		return "", err
	}

	if user.SubscriptionTier == "" {
		return "free", nil
	}

	return user.SubscriptionTier, nil
}

func (r *UserRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *UserRepository) IncrementSessions(ctx context.Context, id string) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("total_sessions", gorm.Expr("total_sessions + 1")).Error
}
