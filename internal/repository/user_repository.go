package repository

import (
	"context"
	"time"

	"github.com/namanxajmera/stock-alerts/internal/entity"

	"gorm.io/gorm"
)

type UserRepository interface {
	UpdateLastNotified(ctx context.Context, userID int64) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

// UpdateLastNotified stamps the user's last successful notification time.
func (r *userRepository) UpdateLastNotified(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Update("last_notified_at", time.Now().UTC()).Error
}
