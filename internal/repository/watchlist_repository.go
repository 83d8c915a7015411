package repository

import (
	"context"

	"github.com/namanxajmera/stock-alerts/internal/entity"

	"gorm.io/gorm"
)

type WatchlistRepository interface {
	GetActiveWatchlist(ctx context.Context) ([]entity.WatchlistItem, error)
}

type watchlistRepository struct {
	db *gorm.DB
}

func NewWatchlistRepository(db *gorm.DB) WatchlistRepository {
	return &watchlistRepository{
		db: db,
	}
}

// GetActiveWatchlist returns every watchlist entry belonging to a user
// with notifications enabled.
func (r *watchlistRepository) GetActiveWatchlist(ctx context.Context) ([]entity.WatchlistItem, error) {
	var items []entity.WatchlistItem

	err := r.db.WithContext(ctx).
		Joins("JOIN users ON users.id = watchlist_items.user_id").
		Where("users.notification_enabled = ?", true).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}
