package repository

import (
	"context"

	"github.com/namanxajmera/stock-alerts/internal/entity"

	"gorm.io/gorm"
)

type AlertHistoryRepository interface {
	Create(ctx context.Context, record *entity.AlertHistory) error
}

type alertHistoryRepository struct {
	db *gorm.DB
}

func NewAlertHistoryRepository(db *gorm.DB) AlertHistoryRepository {
	return &alertHistoryRepository{
		db: db,
	}
}

// Create appends one alert history row. Rows are never updated.
func (r *alertHistoryRepository) Create(ctx context.Context, record *entity.AlertHistory) error {
	return r.db.WithContext(ctx).Create(record).Error
}
