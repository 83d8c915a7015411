package repository

import (
	"context"
	"time"

	"github.com/namanxajmera/stock-alerts/internal/entity"

	"gorm.io/gorm"
)

type APIRequestRepository interface {
	Record(ctx context.Context, apiName string, success bool) error
	Count(ctx context.Context, apiName string, start, end time.Time) (int64, error)
}

type apiRequestRepository struct {
	db *gorm.DB
}

func NewAPIRequestRepository(db *gorm.DB) APIRequestRepository {
	return &apiRequestRepository{
		db: db,
	}
}

// Record logs one upstream API call.
func (r *apiRequestRepository) Record(ctx context.Context, apiName string, success bool) error {
	return r.db.WithContext(ctx).Create(&entity.APIRequest{
		APIName:     apiName,
		Success:     success,
		RequestedAt: time.Now().UTC(),
	}).Error
}

// Count returns the number of calls logged for apiName inside (start, end].
func (r *apiRequestRepository) Count(ctx context.Context, apiName string, start, end time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.APIRequest{}).
		Where("api_name = ? AND requested_at > ? AND requested_at <= ?", apiName, start, end).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
