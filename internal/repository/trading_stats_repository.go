package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/namanxajmera/stock-alerts/internal/entity"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TradingStatsRepository interface {
	GetFresh(ctx context.Context, symbol, period string, maxAge time.Duration) (*entity.TradingStatsCache, error)
	Upsert(ctx context.Context, symbol, period string, statsJSON datatypes.JSON) error
}

type tradingStatsRepository struct {
	db *gorm.DB
}

func NewTradingStatsRepository(db *gorm.DB) TradingStatsRepository {
	return &tradingStatsRepository{
		db: db,
	}
}

// GetFresh returns the cached stats for (symbol, period) only when
// younger than maxAge.
func (r *tradingStatsRepository) GetFresh(ctx context.Context, symbol, period string, maxAge time.Duration) (*entity.TradingStatsCache, error) {
	var record entity.TradingStatsCache

	cutoff := time.Now().UTC().Add(-maxAge)
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND period = ? AND last_updated > ?", strings.ToUpper(symbol), period, cutoff).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// Upsert replaces the whole stats document for (symbol, period).
func (r *tradingStatsRepository) Upsert(ctx context.Context, symbol, period string, statsJSON datatypes.JSON) error {
	record := entity.TradingStatsCache{
		Symbol:      strings.ToUpper(symbol),
		Period:      period,
		StatsJSON:   statsJSON,
		LastUpdated: time.Now().UTC(),
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"stats_json", "last_updated",
		}),
	}).Create(&record).Error
}
