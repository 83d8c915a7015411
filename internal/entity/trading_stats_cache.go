package entity

import (
	"time"

	"gorm.io/datatypes"
)

// TradingStatsCache holds derived analytics keyed by (symbol, period),
// with a freshness TTL independent of the raw stock cache.
type TradingStatsCache struct {
	Symbol      string         `gorm:"primaryKey" json:"symbol"`
	Period      string         `gorm:"primaryKey" json:"period"`
	StatsJSON   datatypes.JSON `gorm:"column:stats_json;type:jsonb" json:"stats_json"`
	LastUpdated time.Time      `gorm:"not null" json:"last_updated"`
}

func (TradingStatsCache) TableName() string {
	return "trading_stats_cache"
}
