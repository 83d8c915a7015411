package entity

import (
	"time"

	"gorm.io/datatypes"
)

// CachePayloadSchemaVersion is the current shape of the stock cache JSON
// payload. Version 1 payloads used 5th/95th percentile keys and are
// treated as cache misses on read.
const CachePayloadSchemaVersion = 2

type StockCache struct {
	Symbol    string    `gorm:"primaryKey" json:"symbol"`
	LastCheck time.Time `gorm:"not null" json:"last_check"`
	LastPrice float64   `gorm:"not null" json:"last_price"`
	MA200     *float64  `gorm:"column:ma_200" json:"ma_200"`
	DataJSON  datatypes.JSON `gorm:"column:data_json;type:jsonb" json:"data_json"`
}

func (StockCache) TableName() string {
	return "stock_cache"
}

// Percentiles is the historical deviation band. P16 <= P84 always holds
// for any band computed from at least the minimum number of points.
type Percentiles struct {
	P16 float64 `json:"p16"`
	P84 float64 `json:"p84"`
}

// TimeSeriesPoint is one annotated day in the cached series. Fields are
// nil where the 200-day window has not filled yet.
type TimeSeriesPoint struct {
	Price   *float64 `json:"price"`
	MA200   *float64 `json:"ma_200"`
	PctDiff *float64 `json:"pct_diff"`
}

// CachePayload is the JSON document stored in stock_cache.data_json.
// The shape is stable for forward-read compatibility; dates are keyed
// as YYYY-MM-DD.
type CachePayload struct {
	SchemaVersion int                        `json:"schema_version"`
	Price         float64                    `json:"price"`
	MA200         *float64                   `json:"ma_200"`
	Percentiles   Percentiles                `json:"percentiles"`
	PreviousClose *float64                   `json:"previous_close"`
	TimeSeries    map[string]TimeSeriesPoint `json:"time_series"`
	LastUpdated   time.Time                  `json:"last_updated"`
}
