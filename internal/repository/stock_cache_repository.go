package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/namanxajmera/stock-alerts/internal/entity"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrLegacyCachePayload marks a payload written by an older schema
// version. Callers treat it as a cache miss and refetch.
var ErrLegacyCachePayload = errors.New("cache payload uses a legacy schema")

type StockCacheRepository interface {
	GetFresh(ctx context.Context, symbol string, maxAge time.Duration) (*entity.StockCache, error)
	Upsert(ctx context.Context, symbol string, price float64, ma200 *float64, payload entity.CachePayload) error
}

type stockCacheRepository struct {
	db *gorm.DB
}

func NewStockCacheRepository(db *gorm.DB) StockCacheRepository {
	return &stockCacheRepository{
		db: db,
	}
}

// GetFresh returns the cached record only when it is younger than maxAge.
// A stale record is left in place and reported as a miss.
func (r *stockCacheRepository) GetFresh(ctx context.Context, symbol string, maxAge time.Duration) (*entity.StockCache, error) {
	var record entity.StockCache

	cutoff := time.Now().UTC().Add(-maxAge)
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND last_check > ?", strings.ToUpper(symbol), cutoff).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// Upsert replaces the whole cached record for a symbol. A write never
// merges with the previous payload, so readers only ever see a fully
// old or fully new state.
func (r *stockCacheRepository) Upsert(ctx context.Context, symbol string, price float64, ma200 *float64, payload entity.CachePayload) error {
	dataJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	record := entity.StockCache{
		Symbol:    strings.ToUpper(symbol),
		LastCheck: time.Now().UTC(),
		LastPrice: price,
		MA200:     ma200,
		DataJSON:  datatypes.JSON(dataJSON),
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"last_check", "last_price", "ma_200", "data_json",
		}),
	}).Create(&record).Error
}

// DecodeCachePayload parses a persisted payload at the storage boundary.
// Pre-versioned documents that already carry the p16/p84 band are
// grandfathered; anything else (including the old p5/p95 shape) is a
// legacy payload the caller treats as a miss.
func DecodeCachePayload(raw datatypes.JSON) (*entity.CachePayload, error) {
	var probe struct {
		SchemaVersion int                `json:"schema_version"`
		Percentiles   map[string]float64 `json:"percentiles"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	switch probe.SchemaVersion {
	case entity.CachePayloadSchemaVersion:
	case 0:
		_, hasP16 := probe.Percentiles["p16"]
		_, hasP84 := probe.Percentiles["p84"]
		if !hasP16 || !hasP84 {
			return nil, ErrLegacyCachePayload
		}
	default:
		return nil, ErrLegacyCachePayload
	}

	var payload entity.CachePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
