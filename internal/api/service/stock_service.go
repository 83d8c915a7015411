package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/namanxajmera/stock-alerts/internal/analysis"
	"github.com/namanxajmera/stock-alerts/internal/api/dto"
	"github.com/namanxajmera/stock-alerts/internal/entity"
	"github.com/namanxajmera/stock-alerts/internal/repository"
	"github.com/namanxajmera/stock-alerts/pkg/logger"
	"github.com/namanxajmera/stock-alerts/pkg/utils"

	"gorm.io/datatypes"
)

var (
	// ErrInvalidSymbol marks a malformed ticker from the caller.
	ErrInvalidSymbol = errors.New("invalid ticker symbol")

	// ErrInvalidPeriod marks an unknown display period.
	ErrInvalidPeriod = errors.New("invalid period, must be one of: 1y, 3y, 5y, max")
)

var symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// validPeriods are the display periods the interactive API accepts.
var validPeriods = map[string]bool{
	"1y":  true,
	"3y":  true,
	"5y":  true,
	"max": true,
}

// StockService serves cached or freshly computed metrics to interactive
// callers. The display period only filters what is returned; percentile
// bands always come from the full history.
type StockService interface {
	GetStockData(ctx context.Context, symbol, period string) (*dto.StockDataResponse, error)
	GetTradingStats(ctx context.Context, symbol, period string) (*analysis.StatsReport, error)
}

type stockService struct {
	log        *logger.Logger
	cacheRepo  repository.StockCacheRepository
	statsRepo  repository.TradingStatsRepository
	tiingoRepo repository.TiingoRepository
	cacheTTL   time.Duration
	statsTTL   time.Duration
}

func NewStockService(
	log *logger.Logger,
	cacheRepo repository.StockCacheRepository,
	statsRepo repository.TradingStatsRepository,
	tiingoRepo repository.TiingoRepository,
	cacheTTL, statsTTL time.Duration,
) StockService {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	if statsTTL <= 0 {
		statsTTL = time.Hour
	}
	return &stockService{
		log:        log,
		cacheRepo:  cacheRepo,
		statsRepo:  statsRepo,
		tiingoRepo: tiingoRepo,
		cacheTTL:   cacheTTL,
		statsTTL:   statsTTL,
	}
}

func validate(symbol, period string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(symbol) {
		return "", ErrInvalidSymbol
	}
	if !validPeriods[period] {
		return "", ErrInvalidPeriod
	}
	return symbol, nil
}

// GetStockData returns the annotated series for a symbol, serving from
// the persistent cache when fresh and fetching otherwise.
func (s *stockService) GetStockData(ctx context.Context, symbol, period string) (*dto.StockDataResponse, error) {
	symbol, err := validate(symbol, period)
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "Fetching stock data",
		logger.StringField("symbol", symbol),
		logger.StringField("period", period))

	cached, err := s.cacheRepo.GetFresh(ctx, symbol, s.cacheTTL)
	if err != nil {
		s.log.ErrorContext(ctx, "Cache read failed, fetching fresh data",
			logger.ErrorField(err), logger.StringField("symbol", symbol))
	}
	if cached != nil {
		payload, err := repository.DecodeCachePayload(cached.DataJSON)
		if err != nil {
			s.log.WarnContext(ctx, "Invalid cached payload, refetching",
				logger.ErrorField(err), logger.StringField("symbol", symbol))
		} else if len(payload.TimeSeries) > 0 {
			s.log.DebugContext(ctx, "Cache hit", logger.StringField("symbol", symbol))
			return filterByPeriod(symbol, period, payload), nil
		}
	}

	// Always fetch the full history so the cached percentile band covers
	// everything, not just the requested display window.
	series, err := s.tiingoRepo.FetchDailyPrices(ctx, symbol, "max")
	if err != nil {
		return nil, err
	}

	result, err := analysis.Compute(series)
	if err != nil {
		return nil, err
	}
	if !result.Sufficient() {
		return nil, analysis.ErrInsufficientData
	}

	payload := result.Payload(utils.TimeNowUTC())
	if err := s.cacheRepo.Upsert(ctx, symbol, result.CurrentPrice, result.CurrentMA200, payload); err != nil {
		s.log.ErrorContext(ctx, "Failed to update stock cache",
			logger.ErrorField(err), logger.StringField("symbol", symbol))
	}

	return filterByPeriod(symbol, period, &payload), nil
}

// GetTradingStats returns derived analytics for (symbol, period), with
// its own cache TTL independent of the raw series cache.
func (s *stockService) GetTradingStats(ctx context.Context, symbol, period string) (*analysis.StatsReport, error) {
	symbol, err := validate(symbol, period)
	if err != nil {
		return nil, err
	}

	cached, err := s.statsRepo.GetFresh(ctx, symbol, period, s.statsTTL)
	if err != nil {
		s.log.ErrorContext(ctx, "Stats cache read failed, recomputing",
			logger.ErrorField(err), logger.StringField("symbol", symbol))
	}
	if cached != nil {
		var report analysis.StatsReport
		if err := json.Unmarshal(cached.StatsJSON, &report); err == nil {
			s.log.DebugContext(ctx, "Trading stats cache hit",
				logger.StringField("symbol", symbol), logger.StringField("period", period))
			return &report, nil
		}
		s.log.WarnContext(ctx, "Invalid cached trading stats, recomputing",
			logger.StringField("symbol", symbol), logger.StringField("period", period))
	}

	stockData, err := s.GetStockData(ctx, symbol, period)
	if err != nil {
		return nil, err
	}

	report, err := analysis.TradingStats(symbol, period, statsInput(stockData))
	if err != nil {
		return nil, fmt.Errorf("failed to compute trading stats for %s/%s: %w", symbol, period, err)
	}

	statsJSON, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	if err := s.statsRepo.Upsert(ctx, symbol, period, datatypes.JSON(statsJSON)); err != nil {
		s.log.ErrorContext(ctx, "Failed to cache trading stats",
			logger.ErrorField(err), logger.StringField("symbol", symbol), logger.StringField("period", period))
	}

	return report, nil
}

// statsInput keeps prices and deviations aligned, dropping days where
// the moving average is still undefined.
func statsInput(data *dto.StockDataResponse) analysis.StatsInput {
	in := analysis.StatsInput{
		Dates:       data.Dates,
		Percentiles: data.Percentiles,
	}
	for i, d := range data.PctDiff {
		if d == nil || data.Prices[i] == nil {
			continue
		}
		in.Prices = append(in.Prices, *data.Prices[i])
		in.PctDiffs = append(in.PctDiffs, *d)
	}
	return in
}

// filterByPeriod projects a full cached payload onto the requested
// display window. Percentiles pass through untouched.
func filterByPeriod(symbol, period string, payload *entity.CachePayload) *dto.StockDataResponse {
	var cutoff string
	if period != "max" {
		years := int(period[0] - '0')
		cutoff = time.Now().UTC().AddDate(0, 0, -years*365).Format("2006-01-02")
	}

	dates := make([]string, 0, len(payload.TimeSeries))
	for date := range payload.TimeSeries {
		if cutoff != "" && date < cutoff {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)

	resp := &dto.StockDataResponse{
		Symbol:        symbol,
		Period:        period,
		Dates:         dates,
		Prices:        make([]*float64, len(dates)),
		MA200:         make([]*float64, len(dates)),
		PctDiff:       make([]*float64, len(dates)),
		Percentiles:   payload.Percentiles,
		PreviousClose: payload.PreviousClose,
	}
	for i, date := range dates {
		point := payload.TimeSeries[date]
		resp.Prices[i] = point.Price
		resp.MA200[i] = point.MA200
		resp.PctDiff[i] = point.PctDiff
	}
	return resp
}
