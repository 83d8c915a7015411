package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/namanxajmera/stock-alerts/internal/entity"
	"github.com/namanxajmera/stock-alerts/pkg/common"
	pkgconfig "github.com/namanxajmera/stock-alerts/pkg/config"
	"github.com/namanxajmera/stock-alerts/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

var (
	// ErrSymbolNotFound marks a permanent "no data for symbol" result.
	// It is never retried.
	ErrSymbolNotFound = errors.New("no data for symbol")

	// ErrRateLimited marks an exhausted upstream quota, either the local
	// safety-margined one or a 429 from the vendor after all retries.
	ErrRateLimited = errors.New("upstream rate limit reached")
)

// periodDays maps a display period to the fetched date range.
var periodDays = map[string]int{
	"1y": 365,
	"2y": 730,
	"3y": 1095,
	"5y": 1825,
	"max": 3650,
}

// QuotaLimiter gates upstream calls on the shared request-log quota.
type QuotaLimiter interface {
	CanProceed(ctx context.Context, apiName string) (bool, string)
	Record(ctx context.Context, apiName string, success bool)
}

type TiingoRepository interface {
	FetchDailyPrices(ctx context.Context, symbol, period string) (entity.PriceSeries, error)
}

type tiingoRepository struct {
	cfg            *pkgconfig.Tiingo
	log            *logger.Logger
	httpClient     *http.Client
	requestLimiter *rate.Limiter
	quota          QuotaLimiter
	notFoundCache  *gocache.Cache
	maxRetries     int

	// backoff waits between retryable attempts; swappable in tests.
	backoff func(ctx context.Context, attempt int) error
}

func NewTiingoRepository(cfg *pkgconfig.Tiingo, log *logger.Logger, quota QuotaLimiter) (TiingoRepository, error) {
	if cfg.APIToken == "" {
		return nil, errors.New("tiingo api token not configured")
	}

	timeout := 30 * time.Second
	if cfg.RequestTimeout != "" {
		parsed, err := time.ParseDuration(cfg.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid tiingo request_timeout: %w", err)
		}
		timeout = parsed
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	requestDelay := 500 * time.Millisecond
	if cfg.RequestDelay != "" {
		parsed, err := time.ParseDuration(cfg.RequestDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid tiingo request_delay: %w", err)
		}
		requestDelay = parsed
	}

	return &tiingoRepository{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		requestLimiter: rate.NewLimiter(rate.Every(requestDelay), 1),
		quota:          quota,
		notFoundCache:  gocache.New(time.Hour, 2*time.Hour),
		maxRetries:     maxRetries,
		backoff:        sleepBackoff,
	}, nil
}

// tiingoDailyBar is one raw bar from the Tiingo daily prices endpoint.
// Only the split/dividend-adjusted close feeds indicator math.
type tiingoDailyBar struct {
	Date     string   `json:"date"`
	Close    float64  `json:"close"`
	AdjClose *float64 `json:"adjClose"`
}

// FetchDailyPrices fetches the daily adjusted price history for a symbol
// over the given period, retrying transient failures with exponential
// backoff plus jitter.
func (r *tiingoRepository) FetchDailyPrices(ctx context.Context, symbol, period string) (entity.PriceSeries, error) {
	if _, found := r.notFoundCache.Get(symbol); found {
		return nil, ErrSymbolNotFound
	}

	days, ok := periodDays[period]
	if !ok {
		days = periodDays["max"]
	}
	endDate := time.Now().UTC()
	startDate := endDate.AddDate(0, 0, -days)

	query := url.Values{}
	query.Set("startDate", startDate.Format("2006-01-02"))
	query.Set("endDate", endDate.Format("2006-01-02"))
	requestURL := fmt.Sprintf("%s/tiingo/daily/%s/prices?%s", r.cfg.BaseURL, url.PathEscape(symbol), query.Encode())

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if allowed, reason := r.quota.CanProceed(ctx, common.APINameTiingo); !allowed {
			r.log.WarnContext(ctx, "Quota check blocked upstream call", logger.StringField("symbol", symbol), logger.StringField("reason", reason))
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, reason)
		}

		if err := r.requestLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		r.log.DebugContext(ctx, "Fetching Tiingo data",
			logger.StringField("symbol", symbol),
			logger.IntField("attempt", attempt+1),
			logger.IntField("max_retries", r.maxRetries))

		body, retryable, err := r.sendRequest(ctx, requestURL, symbol)
		if err == nil {
			return r.parseBars(ctx, symbol, body)
		}

		lastErr = err
		if !retryable {
			return nil, err
		}
		if attempt == r.maxRetries {
			break
		}
		if err := r.backoff(ctx, attempt); err != nil {
			return nil, err
		}
	}

	r.log.ErrorContext(ctx, "Exhausted retries fetching Tiingo data",
		logger.StringField("symbol", symbol),
		logger.IntField("max_retries", r.maxRetries),
		logger.ErrorField(lastErr))
	return nil, lastErr
}

// sendRequest performs one HTTP attempt and classifies the outcome.
// The second return value reports whether the failure is retryable.
func (r *tiingoRepository) sendRequest(ctx context.Context, requestURL, symbol string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+r.cfg.APIToken)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		// Network errors and timeouts are transient.
		r.quota.Record(ctx, common.APINameTiingo, false)
		return nil, true, fmt.Errorf("request to tiingo failed: %w", err)
	}
	defer resp.Body.Close()

	r.quota.Record(ctx, common.APINameTiingo, resp.StatusCode == http.StatusOK)

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, fmt.Errorf("failed to read tiingo response: %w", err)
		}
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("%w: received 429 for %s", ErrRateLimited, symbol)
	case resp.StatusCode == http.StatusNotFound:
		r.notFoundCache.SetDefault(symbol, true)
		return nil, false, ErrSymbolNotFound
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("tiingo server error %d for %s", resp.StatusCode, symbol)
	default:
		return nil, false, fmt.Errorf("tiingo client error %d for %s", resp.StatusCode, symbol)
	}
}

// parseBars turns raw bars into an ascending, duplicate-free series of
// adjusted closes.
func (r *tiingoRepository) parseBars(ctx context.Context, symbol string, body []byte) (entity.PriceSeries, error) {
	var bars []tiingoDailyBar
	if err := json.Unmarshal(body, &bars); err != nil {
		return nil, fmt.Errorf("failed to decode tiingo response for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		r.log.WarnContext(ctx, "No data available for symbol", logger.StringField("symbol", symbol))
		return nil, ErrSymbolNotFound
	}

	byDate := make(map[time.Time]float64, len(bars))
	for _, bar := range bars {
		date, err := time.Parse(time.RFC3339, bar.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid bar date %q for %s: %w", bar.Date, symbol, err)
		}
		day := date.UTC().Truncate(24 * time.Hour)

		close := bar.Close
		if bar.AdjClose != nil {
			close = *bar.AdjClose
		}
		byDate[day] = close
	}

	series := make(entity.PriceSeries, 0, len(byDate))
	for day, close := range byDate {
		series = append(series, entity.PricePoint{Date: day, Close: close})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})

	r.log.DebugContext(ctx, "Processed Tiingo data",
		logger.StringField("symbol", symbol),
		logger.IntField("data_points", len(series)))
	return series, nil
}

// backoffDelay doubles per attempt (1s, 2s, 4s, ...) plus up to one
// second of jitter, so retries across symbols never synchronise. The
// jitter bound is below the doubling step, so delays always grow.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt))*time.Second +
		time.Duration(rand.Float64()*float64(time.Second))
}

func sleepBackoff(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoffDelay(attempt)):
		return nil
	}
}
