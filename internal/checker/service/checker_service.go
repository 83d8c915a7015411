package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/namanxajmera/stock-alerts/internal/analysis"
	"github.com/namanxajmera/stock-alerts/internal/entity"
	"github.com/namanxajmera/stock-alerts/internal/repository"
	"github.com/namanxajmera/stock-alerts/pkg/common"
	"github.com/namanxajmera/stock-alerts/pkg/logger"
	"github.com/namanxajmera/stock-alerts/pkg/utils"

	redis "github.com/redis/go-redis/v9"
)

// ErrRunInProgress indicates another checker run currently holds the
// run lock. The scheduler must not overlap two runs.
var ErrRunInProgress = errors.New("a checker run is already in progress")

// validAlertDays is the weekday allow-list for alert runs, evaluated in
// UTC: Monday through Thursday plus Sunday. This is a business rule
// preserved literally, not an optimization.
var validAlertDays = map[time.Weekday]bool{
	time.Monday:    true,
	time.Tuesday:   true,
	time.Wednesday: true,
	time.Thursday:  true,
	time.Sunday:    true,
}

// Options tunes a checker run.
type Options struct {
	// CacheMaxAge gates the cache-first path per symbol.
	CacheMaxAge time.Duration
	// SymbolDelay is the politeness pause between symbols, independent
	// of the quota limiter.
	SymbolDelay time.Duration
	// RunLockTTL bounds how long a crashed run can hold the lock.
	RunLockTTL time.Duration
}

// RunSummary describes one completed (or gated) checker run.
type RunSummary struct {
	RunAt           time.Time `json:"run_at"`
	Weekday         string    `json:"weekday"`
	Skipped         bool      `json:"skipped"`
	SkipReason      string    `json:"skip_reason,omitempty"`
	WatchlistItems  int       `json:"watchlist_items"`
	Symbols         int       `json:"symbols"`
	CacheHits       int       `json:"cache_hits"`
	Fetches         int       `json:"fetches"`
	SymbolErrors    int       `json:"symbol_errors"`
	AlertsTriggered int       `json:"alerts_triggered"`
	UsersNotified   int       `json:"users_notified"`
	SendFailures    int       `json:"send_failures"`
	Duration        string    `json:"duration"`
}

// watcher is one interested (user, ownership) pair for a symbol.
type watcher struct {
	userID  int64
	isOwned bool
}

// CheckerService walks every watched symbol once per cycle, evaluates
// the deviation band and dispatches batched alerts.
type CheckerService struct {
	log           *logger.Logger
	watchlistRepo repository.WatchlistRepository
	userRepo      repository.UserRepository
	cacheRepo     repository.StockCacheRepository
	historyRepo   repository.AlertHistoryRepository
	tiingoRepo    repository.TiingoRepository
	notifier      NotifierService
	redisClient   *redis.Client
	opts          Options

	// now is swappable in tests; runs evaluate the day gate in UTC.
	now func() time.Time
}

func NewCheckerService(
	log *logger.Logger,
	watchlistRepo repository.WatchlistRepository,
	userRepo repository.UserRepository,
	cacheRepo repository.StockCacheRepository,
	historyRepo repository.AlertHistoryRepository,
	tiingoRepo repository.TiingoRepository,
	notifier NotifierService,
	redisClient *redis.Client,
	opts Options,
) *CheckerService {
	if opts.CacheMaxAge <= 0 {
		opts.CacheMaxAge = time.Hour
	}
	if opts.SymbolDelay <= 0 {
		opts.SymbolDelay = 500 * time.Millisecond
	}
	if opts.RunLockTTL <= 0 {
		opts.RunLockTTL = 30 * time.Minute
	}
	return &CheckerService{
		log:           log,
		watchlistRepo: watchlistRepo,
		userRepo:      userRepo,
		cacheRepo:     cacheRepo,
		historyRepo:   historyRepo,
		tiingoRepo:    tiingoRepo,
		notifier:      notifier,
		redisClient:   redisClient,
		opts:          opts,
		now:           utils.TimeNowUTC,
	}
}

// Run executes one check cycle: gate on the alert-day rule, walk symbols
// sequentially, accumulate per-user alerts and dispatch one batched
// notification per user. Per-symbol failures never abort the run.
func (s *CheckerService) Run(ctx context.Context) (*RunSummary, error) {
	started := time.Now()
	now := s.now()
	summary := &RunSummary{
		RunAt:   now,
		Weekday: now.Weekday().String(),
	}

	unlock, err := s.acquireRunLock(ctx, now)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !validAlertDays[now.Weekday()] {
		summary.Skipped = true
		summary.SkipReason = "alerts only run Monday-Thursday and Sunday (UTC)"
		summary.Duration = time.Since(started).String()
		s.log.InfoContext(ctx, "Skipping watchlist check",
			logger.StringField("weekday", summary.Weekday),
			logger.StringField("reason", summary.SkipReason))
		s.storeSummary(ctx, summary)
		return summary, nil
	}

	s.log.InfoContext(ctx, "Starting watchlist check")

	items, err := s.watchlistRepo.GetActiveWatchlist(ctx)
	if err != nil {
		return nil, err
	}
	summary.WatchlistItems = len(items)

	// Group watchers by symbol so every symbol is fetched and evaluated
	// at most once per cycle, no matter how many users watch it.
	watchersBySymbol := make(map[string][]watcher)
	for _, item := range items {
		symbol := strings.ToUpper(item.Symbol)
		watchersBySymbol[symbol] = append(watchersBySymbol[symbol], watcher{
			userID:  item.UserID,
			isOwned: item.IsOwned,
		})
	}
	summary.Symbols = len(watchersBySymbol)

	symbols := make([]string, 0, len(watchersBySymbol))
	for symbol := range watchersBySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	s.log.InfoContext(ctx, "Loaded active watchlist",
		logger.IntField("items", len(items)),
		logger.IntField("symbols", len(symbols)))

	pending := make(map[int64][]Alert)
	for _, symbol := range symbols {
		alert, err := s.processSymbol(ctx, symbol, summary)
		if err != nil {
			summary.SymbolErrors++
			s.log.ErrorContext(ctx, "Failed to process symbol, skipping this cycle",
				logger.ErrorField(err),
				logger.StringField("symbol", symbol))
		} else if alert != nil {
			summary.AlertsTriggered++
			for _, w := range watchersBySymbol[symbol] {
				tagged := *alert
				tagged.IsOwned = w.isOwned
				pending[w.userID] = append(pending[w.userID], tagged)
			}
		}

		if err := s.sleepBetweenSymbols(ctx); err != nil {
			s.log.WarnContext(ctx, "Run interrupted between symbols", logger.ErrorField(err))
			break
		}
	}

	s.dispatchBatches(ctx, pending, summary)

	summary.Duration = time.Since(started).String()
	s.storeSummary(ctx, summary)
	s.log.InfoContext(ctx, "Watchlist check completed",
		logger.IntField("symbols", summary.Symbols),
		logger.IntField("cache_hits", summary.CacheHits),
		logger.IntField("fetches", summary.Fetches),
		logger.IntField("alerts_triggered", summary.AlertsTriggered),
		logger.IntField("users_notified", summary.UsersNotified),
		logger.StringField("duration", summary.Duration))

	return summary, nil
}

// acquireRunLock takes the shared run lock. Redis being down fails open:
// an occasional overlapping run is preferable to no runs at all.
func (s *CheckerService) acquireRunLock(ctx context.Context, now time.Time) (func(), error) {
	if s.redisClient == nil {
		return func() {}, nil
	}

	acquired, err := s.redisClient.SetNX(ctx, common.RedisKeyCheckerRunLock, now.Format(time.RFC3339), s.opts.RunLockTTL).Result()
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to acquire run lock, proceeding without it", logger.ErrorField(err))
		return func() {}, nil
	}
	if !acquired {
		return nil, ErrRunInProgress
	}

	return func() {
		if err := s.redisClient.Del(context.WithoutCancel(ctx), common.RedisKeyCheckerRunLock).Err(); err != nil {
			s.log.Error("Failed to release run lock", logger.ErrorField(err))
		}
	}, nil
}

// processSymbol evaluates one symbol, cache first. It returns a non-nil
// Alert when the current deviation sits in the fear or greed zone.
func (s *CheckerService) processSymbol(ctx context.Context, symbol string, summary *RunSummary) (*Alert, error) {
	cached, err := s.cacheRepo.GetFresh(ctx, symbol, s.opts.CacheMaxAge)
	if err != nil {
		// Cache store trouble is not fatal; fall through to a fresh fetch.
		s.log.ErrorContext(ctx, "Cache read failed, fetching fresh data",
			logger.ErrorField(err), logger.StringField("symbol", symbol))
	}
	if cached != nil {
		if alert, ok := s.evaluateCached(ctx, symbol, cached); ok {
			summary.CacheHits++
			return alert, nil
		}
	}

	series, err := s.tiingoRepo.FetchDailyPrices(ctx, symbol, "max")
	if err != nil {
		return nil, err
	}
	summary.Fetches++

	result, err := analysis.Compute(series)
	if err != nil {
		return nil, err
	}

	// Upsert unconditionally so the raw series is available to future
	// cycles even when today's data is too thin for alerting.
	payload := result.Payload(utils.TimeNowUTC())
	if err := s.cacheRepo.Upsert(ctx, symbol, result.CurrentPrice, result.CurrentMA200, payload); err != nil {
		s.log.ErrorContext(ctx, "Failed to update stock cache",
			logger.ErrorField(err), logger.StringField("symbol", symbol))
	}

	if !result.Sufficient() {
		s.log.WarnContext(ctx, "Not enough history for percentile analysis",
			logger.StringField("symbol", symbol),
			logger.IntField("valid_points", result.ValidPoints))
		return nil, nil
	}
	if result.CurrentPctDiff == nil {
		return nil, nil
	}

	return s.buildAlert(ctx, symbol, result.CurrentPrice, *result.CurrentPctDiff, result.Percentiles), nil
}

// evaluateCached re-derives the zone from a cached record without any
// network call. Returns ok=false when the payload is unusable, in which
// case the caller refetches.
func (s *CheckerService) evaluateCached(ctx context.Context, symbol string, cached *entity.StockCache) (*Alert, bool) {
	payload, err := repository.DecodeCachePayload(cached.DataJSON)
	if err != nil {
		s.log.WarnContext(ctx, "Invalid cached payload, refetching",
			logger.ErrorField(err), logger.StringField("symbol", symbol))
		return nil, false
	}
	if payload.MA200 == nil {
		return nil, false
	}

	// The checker caches thin series too, so a hit must re-check that the
	// band rests on enough history before alerting off it.
	validPoints := 0
	for _, point := range payload.TimeSeries {
		if point.PctDiff != nil {
			validPoints++
		}
	}
	if validPoints < analysis.MinDataPoints {
		s.log.WarnContext(ctx, "Cached series too thin for percentile analysis",
			logger.StringField("symbol", symbol),
			logger.IntField("valid_points", validPoints))
		return nil, true
	}

	s.log.DebugContext(ctx, "Using cached data", logger.StringField("symbol", symbol))

	pctDiff := analysis.PctDeviation(cached.LastPrice, *payload.MA200)
	return s.buildAlert(ctx, symbol, cached.LastPrice, pctDiff, payload.Percentiles), true
}

func (s *CheckerService) buildAlert(ctx context.Context, symbol string, price, pctDiff float64, band entity.Percentiles) *Alert {
	if analysis.ZoneOf(pctDiff, band.P16, band.P84) == analysis.ZoneNeutral {
		return nil
	}

	s.log.InfoContext(ctx, "Alert triggered",
		logger.StringField("symbol", symbol),
		logger.Float64Field("pct_diff", pctDiff),
		logger.Float64Field("p16", band.P16),
		logger.Float64Field("p84", band.P84))

	return &Alert{
		Symbol:  symbol,
		Price:   price,
		PctDiff: pctDiff,
		P16:     band.P16,
		P84:     band.P84,
	}
}

// dispatchBatches sends exactly one notification per user with pending
// alerts and writes one history row per (user, symbol) regardless of
// delivery outcome.
func (s *CheckerService) dispatchBatches(ctx context.Context, pending map[int64][]Alert, summary *RunSummary) {
	userIDs := make([]int64, 0, len(pending))
	for userID := range pending {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	for _, userID := range userIDs {
		alerts := pending[userID]

		if ctx.Err() != nil {
			s.recordHistory(ctx, userID, alerts, entity.AlertStatusSkipped, utils.ToPointer("run cancelled before dispatch"))
			continue
		}

		sent := s.notifier.SendBatchedAlerts(ctx, userID, alerts)
		if sent {
			s.recordHistory(ctx, userID, alerts, entity.AlertStatusSent, nil)
			if err := s.userRepo.UpdateLastNotified(ctx, userID); err != nil {
				s.log.ErrorContext(ctx, "Failed to update last notified time",
					logger.ErrorField(err), logger.Field("user_id", userID))
			}
			summary.UsersNotified++
		} else {
			s.recordHistory(ctx, userID, alerts, entity.AlertStatusFailed, utils.ToPointer("failed to send batched notification"))
			summary.SendFailures++
		}
	}
}

func (s *CheckerService) recordHistory(ctx context.Context, userID int64, alerts []Alert, status entity.AlertStatus, errMsg *string) {
	for _, a := range alerts {
		record := &entity.AlertHistory{
			UserID:       userID,
			Symbol:       a.Symbol,
			Price:        a.Price,
			Percentile:   a.PctDiff,
			Status:       status,
			ErrorMessage: errMsg,
		}
		if err := s.historyRepo.Create(ctx, record); err != nil {
			s.log.ErrorContext(ctx, "Failed to write alert history",
				logger.ErrorField(err),
				logger.Field("user_id", userID),
				logger.StringField("symbol", a.Symbol))
		}
	}
}

func (s *CheckerService) sleepBetweenSymbols(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.opts.SymbolDelay):
		return nil
	}
}

// storeSummary publishes the run summary for the status endpoint. Best
// effort only.
func (s *CheckerService) storeSummary(ctx context.Context, summary *RunSummary) {
	if s.redisClient == nil {
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.redisClient.Set(context.WithoutCancel(ctx), common.RedisKeyCheckerLastRun, data, 48*time.Hour).Err(); err != nil {
		s.log.Error("Failed to store run summary", logger.ErrorField(err))
	}
}
