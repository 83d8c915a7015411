package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/namanxajmera/stock-alerts/internal/entity"
	"github.com/namanxajmera/stock-alerts/pkg/logger"
	"github.com/namanxajmera/stock-alerts/pkg/utils"
)

type fakeWatchlistRepo struct {
	items []entity.WatchlistItem
	err   error
}

func (f *fakeWatchlistRepo) GetActiveWatchlist(ctx context.Context) ([]entity.WatchlistItem, error) {
	return f.items, f.err
}

type fakeUserRepo struct {
	notified []int64
}

func (f *fakeUserRepo) UpdateLastNotified(ctx context.Context, userID int64) error {
	f.notified = append(f.notified, userID)
	return nil
}

type fakeCacheRepo struct {
	records map[string]*entity.StockCache
	upserts []string
}

func (f *fakeCacheRepo) GetFresh(ctx context.Context, symbol string, maxAge time.Duration) (*entity.StockCache, error) {
	return f.records[symbol], nil
}

func (f *fakeCacheRepo) Upsert(ctx context.Context, symbol string, price float64, ma200 *float64, payload entity.CachePayload) error {
	f.upserts = append(f.upserts, symbol)
	return nil
}

type fakeHistoryRepo struct {
	records []entity.AlertHistory
}

func (f *fakeHistoryRepo) Create(ctx context.Context, record *entity.AlertHistory) error {
	f.records = append(f.records, *record)
	return nil
}

type fakeTiingoRepo struct {
	series  map[string]entity.PriceSeries
	errs    map[string]error
	fetched []string
}

func (f *fakeTiingoRepo) FetchDailyPrices(ctx context.Context, symbol, period string) (entity.PriceSeries, error) {
	f.fetched = append(f.fetched, symbol)
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.series[symbol], nil
}

type fakeNotifier struct {
	sent map[int64][]Alert
	fail bool
}

func (f *fakeNotifier) SendBatchedAlerts(ctx context.Context, userID int64, alerts []Alert) bool {
	if f.sent == nil {
		f.sent = make(map[int64][]Alert)
	}
	f.sent[userID] = append(f.sent[userID], alerts...)
	return !f.fail
}

// fearSeries is long enough for percentile analysis and ends with a
// price far below its 200-day average.
func fearSeries() entity.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(entity.PriceSeries, 300)
	for i := range series {
		close := 100.0
		if i == 299 {
			close = 70.0
		}
		series[i] = entity.PricePoint{Date: start.AddDate(0, 0, i), Close: close}
	}
	return series
}

func neutralSeries() entity.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(entity.PriceSeries, 300)
	for i := range series {
		series[i] = entity.PricePoint{Date: start.AddDate(0, 0, i), Close: 100}
	}
	return series
}

type testDeps struct {
	watchlist *fakeWatchlistRepo
	users     *fakeUserRepo
	cache     *fakeCacheRepo
	history   *fakeHistoryRepo
	tiingo    *fakeTiingoRepo
	notifier  *fakeNotifier
}

func newTestChecker(deps *testDeps) *CheckerService {
	svc := NewCheckerService(
		logger.NewNop(),
		deps.watchlist,
		deps.users,
		deps.cache,
		deps.history,
		deps.tiingo,
		deps.notifier,
		nil,
		Options{SymbolDelay: time.Millisecond},
	)
	// pin the clock to a Monday so the day gate passes
	svc.now = func() time.Time {
		return time.Date(2025, 6, 2, 22, 30, 0, 0, time.UTC)
	}
	return svc
}

func defaultDeps() *testDeps {
	return &testDeps{
		watchlist: &fakeWatchlistRepo{},
		users:     &fakeUserRepo{},
		cache:     &fakeCacheRepo{records: map[string]*entity.StockCache{}},
		history:   &fakeHistoryRepo{},
		tiingo:    &fakeTiingoRepo{series: map[string]entity.PriceSeries{}, errs: map[string]error{}},
		notifier:  &fakeNotifier{},
	}
}

func TestRunSkipsOutsideAlertDays(t *testing.T) {
	deps := defaultDeps()
	deps.watchlist.items = []entity.WatchlistItem{{UserID: 1, Symbol: "AAPL"}}
	deps.tiingo.series["AAPL"] = fearSeries()

	svc := newTestChecker(deps)
	svc.now = func() time.Time {
		// a Friday
		return time.Date(2025, 6, 6, 22, 30, 0, 0, time.UTC)
	}

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.Skipped)
	assert.Equal(t, "Friday", summary.Weekday)
	assert.Empty(t, deps.tiingo.fetched)
	assert.Empty(t, deps.notifier.sent)
	assert.Empty(t, deps.history.records)
}

func TestRunFetchesEachSymbolOnce(t *testing.T) {
	deps := defaultDeps()
	deps.watchlist.items = []entity.WatchlistItem{
		{UserID: 1, Symbol: "AAPL", IsOwned: true},
		{UserID: 2, Symbol: "aapl", IsOwned: false},
	}
	deps.tiingo.series["AAPL"] = fearSeries()

	svc := newTestChecker(deps)
	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	// two watchers, one symbol, one fetch, one cache write
	assert.Equal(t, 2, summary.WatchlistItems)
	assert.Equal(t, 1, summary.Symbols)
	assert.Equal(t, []string{"AAPL"}, deps.tiingo.fetched)
	assert.Equal(t, []string{"AAPL"}, deps.cache.upserts)

	assert.Equal(t, 1, summary.AlertsTriggered)
	assert.Equal(t, 2, summary.UsersNotified)

	require.Len(t, deps.notifier.sent[1], 1)
	assert.True(t, deps.notifier.sent[1][0].IsOwned)
	require.Len(t, deps.notifier.sent[2], 1)
	assert.False(t, deps.notifier.sent[2][0].IsOwned)

	require.Len(t, deps.history.records, 2)
	for _, rec := range deps.history.records {
		assert.Equal(t, "AAPL", rec.Symbol)
		assert.Equal(t, entity.AlertStatusSent, rec.Status)
		assert.Nil(t, rec.ErrorMessage)
	}
	assert.ElementsMatch(t, []int64{1, 2}, deps.users.notified)
}

func TestRunBatchesAlertsPerUser(t *testing.T) {
	deps := defaultDeps()
	deps.watchlist.items = []entity.WatchlistItem{
		{UserID: 1, Symbol: "AAPL"},
		{UserID: 1, Symbol: "MSFT"},
	}
	deps.tiingo.series["AAPL"] = fearSeries()
	deps.tiingo.series["MSFT"] = fearSeries()

	svc := newTestChecker(deps)
	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.AlertsTriggered)
	assert.Equal(t, 1, summary.UsersNotified)
	// both symbols arrive in one batched message
	require.Len(t, deps.notifier.sent[1], 2)
	assert.Len(t, deps.history.records, 2)
}

// cachedPayload builds a schema-current payload whose time series holds
// n days with defined deviations.
func cachedPayload(t *testing.T, n int) datatypes.JSON {
	t.Helper()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	timeSeries := make(map[string]entity.TimeSeriesPoint, n)
	for i := 0; i < n; i++ {
		timeSeries[start.AddDate(0, 0, i).Format("2006-01-02")] = entity.TimeSeriesPoint{
			Price:   utils.ToPointer(100.0),
			MA200:   utils.ToPointer(100.0),
			PctDiff: utils.ToPointer(0.0),
		}
	}
	raw, err := json.Marshal(entity.CachePayload{
		SchemaVersion: entity.CachePayloadSchemaVersion,
		Price:         70,
		MA200:         utils.ToPointer(100.0),
		Percentiles:   entity.Percentiles{P16: -5, P84: 8},
		TimeSeries:    timeSeries,
	})
	require.NoError(t, err)
	return raw
}

func TestRunUsesFreshCacheWithoutFetching(t *testing.T) {
	deps := defaultDeps()
	deps.watchlist.items = []entity.WatchlistItem{{UserID: 1, Symbol: "AAPL"}}
	deps.cache.records["AAPL"] = &entity.StockCache{
		Symbol:    "AAPL",
		LastPrice: 70,
		DataJSON:  cachedPayload(t, 25),
	}

	svc := newTestChecker(deps)
	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.CacheHits)
	assert.Equal(t, 0, summary.Fetches)
	assert.Empty(t, deps.tiingo.fetched)
	assert.Equal(t, 1, summary.AlertsTriggered)
}

func TestRunThinCachedSeriesNeverAlerts(t *testing.T) {
	deps := defaultDeps()
	deps.watchlist.items = []entity.WatchlistItem{{UserID: 1, Symbol: "NEWCO"}}
	// a fear-range price over a band derived from too few points
	deps.cache.records["NEWCO"] = &entity.StockCache{
		Symbol:    "NEWCO",
		LastPrice: 70,
		DataJSON:  cachedPayload(t, 5),
	}

	svc := newTestChecker(deps)
	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.CacheHits)
	assert.Equal(t, 0, summary.AlertsTriggered)
	assert.Empty(t, deps.tiingo.fetched)
	assert.Empty(t, deps.notifier.sent)
}

func TestRunRefetchesOnLegacyCachePayload(t *testing.T) {
	deps := defaultDeps()
	deps.watchlist.items = []entity.WatchlistItem{{UserID: 1, Symbol: "AAPL"}}
	deps.cache.records["AAPL"] = &entity.StockCache{
		Symbol:    "AAPL",
		LastPrice: 70,
		DataJSON:  datatypes.JSON(`{"price": 70, "percentiles": {"p5": -8.0, "p95": 9.0}}`),
	}
	deps.tiingo.series["AAPL"] = fearSeries()

	svc := newTestChecker(deps)
	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.CacheHits)
	assert.Equal(t, 1, summary.Fetches)
	assert.Equal(t, []string{"AAPL"}, deps.tiingo.fetched)
}

func TestRunNeutralZoneProducesNoAlert(t *testing.T) {
	deps := defaultDeps()
	deps.watchlist.items = []entity.WatchlistItem{{UserID: 1, Symbol: "AAPL"}}
	deps.tiingo.series["AAPL"] = neutralSeries()

	svc := newTestChecker(deps)
	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.AlertsTriggered)
	assert.Empty(t, deps.notifier.sent)
	assert.Empty(t, deps.history.records)
	// the computed series is still cached for future cycles
	assert.Equal(t, []string{"AAPL"}, deps.cache.upserts)
}

func TestRunRecordsFailedDeliveries(t *testing.T) {
	deps := defaultDeps()
	deps.watchlist.items = []entity.WatchlistItem{{UserID: 1, Symbol: "AAPL"}}
	deps.tiingo.series["AAPL"] = fearSeries()
	deps.notifier.fail = true

	svc := newTestChecker(deps)
	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.UsersNotified)
	assert.Equal(t, 1, summary.SendFailures)
	assert.Empty(t, deps.users.notified)

	require.Len(t, deps.history.records, 1)
	rec := deps.history.records[0]
	assert.Equal(t, entity.AlertStatusFailed, rec.Status)
	require.NotNil(t, rec.ErrorMessage)
}

func TestRunIsolatesPerSymbolFailures(t *testing.T) {
	deps := defaultDeps()
	deps.watchlist.items = []entity.WatchlistItem{
		{UserID: 1, Symbol: "BAD"},
		{UserID: 1, Symbol: "GOOD"},
	}
	deps.tiingo.errs["BAD"] = errors.New("upstream exploded")
	deps.tiingo.series["GOOD"] = fearSeries()

	svc := newTestChecker(deps)
	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SymbolErrors)
	assert.Equal(t, 1, summary.AlertsTriggered)
	require.Len(t, deps.notifier.sent[1], 1)
	assert.Equal(t, "GOOD", deps.notifier.sent[1][0].Symbol)
}

func TestRunWatchlistErrorAborts(t *testing.T) {
	deps := defaultDeps()
	deps.watchlist.err = errors.New("db down")

	svc := newTestChecker(deps)
	_, err := svc.Run(context.Background())
	assert.Error(t, err)
}
