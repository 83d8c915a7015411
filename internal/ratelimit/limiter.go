package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/namanxajmera/stock-alerts/pkg/logger"
)

// Default safe limits: the Tiingo free plan allows 50 requests/hour and
// 1000/day; a small margin avoids brushing the hard quota.
const (
	DefaultSafeHourlyLimit = 48
	DefaultSafeDailyLimit  = 980
)

// RequestStore is the shared persistent request log behind the limiter.
// Every worker writes to and reads from the same store, so concurrent
// callers see a consistent count.
type RequestStore interface {
	Record(ctx context.Context, apiName string, success bool) error
	Count(ctx context.Context, apiName string, start, end time.Time) (int64, error)
}

// Usage is a point-in-time snapshot of quota consumption.
type Usage struct {
	HourlyUsed      int `json:"hourly_used"`
	HourlyLimit     int `json:"hourly_limit"`
	HourlyRemaining int `json:"hourly_remaining"`
	DailyUsed       int `json:"daily_used"`
	DailyLimit      int `json:"daily_limit"`
	DailyRemaining  int `json:"daily_remaining"`
}

// Limiter enforces a safety-margined upstream quota over sliding hourly
// and daily windows. It carries no retry policy of its own; callers
// decide what to do with a blocked result.
type Limiter struct {
	store           RequestStore
	log             *logger.Logger
	safeHourlyLimit int
	safeDailyLimit  int
}

func NewLimiter(store RequestStore, log *logger.Logger, safeHourlyLimit, safeDailyLimit int) *Limiter {
	if safeHourlyLimit <= 0 {
		safeHourlyLimit = DefaultSafeHourlyLimit
	}
	if safeDailyLimit <= 0 {
		safeDailyLimit = DefaultSafeDailyLimit
	}
	return &Limiter{
		store:           store,
		log:             log,
		safeHourlyLimit: safeHourlyLimit,
		safeDailyLimit:  safeDailyLimit,
	}
}

// CanProceed reports whether one more call fits inside the quota. On a
// store failure the limiter fails open: it logs and allows the call
// rather than blocking the pipeline on an auxiliary subsystem.
func (l *Limiter) CanProceed(ctx context.Context, apiName string) (bool, string) {
	now := time.Now().UTC()

	hourlyCount, err := l.store.Count(ctx, apiName, now.Add(-time.Hour), now)
	if err != nil {
		l.log.ErrorContext(ctx, "Failed to read hourly request count, allowing call", logger.ErrorField(err), logger.StringField("api_name", apiName))
		return true, ""
	}
	if int(hourlyCount) >= l.safeHourlyLimit {
		return false, fmt.Sprintf("hourly limit reached (%d/%d), try again within the hour", hourlyCount, l.safeHourlyLimit)
	}

	dailyCount, err := l.store.Count(ctx, apiName, now.Add(-24*time.Hour), now)
	if err != nil {
		l.log.ErrorContext(ctx, "Failed to read daily request count, allowing call", logger.ErrorField(err), logger.StringField("api_name", apiName))
		return true, ""
	}
	if int(dailyCount) >= l.safeDailyLimit {
		return false, fmt.Sprintf("daily limit reached (%d/%d), try again tomorrow", dailyCount, l.safeDailyLimit)
	}

	return true, ""
}

// Record logs one call against the quota. Store failures are logged and
// swallowed; an unrecorded call is preferable to a blocked pipeline.
func (l *Limiter) Record(ctx context.Context, apiName string, success bool) {
	if err := l.store.Record(ctx, apiName, success); err != nil {
		l.log.ErrorContext(ctx, "Failed to record API request", logger.ErrorField(err), logger.StringField("api_name", apiName))
	}
}

// Usage returns current consumption against both windows.
func (l *Limiter) Usage(ctx context.Context, apiName string) (Usage, error) {
	now := time.Now().UTC()

	hourlyCount, err := l.store.Count(ctx, apiName, now.Add(-time.Hour), now)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to read hourly count: %w", err)
	}
	dailyCount, err := l.store.Count(ctx, apiName, now.Add(-24*time.Hour), now)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to read daily count: %w", err)
	}

	return Usage{
		HourlyUsed:      int(hourlyCount),
		HourlyLimit:     l.safeHourlyLimit,
		HourlyRemaining: max(0, l.safeHourlyLimit-int(hourlyCount)),
		DailyUsed:       int(dailyCount),
		DailyLimit:      l.safeDailyLimit,
		DailyRemaining:  max(0, l.safeDailyLimit-int(dailyCount)),
	}, nil
}
