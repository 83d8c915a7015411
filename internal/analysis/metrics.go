package analysis

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/namanxajmera/stock-alerts/internal/entity"
	"github.com/namanxajmera/stock-alerts/pkg/utils"
)

const (
	// MAWindow is the moving-average window in trading days.
	MAWindow = 200

	// MinDataPoints is the minimum number of defined deviation points
	// required before percentile analysis is considered meaningful.
	MinDataPoints = 20
)

// ErrInsufficientData indicates a series too short for percentile analysis.
var ErrInsufficientData = errors.New("insufficient data for meaningful analysis (need at least 20 data points)")

// Zone classifies a deviation relative to its historical percentile band.
type Zone string

const (
	ZoneFear    Zone = "fear"
	ZoneGreed   Zone = "greed"
	ZoneNeutral Zone = "neutral"
)

// MovingAverage computes a simple moving average over the given window.
// Entries before the window fills are nil.
func MovingAverage(values []float64, window int) []*float64 {
	result := make([]*float64, len(values))
	if window <= 0 || len(values) < window {
		return result
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			result[i] = utils.ToPointer(sum / float64(window))
		}
	}
	return result
}

// PctDeviation returns the percent difference between price and its
// moving average.
func PctDeviation(price, ma float64) float64 {
	return (price - ma) / ma * 100
}

// Deviations computes the percent deviation series. Entries are nil
// wherever the moving average is undefined.
func Deviations(values []float64, ma []*float64) []*float64 {
	result := make([]*float64, len(values))
	for i, m := range ma {
		if m == nil {
			continue
		}
		result[i] = utils.ToPointer(PctDeviation(values[i], *m))
	}
	return result
}

// percentile computes the empirical q-th percentile (0-100) with linear
// interpolation between closest ranks.
func percentile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := q / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// Percentiles computes the empirical 16th and 84th percentile band over
// the defined deviations. Returns ErrInsufficientData below MinDataPoints.
func Percentiles(deviations []float64) (entity.Percentiles, error) {
	if len(deviations) < MinDataPoints {
		return entity.Percentiles{}, ErrInsufficientData
	}
	return entity.Percentiles{
		P16: percentile(deviations, 16),
		P84: percentile(deviations, 84),
	}, nil
}

// ZoneOf classifies a deviation. Both band boundaries are inclusive.
func ZoneOf(deviation, p16, p84 float64) Zone {
	switch {
	case deviation <= p16:
		return ZoneFear
	case deviation >= p84:
		return ZoneGreed
	default:
		return ZoneNeutral
	}
}

// Streaks returns the lengths of maximal consecutive runs where pred
// holds. An empty input yields an empty result.
func Streaks(values []float64, pred func(float64) bool) []int {
	streaks := []int{}
	current := 0
	for _, v := range values {
		if pred(v) {
			current++
			continue
		}
		if current > 0 {
			streaks = append(streaks, current)
			current = 0
		}
	}
	if current > 0 {
		streaks = append(streaks, current)
	}
	return streaks
}

// Result holds every indicator derived from a full price series.
// Percentiles are always computed over the entire history, regardless of
// any display-period filtering applied later.
type Result struct {
	Series         entity.PriceSeries
	MA200          []*float64
	PctDiff        []*float64
	Percentiles    entity.Percentiles
	CurrentPrice   float64
	CurrentMA200   *float64
	CurrentPctDiff *float64
	PreviousClose  *float64
	ValidPoints    int
}

// Sufficient reports whether enough defined deviations exist for
// percentile-based alerting.
func (r *Result) Sufficient() bool {
	return r.ValidPoints >= MinDataPoints
}

// Compute derives MA200, deviations and the percentile band from a full
// price series. The returned Result is populated even when the series is
// below MinDataPoints; callers check Sufficient before alert evaluation.
func Compute(series entity.PriceSeries) (*Result, error) {
	if len(series) == 0 {
		return nil, errors.New("empty price series")
	}

	closes := series.Closes()
	ma := MovingAverage(closes, MAWindow)
	devs := Deviations(closes, ma)

	valid := make([]float64, 0, len(devs))
	for _, d := range devs {
		if d != nil {
			valid = append(valid, *d)
		}
	}

	result := &Result{
		Series:       series,
		MA200:        ma,
		PctDiff:      devs,
		CurrentPrice: closes[len(closes)-1],
		ValidPoints:  len(valid),
	}

	if len(series) >= 2 {
		result.PreviousClose = utils.ToPointer(closes[len(closes)-2])
	}
	result.CurrentMA200 = ma[len(ma)-1]
	result.CurrentPctDiff = devs[len(devs)-1]

	if len(valid) > 0 {
		result.Percentiles = entity.Percentiles{
			P16: percentile(valid, 16),
			P84: percentile(valid, 84),
		}
	}

	return result, nil
}

// Payload converts the result into the persisted cache document.
func (r *Result) Payload(now time.Time) entity.CachePayload {
	timeSeries := make(map[string]entity.TimeSeriesPoint, len(r.Series))
	for i, p := range r.Series {
		timeSeries[p.Date.Format("2006-01-02")] = entity.TimeSeriesPoint{
			Price:   utils.ToPointer(p.Close),
			MA200:   r.MA200[i],
			PctDiff: r.PctDiff[i],
		}
	}

	return entity.CachePayload{
		SchemaVersion: entity.CachePayloadSchemaVersion,
		Price:         r.CurrentPrice,
		MA200:         r.CurrentMA200,
		Percentiles:   r.Percentiles,
		PreviousClose: r.PreviousClose,
		TimeSeries:    timeSeries,
		LastUpdated:   now,
	}
}
