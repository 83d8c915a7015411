package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namanxajmera/stock-alerts/internal/entity"
)

func seriesOf(closes []float64) entity.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(entity.PriceSeries, len(closes))
	for i, c := range closes {
		series[i] = entity.PricePoint{Date: start.AddDate(0, 0, i), Close: c}
	}
	return series
}

func flat(n int, v float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = v
	}
	return values
}

func TestMovingAverage(t *testing.T) {
	t.Run("nil before window fills", func(t *testing.T) {
		ma := MovingAverage([]float64{1, 2, 3, 4, 5}, 3)
		require.Len(t, ma, 5)
		assert.Nil(t, ma[0])
		assert.Nil(t, ma[1])
		require.NotNil(t, ma[2])
		assert.InDelta(t, 2.0, *ma[2], 1e-9)
		assert.InDelta(t, 3.0, *ma[3], 1e-9)
		assert.InDelta(t, 4.0, *ma[4], 1e-9)
	})

	t.Run("series shorter than window is all nil", func(t *testing.T) {
		ma := MovingAverage(flat(199, 100), MAWindow)
		require.Len(t, ma, 199)
		for _, v := range ma {
			assert.Nil(t, v)
		}
	})

	t.Run("exactly window length yields one value", func(t *testing.T) {
		ma := MovingAverage(flat(MAWindow, 100), MAWindow)
		require.Len(t, ma, MAWindow)
		for _, v := range ma[:MAWindow-1] {
			assert.Nil(t, v)
		}
		require.NotNil(t, ma[MAWindow-1])
		assert.InDelta(t, 100.0, *ma[MAWindow-1], 1e-9)
	})
}

func TestPctDeviation(t *testing.T) {
	assert.InDelta(t, 10.0, PctDeviation(110, 100), 1e-9)
	assert.InDelta(t, -25.0, PctDeviation(75, 100), 1e-9)
	assert.InDelta(t, 0.0, PctDeviation(100, 100), 1e-9)
}

func TestPercentiles(t *testing.T) {
	t.Run("too few points", func(t *testing.T) {
		_, err := Percentiles(flat(MinDataPoints-1, 1))
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("band is ordered and bracketing", func(t *testing.T) {
		devs := make([]float64, 100)
		for i := range devs {
			devs[i] = float64(i) // 0..99
		}
		band, err := Percentiles(devs)
		require.NoError(t, err)
		assert.InDelta(t, 15.84, band.P16, 1e-9)
		assert.InDelta(t, 83.16, band.P84, 1e-9)
		assert.Less(t, band.P16, band.P84)
	})

	t.Run("interpolates between ranks", func(t *testing.T) {
		devs := make([]float64, MinDataPoints)
		for i := range devs {
			devs[i] = float64(i + 1) // 1..20
		}
		band, err := Percentiles(devs)
		require.NoError(t, err)
		// rank = 0.16*19 = 3.04, between 4 and 5
		assert.InDelta(t, 4.04, band.P16, 1e-9)
		assert.InDelta(t, 16.96, band.P84, 1e-9)
	})
}

func TestZoneOf(t *testing.T) {
	tests := []struct {
		name      string
		deviation float64
		want      Zone
	}{
		{"below band", -12.0, ZoneFear},
		{"exactly p16", -5.0, ZoneFear},
		{"just inside lower", -4.99, ZoneNeutral},
		{"mid band", 0.0, ZoneNeutral},
		{"just inside upper", 7.99, ZoneNeutral},
		{"exactly p84", 8.0, ZoneGreed},
		{"above band", 15.0, ZoneGreed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ZoneOf(tt.deviation, -5.0, 8.0))
		})
	}
}

func TestStreaks(t *testing.T) {
	neg := func(v float64) bool { return v < 0 }

	t.Run("empty input yields empty non-nil result", func(t *testing.T) {
		streaks := Streaks(nil, neg)
		require.NotNil(t, streaks)
		assert.Empty(t, streaks)
	})

	t.Run("counts maximal runs", func(t *testing.T) {
		values := []float64{-1, -2, 3, -4, 5, -6, -7, -8}
		assert.Equal(t, []int{2, 1, 3}, Streaks(values, neg))
	})

	t.Run("trailing run is closed", func(t *testing.T) {
		assert.Equal(t, []int{2}, Streaks([]float64{1, -1, -1}, neg))
	})
}

func TestCompute(t *testing.T) {
	t.Run("empty series", func(t *testing.T) {
		_, err := Compute(nil)
		assert.Error(t, err)
	})

	t.Run("short series is insufficient but still populated", func(t *testing.T) {
		result, err := Compute(seriesOf(flat(50, 100)))
		require.NoError(t, err)
		assert.False(t, result.Sufficient())
		assert.Equal(t, 0, result.ValidPoints)
		assert.InDelta(t, 100.0, result.CurrentPrice, 1e-9)
		require.NotNil(t, result.PreviousClose)
		assert.InDelta(t, 100.0, *result.PreviousClose, 1e-9)
		assert.Nil(t, result.CurrentMA200)
		assert.Nil(t, result.CurrentPctDiff)
	})

	t.Run("price drop far below average lands in fear zone", func(t *testing.T) {
		closes := flat(299, 100)
		closes = append(closes, 70)
		result, err := Compute(seriesOf(closes))
		require.NoError(t, err)
		require.True(t, result.Sufficient())
		assert.Equal(t, 101, result.ValidPoints)

		require.NotNil(t, result.CurrentPctDiff)
		// price 70 against an MA pulled down to 99.85
		assert.Less(t, *result.CurrentPctDiff, -25.0)
		assert.Equal(t, ZoneFear, ZoneOf(*result.CurrentPctDiff, result.Percentiles.P16, result.Percentiles.P84))
	})

	t.Run("flat series stays neutral", func(t *testing.T) {
		result, err := Compute(seriesOf(flat(300, 100)))
		require.NoError(t, err)
		require.True(t, result.Sufficient())
		require.NotNil(t, result.CurrentPctDiff)
		assert.InDelta(t, 0.0, *result.CurrentPctDiff, 1e-9)
		assert.InDelta(t, 0.0, result.Percentiles.P16, 1e-9)
		assert.InDelta(t, 0.0, result.Percentiles.P84, 1e-9)
	})
}

func TestResultPayload(t *testing.T) {
	result, err := Compute(seriesOf(flat(250, 100)))
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	payload := result.Payload(now)

	assert.Equal(t, entity.CachePayloadSchemaVersion, payload.SchemaVersion)
	assert.Len(t, payload.TimeSeries, 250)
	assert.Equal(t, now, payload.LastUpdated)
	require.NotNil(t, payload.MA200)
	assert.InDelta(t, 100.0, *payload.MA200, 1e-9)

	first, ok := payload.TimeSeries["2024-01-01"]
	require.True(t, ok)
	require.NotNil(t, first.Price)
	assert.Nil(t, first.MA200)
	assert.Nil(t, first.PctDiff)
}
