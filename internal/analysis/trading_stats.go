package analysis

import (
	"errors"

	"github.com/namanxajmera/stock-alerts/internal/entity"
	"github.com/namanxajmera/stock-alerts/pkg/utils"
)

// StatsInput is the display-period view of a symbol's history used for
// trading statistics. Prices and PctDiffs are aligned by index and hold
// only defined points; Percentiles come from the full history.
type StatsInput struct {
	Dates       []string
	Prices      []float64
	PctDiffs    []float64
	Percentiles entity.Percentiles
}

// AnalysisPeriod describes the span of days behind a stats report.
type AnalysisPeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	TotalDays int    `json:"total_days"`
}

// AlertAnalysis counts historical extreme readings.
type AlertAnalysis struct {
	TotalAlerts    int     `json:"total_alerts"`
	FearAlerts     int     `json:"extreme_fear_alerts"`
	GreedAlerts    int     `json:"extreme_greed_alerts"`
	AlertFrequency float64 `json:"alert_frequency_pct"`
}

// ZoneStats summarises time spent and prices seen inside one zone.
type ZoneStats struct {
	Days        int      `json:"days"`
	Percentage  float64  `json:"percentage"`
	AvgPrice    *float64 `json:"avg_price"`
	AvgDuration float64  `json:"avg_duration,omitempty"`
	MaxDuration int      `json:"max_duration,omitempty"`
}

// CurrentAnalysis captures where the symbol sits right now.
type CurrentAnalysis struct {
	Price            float64 `json:"price"`
	Zone             Zone    `json:"zone"`
	PctFromMA200     float64 `json:"pct_from_ma200"`
	OpportunityScore int     `json:"opportunity_score"`
}

// OpportunityInsights compares the current price against zone averages.
type OpportunityInsights struct {
	VsFearAvg    *float64 `json:"vs_fear_avg"`
	VsGreedAvg   *float64 `json:"vs_greed_avg"`
	VsNeutralAvg *float64 `json:"vs_neutral_avg"`
}

// StatsReport is the derived trading-intelligence document cached per
// (symbol, period).
type StatsReport struct {
	Symbol         string              `json:"symbol"`
	Period         string              `json:"period"`
	AnalysisPeriod AnalysisPeriod      `json:"analysis_period"`
	AlertAnalysis  AlertAnalysis       `json:"alert_analysis"`
	ZoneAnalysis   map[string]ZoneStats `json:"zone_analysis"`
	Current        CurrentAnalysis     `json:"current_analysis"`
	Insights       OpportunityInsights `json:"opportunity_insights"`
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func meanInt(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum int
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func maxInt(values []int) int {
	m := 0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}

// vsAvg returns the percent distance of price from avg, nil when the
// zone never occurred.
func vsAvg(price, avg float64) *float64 {
	if avg <= 0 {
		return nil
	}
	return utils.ToPointer((price - avg) / avg * 100)
}

func clampScore(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}

// TradingStats derives zone occupancy, streaks and opportunity context
// for one symbol over the requested display period.
func TradingStats(symbol, period string, in StatsInput) (*StatsReport, error) {
	if len(in.Prices) == 0 || len(in.PctDiffs) == 0 {
		return nil, errors.New("insufficient data for trading analysis")
	}

	p16 := in.Percentiles.P16
	p84 := in.Percentiles.P84
	currentPrice := in.Prices[len(in.Prices)-1]
	currentPctDiff := in.PctDiffs[len(in.PctDiffs)-1]

	totalDays := len(in.PctDiffs)
	fearDays, greedDays := 0, 0
	var fearPrices, greedPrices, neutralPrices []float64
	for i, d := range in.PctDiffs {
		if i >= len(in.Prices) {
			break
		}
		switch ZoneOf(d, p16, p84) {
		case ZoneFear:
			fearDays++
			fearPrices = append(fearPrices, in.Prices[i])
		case ZoneGreed:
			greedDays++
			greedPrices = append(greedPrices, in.Prices[i])
		default:
			neutralPrices = append(neutralPrices, in.Prices[i])
		}
	}
	neutralDays := totalDays - fearDays - greedDays

	fearPct := float64(fearDays) / float64(totalDays) * 100
	greedPct := float64(greedDays) / float64(totalDays) * 100

	avgFearPrice := mean(fearPrices)
	avgGreedPrice := mean(greedPrices)
	avgNeutralPrice := mean(neutralPrices)

	fearStreaks := Streaks(in.PctDiffs, func(d float64) bool { return d <= p16 })
	greedStreaks := Streaks(in.PctDiffs, func(d float64) bool { return d >= p84 })

	currentZone := ZoneOf(currentPctDiff, p16, p84)

	score := 0
	if avgFearPrice > 0 {
		switch currentZone {
		case ZoneFear:
			score = clampScore((avgFearPrice-currentPrice)/avgFearPrice*100 + 50)
		case ZoneGreed:
			if avgGreedPrice > 0 {
				score = clampScore((currentPrice-avgGreedPrice)/avgGreedPrice*100 + 50)
			}
		default:
			score = 50
		}
	}

	var startDate, endDate string
	if len(in.Dates) > 0 {
		startDate = in.Dates[0]
		endDate = in.Dates[len(in.Dates)-1]
	}

	zoneAvgPrice := func(avg float64) *float64 {
		if avg <= 0 {
			return nil
		}
		return utils.ToPointer(avg)
	}

	return &StatsReport{
		Symbol: symbol,
		Period: period,
		AnalysisPeriod: AnalysisPeriod{
			StartDate: startDate,
			EndDate:   endDate,
			TotalDays: totalDays,
		},
		AlertAnalysis: AlertAnalysis{
			TotalAlerts:    fearDays + greedDays,
			FearAlerts:     fearDays,
			GreedAlerts:    greedDays,
			AlertFrequency: float64(fearDays+greedDays) / float64(totalDays) * 100,
		},
		ZoneAnalysis: map[string]ZoneStats{
			"fear_zone": {
				Days:        fearDays,
				Percentage:  fearPct,
				AvgPrice:    zoneAvgPrice(avgFearPrice),
				AvgDuration: meanInt(fearStreaks),
				MaxDuration: maxInt(fearStreaks),
			},
			"greed_zone": {
				Days:        greedDays,
				Percentage:  greedPct,
				AvgPrice:    zoneAvgPrice(avgGreedPrice),
				AvgDuration: meanInt(greedStreaks),
				MaxDuration: maxInt(greedStreaks),
			},
			"neutral_zone": {
				Days:       neutralDays,
				Percentage: 100 - fearPct - greedPct,
				AvgPrice:   zoneAvgPrice(avgNeutralPrice),
			},
		},
		Current: CurrentAnalysis{
			Price:            currentPrice,
			Zone:             currentZone,
			PctFromMA200:     currentPctDiff,
			OpportunityScore: score,
		},
		Insights: OpportunityInsights{
			VsFearAvg:    vsAvg(currentPrice, avgFearPrice),
			VsGreedAvg:   vsAvg(currentPrice, avgGreedPrice),
			VsNeutralAvg: vsAvg(currentPrice, avgNeutralPrice),
		},
	}, nil
}
