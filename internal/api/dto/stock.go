package dto

import (
	"github.com/namanxajmera/stock-alerts/internal/entity"
	"github.com/namanxajmera/stock-alerts/internal/ratelimit"
)

// StockDataResponse is the chart payload for one symbol over a display
// period. Columns are aligned by index; ma_200 and pct_diff are null
// before the moving-average window fills.
type StockDataResponse struct {
	Symbol        string             `json:"symbol"`
	Period        string             `json:"period"`
	Dates         []string           `json:"dates"`
	Prices        []*float64         `json:"prices"`
	MA200         []*float64         `json:"ma_200"`
	PctDiff       []*float64         `json:"pct_diff"`
	Percentiles   entity.Percentiles `json:"percentiles"`
	PreviousClose *float64           `json:"previous_close"`
}

// StatusResponse reports quota consumption and the most recent checker
// run for operational visibility.
type StatusResponse struct {
	APIUsage ratelimit.Usage `json:"api_usage"`
	LastRun  interface{}     `json:"last_run,omitempty"`
}
