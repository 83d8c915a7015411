package entity

import "time"

// PricePoint is one daily bar reduced to its adjusted close. Adjusted
// prices keep the series continuous across splits and dividends, which
// long-horizon percentile analysis depends on.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is an ascending-by-date, duplicate-free daily price history.
// A series is never mutated after construction; a fresh fetch produces a
// new one.
type PriceSeries []PricePoint

// Closes returns the close column of the series.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, p := range s {
		closes[i] = p.Close
	}
	return closes
}
