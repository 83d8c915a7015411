package utils

import "time"

// ToPointer returns a pointer to the given value.
func ToPointer[T any](v T) *T {
	return &v
}

// TimeNowUTC returns the current time in UTC. Alert-day gating and cache
// freshness checks are all evaluated in UTC.
func TimeNowUTC() time.Time {
	return time.Now().UTC()
}
