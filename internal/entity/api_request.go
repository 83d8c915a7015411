package entity

import "time"

// APIRequest is one logged upstream API call. Rate-limit counters are
// derived by counting rows in a time window, never stored directly.
type APIRequest struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	APIName     string    `gorm:"not null;index:idx_api_requests_name_requested_at" json:"api_name"`
	Success     bool      `gorm:"not null" json:"success"`
	RequestedAt time.Time `gorm:"not null;index:idx_api_requests_name_requested_at" json:"requested_at"`
}

func (APIRequest) TableName() string {
	return "api_requests"
}
