package entity

import "time"

type AlertStatus string

const (
	AlertStatusSent    AlertStatus = "sent"
	AlertStatusFailed  AlertStatus = "failed"
	AlertStatusSkipped AlertStatus = "skipped"
)

// AlertHistory is an append-only record of every alert-worthy evaluation,
// one row per (user, symbol) per check cycle regardless of delivery outcome.
type AlertHistory struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	UserID       int64       `gorm:"not null" json:"user_id"`
	Symbol       string      `gorm:"not null" json:"symbol"`
	Price        float64     `gorm:"not null" json:"price"`
	Percentile   float64     `gorm:"not null" json:"percentile"`
	Status       AlertStatus `gorm:"not null" json:"status"`
	ErrorMessage *string     `json:"error_message"`
	SentAt       time.Time   `gorm:"autoCreateTime" json:"sent_at"`
}

func (AlertHistory) TableName() string {
	return "alert_history"
}
