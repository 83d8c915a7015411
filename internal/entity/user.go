package entity

import "time"

type User struct {
	ID                  int64      `gorm:"primaryKey" json:"id"`
	Name                string     `gorm:"not null" json:"name"`
	NotificationEnabled bool       `gorm:"not null;default:true" json:"notification_enabled"`
	LastNotifiedAt      *time.Time `json:"last_notified_at"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
