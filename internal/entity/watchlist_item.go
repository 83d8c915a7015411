package entity

import "time"

// WatchlistItem links a user to a symbol. IsOwned marks an actual holding
// and only affects how alerts are grouped in notifications.
type WatchlistItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:uq_watchlist_user_symbol" json:"user_id"`
	Symbol    string    `gorm:"not null;uniqueIndex:uq_watchlist_user_symbol" json:"symbol"`
	IsOwned   bool      `gorm:"not null;default:false" json:"is_owned"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (WatchlistItem) TableName() string {
	return "watchlist_items"
}
