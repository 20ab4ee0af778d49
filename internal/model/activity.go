package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyActivity holds one user's counters for one UTC day. Rows of past days
// are kept for history; a new day simply starts a new row.
type DailyActivity struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID         string          `gorm:"type:varchar(36);not null;uniqueIndex:uk_user_day" json:"user_id"`
	Day            string          `gorm:"type:varchar(10);not null;uniqueIndex:uk_user_day" json:"day"`
	OrdersAccepted int             `gorm:"not null" json:"orders_accepted"`
	EarningsToday  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"earnings_today"`
	MiningTaps     int             `gorm:"not null" json:"mining_taps"`
	SpinClaimed    bool            `gorm:"not null" json:"spin_claimed"`
	SpinReward     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"spin_reward"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DailyActivity) TableName() string {
	return "daily_activity"
}

// UserActivityState carries the counters whose windows do not align with the
// UTC day: the mining tap window and the order reject cooldown.
type UserActivityState struct {
	UserID             string     `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	MiningWindowStart  *time.Time `json:"mining_window_start"`
	MiningWindowTaps   int        `gorm:"not null" json:"mining_window_taps"`
	TotalTaps          int64      `gorm:"not null" json:"total_taps"`
	OrderCooldownUntil *time.Time `json:"order_cooldown_until"`
	TotalSpins         int        `gorm:"not null" json:"total_spins"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserActivityState) TableName() string {
	return "user_activity_state"
}
