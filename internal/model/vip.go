package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// VIPLevel tiers are ordered by Level; DepositRequired strictly increases with it.
type VIPLevel struct {
	Level              int             `gorm:"primaryKey;autoIncrement:false" json:"level"`
	Name               string          `gorm:"type:varchar(64);not null" json:"name"`
	DepositRequired    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"deposit_required"`
	MaxDailyEarnings   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"max_daily_earnings"`
	OrdersPerDay       int             `gorm:"not null" json:"orders_per_day"`
	CommissionPerOrder decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"commission_per_order"`
	IsActive           bool            `gorm:"not null" json:"is_active"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"-"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"-"`
}

func (VIPLevel) TableName() string {
	return "vip_level"
}

func DefaultVIPLevels() []VIPLevel {
	tier := func(level int, deposit, maxDaily int64, orders int) VIPLevel {
		return VIPLevel{
			Level:              level,
			Name:               "VIP " + strconv.Itoa(level),
			DepositRequired:    decimal.NewFromInt(deposit),
			MaxDailyEarnings:   decimal.NewFromInt(maxDaily),
			OrdersPerDay:       orders,
			CommissionPerOrder: decimal.NewFromInt(5),
			IsActive:           true,
		}
	}
	return []VIPLevel{
		tier(1, 1000, 50, 10),
		tier(2, 3000, 150, 30),
		tier(3, 8000, 500, 100),
		tier(4, 15000, 800, 160),
		tier(5, 30000, 1500, 300),
	}
}
