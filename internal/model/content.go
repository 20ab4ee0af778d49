package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Campaign is a promotional banner; it has no settlement effect.
type Campaign struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title           string          `gorm:"type:varchar(128);not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"discount_percent"`
	BonusAmount     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"bonus_amount"`
	MinDeposit      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"min_deposit"`
	IsActive        bool            `gorm:"not null;index" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaign"
}

type Notification struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title     string    `gorm:"type:varchar(128);not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	IsGlobal  bool      `gorm:"not null;index" json:"is_global"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notification"
}
