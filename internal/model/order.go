package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusOffered  = "OFFERED"
	OrderStatusAccepted = "ACCEPTED"
)

// Rejected and expired offers are deleted, so ACCEPTED is terminal.
var ValidOrderTransitions = map[string][]string{
	OrderStatusOffered: {OrderStatusAccepted},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	for _, s := range ValidOrderTransitions[currentStatus] {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// OrderOffer is a synthetic cashback order offered to one user.
type OrderOffer struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderNo      string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"id"`
	UserID       string          `gorm:"type:varchar(36);index;not null" json:"-"`
	ProductName  string          `gorm:"type:varchar(128);not null" json:"product_name"`
	ProductCode  string          `gorm:"type:varchar(32);not null" json:"product_code"`
	ProductPrice decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"product_price"`
	Cashback     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"cashback"`
	Category     string          `gorm:"type:varchar(64);not null" json:"category"`
	QRPayload    string          `gorm:"type:varchar(256);not null" json:"qr_payload"`
	Status       string          `gorm:"type:varchar(20);index;not null" json:"status"`
	ExpiredAt    time.Time       `gorm:"index;not null" json:"expired_at"`
	AcceptedAt   *time.Time      `json:"accepted_at,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (OrderOffer) TableName() string {
	return "order_offer"
}
