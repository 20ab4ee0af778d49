package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 用户及其资金账户。
// Funds columns are only ever written through the ledger, guarded by Version.
type User struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Login         string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"login"`
	PasswordHash  string          `gorm:"type:varchar(128);not null" json:"-"`
	Role          string          `gorm:"type:varchar(16);not null" json:"role"`
	Balance       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance"`
	FrozenAmount  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"frozen_amount"` // pending withdrawal holds
	TotalEarnings decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total_earnings"`
	DepositAmount decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"deposit_amount"`
	VIPLevel      int             `gorm:"column:vip_level;not null" json:"vip_level"`
	WalletAddress string          `gorm:"type:varchar(64)" json:"wallet_address,omitempty"`
	Version       int             `gorm:"not null" json:"-"`
	LastLoginAt   *time.Time      `json:"last_login_at,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime;index" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Available is the balance not reserved by pending withdrawals.
func (u *User) Available() decimal.Decimal {
	return u.Balance.Sub(u.FrozenAmount)
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
