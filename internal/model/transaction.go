package model

import (
	"time"

	"cashmine/pkg/apperr"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型与状态
// ============================================================================

const (
	KindDeposit  = "deposit"
	KindWithdraw = "withdraw"
	KindOrder    = "order"
	KindMining   = "mining"
	KindSpin     = "spin"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
)

// Transaction 账户流水。
// Amount is always the positive magnitude; the kind decides the direction.
// Rows are append only apart from the single pending -> resolved transition.
type Transaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"id"`
	UserID        string          `gorm:"type:varchar(36);index:idx_user_created;not null" json:"user_id"`
	Kind          string          `gorm:"column:type;type:varchar(16);index:idx_kind_status;not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status        string          `gorm:"type:varchar(16);index:idx_kind_status;not null" json:"status"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance_after"`
	ReferenceNo   string          `gorm:"type:varchar(64);index" json:"reference_no,omitempty"`
	WalletAddress string          `gorm:"type:varchar(64)" json:"wallet_address,omitempty"`
	Remark        string          `gorm:"type:varchar(256)" json:"remark,omitempty"`
	AdminNote     string          `gorm:"type:varchar(256)" json:"admin_note,omitempty"`
	ResolvedBy    string          `gorm:"type:varchar(36)" json:"-"`
	CreatedAt     time.Time       `gorm:"index:idx_user_created" json:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}

func (Transaction) TableName() string {
	return "account_transaction"
}

// SignedAmount is the effect of a completed transaction on the balance.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Kind == KindWithdraw {
		return t.Amount.Neg()
	}
	return t.Amount
}

// ============================================================================
// 结算规则
// ============================================================================
//
// Each kind settles differently: earnings are credited the moment they are
// created, deposits only when an admin approves them, withdrawals reserve the
// amount at creation and debit it at approval.

type Settlement interface {
	Kind() string
	SelfSettling() bool
	// Open runs when a pending transaction is created.
	Open(u *User, amount decimal.Decimal) error
	// Complete applies the effect on the balance.
	Complete(u *User, amount decimal.Decimal) error
	// Cancel undoes whatever Open reserved.
	Cancel(u *User, amount decimal.Decimal)
}

var settlements = map[string]Settlement{
	KindDeposit:  depositSettlement{},
	KindWithdraw: withdrawSettlement{},
	KindOrder:    earningSettlement{kind: KindOrder},
	KindMining:   earningSettlement{kind: KindMining},
	KindSpin:     earningSettlement{kind: KindSpin},
}

// SettlementFor returns the rule for kind, or false for an unknown kind.
func SettlementFor(kind string) (Settlement, bool) {
	s, ok := settlements[kind]
	return s, ok
}

type earningSettlement struct {
	kind string
}

func (s earningSettlement) Kind() string       { return s.kind }
func (s earningSettlement) SelfSettling() bool { return true }

func (s earningSettlement) Open(*User, decimal.Decimal) error {
	return apperr.Internal("earnings settle immediately", nil)
}

func (s earningSettlement) Complete(u *User, amount decimal.Decimal) error {
	u.Balance = u.Balance.Add(amount)
	u.TotalEarnings = u.TotalEarnings.Add(amount)
	return nil
}

func (s earningSettlement) Cancel(*User, decimal.Decimal) {}

type depositSettlement struct{}

func (depositSettlement) Kind() string                      { return KindDeposit }
func (depositSettlement) SelfSettling() bool                { return false }
func (depositSettlement) Open(*User, decimal.Decimal) error { return nil }
func (depositSettlement) Cancel(*User, decimal.Decimal)     {}

func (depositSettlement) Complete(u *User, amount decimal.Decimal) error {
	u.Balance = u.Balance.Add(amount)
	u.DepositAmount = u.DepositAmount.Add(amount)
	return nil
}

type withdrawSettlement struct{}

func (withdrawSettlement) Kind() string       { return KindWithdraw }
func (withdrawSettlement) SelfSettling() bool { return false }

func (withdrawSettlement) Open(u *User, amount decimal.Decimal) error {
	if amount.GreaterThan(u.Available()) {
		return apperr.ErrInsufficientFunds
	}
	u.FrozenAmount = u.FrozenAmount.Add(amount)
	return nil
}

func (withdrawSettlement) Complete(u *User, amount decimal.Decimal) error {
	if amount.GreaterThan(u.Balance) {
		return apperr.ErrInsufficientAtApproval
	}
	u.Balance = u.Balance.Sub(amount)
	u.FrozenAmount = releaseHold(u.FrozenAmount, amount)
	return nil
}

func (withdrawSettlement) Cancel(u *User, amount decimal.Decimal) {
	u.FrozenAmount = releaseHold(u.FrozenAmount, amount)
}

func releaseHold(frozen, amount decimal.Decimal) decimal.Decimal {
	left := frozen.Sub(amount)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}
