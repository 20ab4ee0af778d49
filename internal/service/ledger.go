package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cashmine/internal/metrics"
	"cashmine/internal/model"
	"cashmine/pkg/apperr"
	"cashmine/pkg/idgen"
	"cashmine/pkg/money"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ledger is the only writer of user funds. Engines call it inside their own
// locked transaction; ApplyDelta is the standalone entry point.
type Ledger struct {
	*core
}

type ledgerEvent struct {
	Event         string    `json:"event"`
	TransactionNo string    `json:"transaction_no"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	BalanceAfter  string    `json:"balance_after"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ApplyDelta credits (positive delta) or debits (negative delta) a user and
// records a completed transaction of kind. Withdraw is the only debit kind.
func (l *Ledger) ApplyDelta(ctx context.Context, userID string, delta decimal.Decimal, kind, remark string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.runLocked(ctx, userID, func(tx *gorm.DB) error {
		user, err := l.users.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		t, err := l.apply(ctx, tx, user, kind, delta, "", remark)
		if err != nil {
			return err
		}
		balance = t.BalanceAfter
		return nil
	})
	return balance, err
}

// apply settles delta on user immediately. user must have been read FOR UPDATE
// in tx; its funds fields are updated in place.
func (l *Ledger) apply(ctx context.Context, tx *gorm.DB, user *model.User, kind string, delta decimal.Decimal, ref, remark string) (*model.Transaction, error) {
	rule, ok := model.SettlementFor(kind)
	if !ok {
		return nil, apperr.Validation(apperr.CodeInvalidArgument, fmt.Sprintf("unknown transaction type %q", kind))
	}
	if delta.IsZero() || !delta.Equal(delta.Round(money.Scale)) {
		return nil, apperr.ErrInvalidAmount
	}
	// 方向由类型决定：只有提现是扣款
	if (kind == model.KindWithdraw) != delta.IsNegative() {
		return nil, apperr.Validation(apperr.CodeInvalidArgument, fmt.Sprintf("%s entries cannot carry amount %s", kind, delta))
	}
	amount := delta.Abs()

	before := user.Balance
	if !rule.SelfSettling() {
		if err := rule.Open(user, amount); err != nil {
			return nil, err
		}
	}
	if err := rule.Complete(user, amount); err != nil {
		return nil, err
	}
	if user.Balance.IsNegative() {
		return nil, apperr.ErrInsufficientFunds
	}
	if err := l.users.SaveFunds(ctx, tx, user); err != nil {
		return nil, err
	}

	now := l.clock()
	t := &model.Transaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        user.ID,
		Kind:          kind,
		Amount:        amount,
		Status:        model.StatusCompleted,
		BalanceBefore: before,
		BalanceAfter:  user.Balance,
		ReferenceNo:   ref,
		Remark:        remark,
		CreatedAt:     now,
		ResolvedAt:    &now,
	}
	if err := l.transactions.Create(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	if err := l.emit(ctx, tx, model.EventTransactionCompleted, t); err != nil {
		return nil, err
	}
	metrics.ObserveEntry(kind, amount)
	return t, nil
}

// openPending records a deposit or withdraw request. Withdrawals reserve the
// amount on the user right away.
func (l *Ledger) openPending(ctx context.Context, tx *gorm.DB, user *model.User, kind string, amount decimal.Decimal, wallet, remark string) (*model.Transaction, error) {
	rule, ok := model.SettlementFor(kind)
	if !ok || rule.SelfSettling() {
		return nil, apperr.Internal(fmt.Sprintf("%s transactions cannot be pending", kind), nil)
	}

	before := user.FrozenAmount
	if err := rule.Open(user, amount); err != nil {
		return nil, err
	}
	if !user.FrozenAmount.Equal(before) {
		if err := l.users.SaveFunds(ctx, tx, user); err != nil {
			return nil, err
		}
	}

	t := &model.Transaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        user.ID,
		Kind:          kind,
		Amount:        amount,
		Status:        model.StatusPending,
		BalanceBefore: user.Balance,
		BalanceAfter:  user.Balance,
		WalletAddress: wallet,
		Remark:        remark,
		CreatedAt:     l.clock(),
	}
	if err := l.transactions.Create(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	if err := l.emit(ctx, tx, model.EventTransactionCreated, t); err != nil {
		return nil, err
	}
	return t, nil
}

// resolve moves a pending transaction to completed or rejected exactly once.
// t and user must both have been read FOR UPDATE in tx.
func (l *Ledger) resolve(ctx context.Context, tx *gorm.DB, user *model.User, t *model.Transaction, approve bool, adminID, note string) error {
	if t.Status != model.StatusPending {
		return apperr.ErrAlreadyResolved.With(apperr.WithDetail("status", t.Status))
	}
	rule, ok := model.SettlementFor(t.Kind)
	if !ok || rule.SelfSettling() {
		return apperr.Internal(fmt.Sprintf("%s transactions cannot be pending", t.Kind), nil)
	}

	t.BalanceBefore = user.Balance
	event := model.EventTransactionRejected
	if approve {
		if err := rule.Complete(user, t.Amount); err != nil {
			return err
		}
		t.Status = model.StatusCompleted
		event = model.EventTransactionCompleted
	} else {
		rule.Cancel(user, t.Amount)
		t.Status = model.StatusRejected
	}
	if err := l.users.SaveFunds(ctx, tx, user); err != nil {
		return err
	}

	now := l.clock()
	t.BalanceAfter = user.Balance
	t.AdminNote = note
	t.ResolvedBy = adminID
	t.ResolvedAt = &now
	if err := l.transactions.Resolve(ctx, tx, t); err != nil {
		return err
	}
	if err := l.emit(ctx, tx, event, t); err != nil {
		return err
	}
	if approve {
		metrics.ObserveEntry(t.Kind, t.Amount)
	}
	return nil
}

func (l *Ledger) emit(ctx context.Context, tx *gorm.DB, event string, t *model.Transaction) error {
	payload, err := json.Marshal(ledgerEvent{
		Event:         event,
		TransactionNo: t.TransactionNo,
		UserID:        t.UserID,
		Type:          t.Kind,
		Amount:        money.Format(t.Amount),
		Status:        t.Status,
		BalanceAfter:  money.Format(t.BalanceAfter),
		OccurredAt:    l.clock(),
	})
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}

	msg := &model.OutboxMessage{
		MessageKey: t.UserID,
		EventType:  event,
		Topic:      l.cfg.Kafka.Topic.LedgerEvents,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := l.outbox.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("create outbox message: %w", err)
	}
	return nil
}

// Reconciliation compares a user's stored balance with the ledger.
type Reconciliation struct {
	UserID   string
	Balance  decimal.Decimal
	Expected decimal.Decimal
}

func (r Reconciliation) Matches() bool {
	return r.Balance.Equal(r.Expected)
}

// Reconcile recomputes the balance as completed credits minus completed
// debits. The user row and the sums are read in one transaction so a credit
// committed in between cannot show up as drift.
func (l *Ledger) Reconcile(ctx context.Context, userID string) (Reconciliation, error) {
	var r Reconciliation
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := l.users.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		credits, debits, err := l.transactions.SumCompleted(ctx, tx, userID)
		if err != nil {
			return err
		}
		r = Reconciliation{
			UserID:   user.ID,
			Balance:  user.Balance,
			Expected: credits.Sub(debits),
		}
		return nil
	})
	if err != nil {
		return Reconciliation{}, translate(err)
	}
	return r, nil
}
