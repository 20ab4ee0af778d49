package service

import (
	"context"
	"errors"
	"regexp"

	"cashmine/internal/model"
	"cashmine/internal/repository"
	"cashmine/pkg/apperr"
	"cashmine/pkg/money"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var walletPattern = regexp.MustCompile(`^[A-Za-z0-9]{10,64}$`)

type TransactionService struct {
	*core
}

type DepositResult struct {
	Transaction   *model.Transaction
	WalletAddress string
}

type WithdrawResult struct {
	Transaction *model.Transaction
	Available   decimal.Decimal
}

// PendingRequest is a pending transaction with the requester's login.
type PendingRequest struct {
	*model.Transaction
	UserLogin string
}

func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(money.Scale))
}

// Deposit records a deposit request. The balance changes only on approval.
func (s *TransactionService) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*DepositResult, error) {
	if !validAmount(amount) {
		return nil, apperr.ErrInvalidAmount
	}
	if amount.LessThan(s.cfg.Business.MinDeposit) {
		return nil, apperr.ErrBelowMinimum.With(
			apperr.WithMessage("minimum deposit is "+money.Format(s.cfg.Business.MinDeposit)),
			apperr.WithDetail("minimum", money.Format(s.cfg.Business.MinDeposit)),
		)
	}

	var result *DepositResult
	err := s.runLocked(ctx, userID, func(tx *gorm.DB) error {
		user, err := s.users.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		t, err := s.ledger.openPending(ctx, tx, user, model.KindDeposit, amount, s.cfg.Business.DepositWalletAddress, "deposit request")
		if err != nil {
			return err
		}
		result = &DepositResult{Transaction: t, WalletAddress: s.cfg.Business.DepositWalletAddress}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Withdraw records a withdrawal request and holds the amount until an admin
// resolves it.
func (s *TransactionService) Withdraw(ctx context.Context, userID string, amount decimal.Decimal, wallet string) (*WithdrawResult, error) {
	if !validAmount(amount) {
		return nil, apperr.ErrInvalidAmount
	}
	if amount.LessThan(s.cfg.Business.MinWithdraw) {
		return nil, apperr.ErrBelowMinimum.With(
			apperr.WithMessage("minimum withdrawal is "+money.Format(s.cfg.Business.MinWithdraw)),
			apperr.WithDetail("minimum", money.Format(s.cfg.Business.MinWithdraw)),
		)
	}
	if !walletPattern.MatchString(wallet) {
		return nil, apperr.ErrInvalidAddress
	}

	var result *WithdrawResult
	err := s.runLocked(ctx, userID, func(tx *gorm.DB) error {
		user, err := s.users.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		t, err := s.ledger.openPending(ctx, tx, user, model.KindWithdraw, amount, wallet, "withdraw request")
		if err != nil {
			if errors.Is(err, apperr.ErrInsufficientFunds) {
				return apperr.ErrInsufficientFunds.With(
					apperr.WithDetail("available", money.Format(user.Available())),
				)
			}
			return err
		}
		if err := s.users.SetWalletAddress(ctx, tx, user.ID, wallet); err != nil {
			return err
		}
		result = &WithdrawResult{Transaction: t, Available: user.Available()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *TransactionService) History(ctx context.Context, userID string, page, pageSize int) ([]*model.Transaction, int64, error) {
	list, total, err := s.transactions.ListByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, translate(err)
	}
	return list, total, nil
}

// Approve completes a pending deposit or withdrawal. A non-empty kind
// restricts the request to transactions of that kind.
func (s *TransactionService) Approve(ctx context.Context, adminID, kind, transactionNo, note string) (*model.Transaction, error) {
	return s.resolve(ctx, adminID, kind, transactionNo, true, note)
}

// Reject closes a pending request without moving money; a withdrawal hold
// is released.
func (s *TransactionService) Reject(ctx context.Context, adminID, kind, transactionNo, note string) (*model.Transaction, error) {
	return s.resolve(ctx, adminID, kind, transactionNo, false, note)
}

func (s *TransactionService) resolve(ctx context.Context, adminID, kind, transactionNo string, approve bool, note string) (*model.Transaction, error) {
	t, err := s.transactions.GetByNo(ctx, nil, transactionNo)
	if err != nil {
		return nil, translate(err)
	}
	if kind != "" && t.Kind != kind {
		return nil, apperr.ErrNotFound.With(apperr.WithMessage(kind + " request not found"))
	}
	if t.Status != model.StatusPending {
		return nil, apperr.ErrAlreadyResolved.With(apperr.WithDetail("status", t.Status))
	}

	// 锁住用户后重新读取流水，防止重复审批
	err = s.runLocked(ctx, t.UserID, func(tx *gorm.DB) error {
		locked, err := s.transactions.GetByNoForUpdate(ctx, tx, transactionNo)
		if err != nil {
			return err
		}
		user, err := s.users.GetByIDForUpdate(ctx, tx, locked.UserID)
		if err != nil {
			return err
		}
		if err := s.ledger.resolve(ctx, tx, user, locked, approve, adminID, note); err != nil {
			if errors.Is(err, repository.ErrStateChanged) {
				return apperr.ErrAlreadyResolved
			}
			return err
		}
		t = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("transaction resolved",
		zap.String("transaction_no", t.TransactionNo),
		zap.String("type", t.Kind),
		zap.String("status", t.Status),
		zap.String("admin_id", adminID),
	)
	return t, nil
}

// ListPending returns pending requests of kind, oldest first. An empty kind
// lists both deposits and withdrawals.
func (s *TransactionService) ListPending(ctx context.Context, kind string, limit int) ([]PendingRequest, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	list, err := s.transactions.ListPending(ctx, kind, limit)
	if err != nil {
		return nil, translate(err)
	}

	logins := make(map[string]string)
	out := make([]PendingRequest, 0, len(list))
	for _, t := range list {
		login, ok := logins[t.UserID]
		if !ok {
			login = "unknown"
			if u, err := s.users.GetByID(ctx, nil, t.UserID); err == nil {
				login = u.Login
			} else if !errors.Is(err, repository.ErrNotFound) {
				return nil, translate(err)
			}
			logins[t.UserID] = login
		}
		out = append(out, PendingRequest{Transaction: t, UserLogin: login})
	}
	return out, nil
}
