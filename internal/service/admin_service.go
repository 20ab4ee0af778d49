package service

import (
	"context"
	"errors"

	"cashmine/internal/model"
	"cashmine/internal/repository"
	"cashmine/pkg/apperr"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AdminService struct {
	*core
}

type PlatformStats struct {
	TotalUsers         int64
	PendingWithdrawals int64
	PendingDeposits    int64
	TotalBalance       decimal.Decimal
}

func (s *AdminService) ListUsers(ctx context.Context, page, pageSize int) ([]*model.User, int64, error) {
	users, total, err := s.users.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, translate(err)
	}
	return users, total, nil
}

func (s *AdminService) Stats(ctx context.Context) (*PlatformStats, error) {
	var (
		stats PlatformStats
		err   error
	)
	if stats.TotalUsers, err = s.users.Count(ctx); err != nil {
		return nil, translate(err)
	}
	if stats.PendingWithdrawals, err = s.transactions.CountPending(ctx, model.KindWithdraw); err != nil {
		return nil, translate(err)
	}
	if stats.PendingDeposits, err = s.transactions.CountPending(ctx, model.KindDeposit); err != nil {
		return nil, translate(err)
	}
	if stats.TotalBalance, err = s.users.SumBalance(ctx); err != nil {
		return nil, translate(err)
	}
	return &stats, nil
}

func (s *AdminService) SetRole(ctx context.Context, userID, role string) error {
	if role != model.RoleUser && role != model.RoleAdmin {
		return apperr.Validation(apperr.CodeInvalidArgument, "role must be user or admin")
	}
	if _, err := s.users.GetByID(ctx, nil, userID); err != nil {
		return translate(err)
	}
	return translate(s.users.SetRole(ctx, userID, role))
}

// SetVIPLevel overrides a user's level in either direction. Level 0 removes
// the tier.
func (s *AdminService) SetVIPLevel(ctx context.Context, adminID, userID string, level int) error {
	if level < 0 {
		return apperr.Validation(apperr.CodeInvalidArgument, "level must not be negative")
	}
	err := s.runLocked(ctx, userID, func(tx *gorm.DB) error {
		if _, err := s.users.GetByIDForUpdate(ctx, tx, userID); err != nil {
			return err
		}
		if level > 0 {
			if _, err := s.vips.Get(ctx, tx, level); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperr.ErrNotFound.With(apperr.WithMessage("VIP level not found"))
				}
				return err
			}
		}
		return s.users.SetVIPLevel(ctx, tx, userID, level)
	})
	if err != nil {
		return err
	}
	s.log.Info("vip level overridden",
		zap.String("admin_id", adminID),
		zap.String("user_id", userID),
		zap.Int("level", level),
	)
	return nil
}

// AdjustBalance books a manual ledger entry for a user.
func (s *AdminService) AdjustBalance(ctx context.Context, adminID, userID string, delta decimal.Decimal, kind, remark string) (decimal.Decimal, error) {
	balance, err := s.ledger.ApplyDelta(ctx, userID, delta, kind, remark)
	if err != nil {
		return decimal.Zero, err
	}
	s.log.Info("manual ledger entry",
		zap.String("admin_id", adminID),
		zap.String("user_id", userID),
		zap.String("type", kind),
		zap.String("delta", delta.String()),
	)
	return balance, nil
}
