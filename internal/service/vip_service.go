package service

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"cashmine/internal/model"
	"cashmine/internal/repository"
	"cashmine/pkg/apperr"
	"cashmine/pkg/money"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ReasonNotEnoughDeposit = "NotEnoughDeposit"
	ReasonAlreadyMaxLevel  = "AlreadyMaxLevel"
)

// UpgradeDecision is the outcome of EvaluateUpgrade. When not eligible and
// Reason is NotEnoughDeposit, NextLevel is the closest level still locked.
type UpgradeDecision struct {
	Eligible  bool
	NextLevel *model.VIPLevel
	Reason    string
}

// EvaluateUpgrade picks the highest active level above the user's current one
// whose deposit requirement is met. It never proposes a lower level.
func EvaluateUpgrade(user *model.User, levels []model.VIPLevel) UpgradeDecision {
	var candidates []model.VIPLevel
	for _, lv := range levels {
		if lv.IsActive && lv.Level > user.VIPLevel {
			candidates = append(candidates, lv)
		}
	}
	if len(candidates) == 0 {
		return UpgradeDecision{Reason: ReasonAlreadyMaxLevel}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Level < candidates[j].Level })

	var target *model.VIPLevel
	for i := range candidates {
		if user.DepositAmount.GreaterThanOrEqual(candidates[i].DepositRequired) {
			target = &candidates[i]
		}
	}
	if target == nil {
		return UpgradeDecision{NextLevel: &candidates[0], Reason: ReasonNotEnoughDeposit}
	}
	return UpgradeDecision{Eligible: true, NextLevel: target}
}

type VIPService struct {
	*core
}

type UpgradeResult struct {
	PreviousLevel int
	Level         model.VIPLevel
}

// EnsureDefaults seeds the default tiers into an empty table.
func (s *VIPService) EnsureDefaults(ctx context.Context) error {
	return s.vips.SeedDefaults(ctx)
}

// Levels returns active tiers, or every tier when all is set.
func (s *VIPService) Levels(ctx context.Context, all bool) ([]model.VIPLevel, error) {
	levels, err := s.vips.List(ctx, nil)
	if err != nil {
		return nil, translate(err)
	}
	if all {
		return levels, nil
	}
	active := levels[:0]
	for _, lv := range levels {
		if lv.IsActive {
			active = append(active, lv)
		}
	}
	return active, nil
}

// Upgrade raises the user to the best level their deposit qualifies for.
func (s *VIPService) Upgrade(ctx context.Context, userID string) (*UpgradeResult, error) {
	var result *UpgradeResult
	err := s.runLocked(ctx, userID, func(tx *gorm.DB) error {
		user, err := s.users.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		levels, err := s.vips.List(ctx, tx)
		if err != nil {
			return err
		}

		decision := EvaluateUpgrade(user, levels)
		if !decision.Eligible {
			return upgradeError(user, decision)
		}
		if err := s.users.RaiseVIPLevel(ctx, tx, user.ID, decision.NextLevel.Level); err != nil {
			return err
		}
		result = &UpgradeResult{PreviousLevel: user.VIPLevel, Level: *decision.NextLevel}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("vip upgraded",
		zap.String("user_id", userID),
		zap.Int("from", result.PreviousLevel),
		zap.Int("to", result.Level.Level),
	)
	return result, nil
}

func upgradeError(user *model.User, d UpgradeDecision) error {
	if d.Reason == ReasonAlreadyMaxLevel {
		return apperr.ErrAlreadyMaxLevel.With(apperr.WithDetail("reason", d.Reason))
	}
	missing := d.NextLevel.DepositRequired.Sub(user.DepositAmount)
	return apperr.ErrNotEnoughDeposit.With(
		apperr.WithMessage("deposit "+money.Format(missing)+" more to reach "+d.NextLevel.Name),
		apperr.WithDetail("reason", d.Reason),
		apperr.WithDetail("next_level", strconv.Itoa(d.NextLevel.Level)),
		apperr.WithDetail("deposit_required", money.Format(d.NextLevel.DepositRequired)),
		apperr.WithDetail("deposit_amount", money.Format(user.DepositAmount)),
	)
}

// tierOf returns the tier a user currently holds. Level 0 and unknown
// levels come back nil.
func (c *core) tierOf(ctx context.Context, tx *gorm.DB, level int) (*model.VIPLevel, error) {
	if level <= 0 {
		return nil, nil
	}
	lv, err := c.vips.Get(ctx, tx, level)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return lv, err
}

// ============================================================================
// 管理端：VIP 等级维护
// ============================================================================

type VIPLevelInput struct {
	Level              int
	Name               string
	DepositRequired    decimal.Decimal
	MaxDailyEarnings   decimal.Decimal
	OrdersPerDay       int
	CommissionPerOrder decimal.Decimal
	IsActive           bool
}

func (in *VIPLevelInput) validate() error {
	switch {
	case in.Level <= 0:
		return apperr.Validation(apperr.CodeInvalidArgument, "level must be positive")
	case in.Name == "":
		return apperr.Validation(apperr.CodeInvalidArgument, "name is required")
	case in.DepositRequired.IsNegative(), !in.MaxDailyEarnings.IsPositive(), !in.CommissionPerOrder.IsPositive():
		return apperr.Validation(apperr.CodeInvalidArgument, "amounts must be positive")
	case in.OrdersPerDay <= 0:
		return apperr.Validation(apperr.CodeInvalidArgument, "orders_per_day must be positive")
	}
	return nil
}

func (in *VIPLevelInput) toModel() model.VIPLevel {
	return model.VIPLevel{
		Level:              in.Level,
		Name:               in.Name,
		DepositRequired:    in.DepositRequired.Round(money.Scale),
		MaxDailyEarnings:   in.MaxDailyEarnings.Round(money.Scale),
		OrdersPerDay:       in.OrdersPerDay,
		CommissionPerOrder: in.CommissionPerOrder.Round(money.Scale),
		IsActive:           in.IsActive,
	}
}

func (s *VIPService) CreateLevel(ctx context.Context, in VIPLevelInput) (*model.VIPLevel, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	levels, err := s.vips.List(ctx, nil)
	if err != nil {
		return nil, translate(err)
	}
	for _, lv := range levels {
		if lv.Level == in.Level {
			return nil, apperr.ErrDuplicateLevel
		}
	}
	lv := in.toModel()
	if err := checkLadder(append(levels, lv)); err != nil {
		return nil, err
	}
	if err := s.vips.Create(ctx, &lv); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.ErrDuplicateLevel
		}
		return nil, translate(err)
	}
	return &lv, nil
}

func (s *VIPService) UpdateLevel(ctx context.Context, in VIPLevelInput) (*model.VIPLevel, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	levels, err := s.vips.List(ctx, nil)
	if err != nil {
		return nil, translate(err)
	}
	lv := in.toModel()
	found := false
	for i := range levels {
		if levels[i].Level == in.Level {
			levels[i] = lv
			found = true
		}
	}
	if !found {
		return nil, apperr.ErrNotFound
	}
	if err := checkLadder(levels); err != nil {
		return nil, err
	}
	if err := s.vips.Save(ctx, &lv); err != nil {
		return nil, translate(err)
	}
	return &lv, nil
}

func (s *VIPService) DeleteLevel(ctx context.Context, level int) error {
	holders, err := s.users.CountByVIPLevel(ctx, level)
	if err != nil {
		return translate(err)
	}
	if holders > 0 {
		return apperr.ErrLevelInUse.With(apperr.WithDetail("users", strconv.FormatInt(holders, 10)))
	}
	return translate(s.vips.Delete(ctx, level))
}

// checkLadder requires deposit_required to strictly increase with level.
func checkLadder(levels []model.VIPLevel) error {
	sorted := append([]model.VIPLevel(nil), levels...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	for i := 1; i < len(sorted); i++ {
		if !sorted[i].DepositRequired.GreaterThan(sorted[i-1].DepositRequired) {
			return apperr.Validation(apperr.CodeInvalidArgument,
				"deposit_required must increase with level",
				apperr.WithDetail("level", strconv.Itoa(sorted[i].Level)),
			)
		}
	}
	return nil
}
