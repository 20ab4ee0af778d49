package service

import (
	"context"
	"strconv"
	"time"

	"cashmine/internal/model"
	"cashmine/pkg/apperr"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MiningService struct {
	*core
}

type MiningStatus struct {
	MiningWindow
	TotalTaps int64
	TapReward decimal.Decimal
}

type TapResult struct {
	TapCount   int
	Remaining  int
	Credited   decimal.Decimal
	NewBalance decimal.Decimal
}

// Status reports the tap quota without changing it.
func (s *MiningService) Status(ctx context.Context, userID string) (*MiningStatus, error) {
	state, err := s.activities.GetOrCreateState(ctx, nil, userID)
	if err != nil {
		return nil, translate(err)
	}
	mc := s.cfg.Business.Mining
	return &MiningStatus{
		MiningWindow: currentWindow(state, s.clock(), mc.Window, mc.TapLimit),
		TotalTaps:    state.TotalTaps,
		TapReward:    mc.TapReward,
	}, nil
}

// Tap credits one tap reward if the current window still has quota. The
// first tap after a lapsed window opens a new one.
func (s *MiningService) Tap(ctx context.Context, userID string) (*TapResult, error) {
	mc := s.cfg.Business.Mining
	var result *TapResult
	err := s.runLocked(ctx, userID, func(tx *gorm.DB) error {
		now := s.clock()
		state, err := s.activities.GetOrCreateState(ctx, tx, userID)
		if err != nil {
			return err
		}

		w := currentWindow(state, now, mc.Window, mc.TapLimit)
		if w.Remaining() == 0 {
			return apperr.ErrQuotaExceeded.With(
				apperr.WithDetail("limit", strconv.Itoa(mc.TapLimit)),
				apperr.WithDetail("reset_at", w.ResetAt.Format(time.RFC3339)),
			)
		}
		if w.Start == nil {
			state.MiningWindowStart = &now
			state.MiningWindowTaps = 0
		}
		state.MiningWindowTaps++
		state.TotalTaps++
		if err := s.activities.SaveState(ctx, tx, state); err != nil {
			return err
		}

		daily, err := s.today(ctx, tx, userID)
		if err != nil {
			return err
		}
		daily.MiningTaps++
		if err := s.activities.SaveDaily(ctx, tx, daily); err != nil {
			return err
		}

		user, err := s.users.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		t, err := s.ledger.apply(ctx, tx, user, model.KindMining, mc.TapReward, "", "mining tap")
		if err != nil {
			return err
		}

		result = &TapResult{
			TapCount:   state.MiningWindowTaps,
			Remaining:  mc.TapLimit - state.MiningWindowTaps,
			Credited:   mc.TapReward,
			NewBalance: t.BalanceAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
