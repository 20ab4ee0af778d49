package service

import (
	"context"

	"cashmine/internal/config"
	"cashmine/internal/model"
	"cashmine/pkg/apperr"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SpinService struct {
	*core
}

type SpinResult struct {
	Reward     decimal.Decimal
	NewBalance decimal.Decimal
	Day        string
}

type SpinStatus struct {
	Day        string
	Claimed    bool
	Reward     decimal.Decimal
	TotalSpins int
	Prizes     []config.PrizeConfig
}

// Spin draws today's prize server side and credits it. One spin per UTC day.
func (s *SpinService) Spin(ctx context.Context, userID string) (*SpinResult, error) {
	var result *SpinResult
	err := s.runLocked(ctx, userID, func(tx *gorm.DB) error {
		daily, err := s.today(ctx, tx, userID)
		if err != nil {
			return err
		}
		if daily.SpinClaimed {
			return apperr.ErrAlreadyClaimed.With(apperr.WithDetail("day", daily.Day))
		}

		reward, err := drawPrize(s.cfg.Business.Spin.Prizes, s.random)
		if err != nil {
			return apperr.Internal("draw spin prize", err)
		}

		daily.SpinClaimed = true
		daily.SpinReward = reward
		if err := s.activities.SaveDaily(ctx, tx, daily); err != nil {
			return err
		}
		state, err := s.activities.GetOrCreateState(ctx, tx, userID)
		if err != nil {
			return err
		}
		state.TotalSpins++
		if err := s.activities.SaveState(ctx, tx, state); err != nil {
			return err
		}

		user, err := s.users.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		t, err := s.ledger.apply(ctx, tx, user, model.KindSpin, reward, daily.Day, "daily spin")
		if err != nil {
			return err
		}
		result = &SpinResult{Reward: reward, NewBalance: t.BalanceAfter, Day: daily.Day}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("daily spin", zap.String("user_id", userID), zap.String("reward", result.Reward.String()))
	return result, nil
}

func (s *SpinService) Status(ctx context.Context, userID string) (*SpinStatus, error) {
	day := DayBucket(s.clock())
	status := &SpinStatus{Day: day, Reward: decimal.Zero, Prizes: s.cfg.Business.Spin.Prizes}

	daily, err := s.activities.FindDaily(ctx, nil, userID, day)
	if err != nil {
		return nil, translate(err)
	}
	if daily != nil {
		status.Claimed = daily.SpinClaimed
		status.Reward = daily.SpinReward
	}
	state, err := s.activities.GetOrCreateState(ctx, nil, userID)
	if err != nil {
		return nil, translate(err)
	}
	status.TotalSpins = state.TotalSpins
	return status, nil
}

// drawPrize picks a prize with probability proportional to its weight.
func drawPrize(prizes []config.PrizeConfig, random Random) (decimal.Decimal, error) {
	var total int64
	for _, p := range prizes {
		total += int64(p.Weight)
	}
	n, err := random(total)
	if err != nil {
		return decimal.Zero, err
	}
	for _, p := range prizes {
		if n < int64(p.Weight) {
			return p.Amount, nil
		}
		n -= int64(p.Weight)
	}
	return prizes[len(prizes)-1].Amount, nil
}
