package service

import (
	"context"
	"strconv"
	"time"

	"cashmine/internal/model"
	"cashmine/pkg/apperr"
	"cashmine/pkg/money"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================================
// 每日活动与限额
// ============================================================================
//
// Daily counters live in one DailyActivity row per UTC day, created on first
// use, so a new day starts from zero without any sweep. The mining window and
// the reject cooldown do not follow the calendar and live on
// UserActivityState instead.

// MiningWindow is the tap quota state at a point in time.
type MiningWindow struct {
	Start   *time.Time
	Taps    int
	Limit   int
	ResetAt *time.Time
}

func (w MiningWindow) Remaining() int {
	if w.Taps >= w.Limit {
		return 0
	}
	return w.Limit - w.Taps
}

// currentWindow returns the window in effect at now. A window that started
// length or longer ago has lapsed and counts as empty.
func currentWindow(state *model.UserActivityState, now time.Time, length time.Duration, limit int) MiningWindow {
	w := MiningWindow{Limit: limit}
	if state.MiningWindowStart == nil || now.Sub(*state.MiningWindowStart) >= length {
		return w
	}
	start := *state.MiningWindowStart
	reset := start.Add(length)
	w.Start = &start
	w.Taps = state.MiningWindowTaps
	w.ResetAt = &reset
	return w
}

// cooldownRemaining is zero once the reject cooldown has passed.
func cooldownRemaining(state *model.UserActivityState, now time.Time) time.Duration {
	if state.OrderCooldownUntil == nil || !now.Before(*state.OrderCooldownUntil) {
		return 0
	}
	return state.OrderCooldownUntil.Sub(now)
}

func cooldownError(left time.Duration) error {
	seconds := int((left + time.Second - 1) / time.Second)
	return apperr.ErrCooldownActive.With(apperr.WithDetail("wait_seconds", strconv.Itoa(seconds)))
}

// checkOrderCaps allows one more order paying cashback under the tier's limits.
func checkOrderCaps(daily *model.DailyActivity, vip *model.VIPLevel, cashback decimal.Decimal) error {
	if daily.OrdersAccepted >= vip.OrdersPerDay {
		return apperr.ErrDailyLimit.With(
			apperr.WithMessage("daily order limit reached"),
			apperr.WithDetail("orders_accepted", strconv.Itoa(daily.OrdersAccepted)),
			apperr.WithDetail("orders_per_day", strconv.Itoa(vip.OrdersPerDay)),
		)
	}
	if daily.EarningsToday.Add(cashback).GreaterThan(vip.MaxDailyEarnings) {
		return apperr.ErrDailyLimit.With(
			apperr.WithMessage("daily earnings limit reached"),
			apperr.WithDetail("earnings_today", money.Format(daily.EarningsToday)),
			apperr.WithDetail("max_daily_earnings", money.Format(vip.MaxDailyEarnings)),
		)
	}
	return nil
}

// remainingCap is how much the user may still earn from orders today.
func remainingCap(daily *model.DailyActivity, vip *model.VIPLevel) decimal.Decimal {
	left := vip.MaxDailyEarnings.Sub(daily.EarningsToday)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

func (c *core) today(ctx context.Context, tx *gorm.DB, userID string) (*model.DailyActivity, error) {
	return c.activities.GetOrCreateDaily(ctx, tx, userID, DayBucket(c.clock()))
}

// todayEarnings reads today's order earnings without creating a row.
func (c *core) todayEarnings(ctx context.Context, userID string) (decimal.Decimal, error) {
	daily, err := c.activities.FindDaily(ctx, nil, userID, DayBucket(c.clock()))
	if err != nil || daily == nil {
		return decimal.Zero, err
	}
	return daily.EarningsToday, nil
}
