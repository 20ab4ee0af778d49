package repository

import (
	"context"

	"cashmine/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// GetOrCreateDaily 懒创建当天的活动记录。
func (r *ActivityRepository) GetOrCreateDaily(ctx context.Context, tx *gorm.DB, userID, day string) (*model.DailyActivity, error) {
	db := pick(r.db, tx).WithContext(ctx)
	row := &model.DailyActivity{
		UserID:        userID,
		Day:           day,
		EarningsToday: decimal.Zero,
		SpinReward:    decimal.Zero,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return nil, err
	}

	var activity model.DailyActivity
	err := db.Where("user_id = ? AND day = ?", userID, day).First(&activity).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &activity, nil
}

// FindDaily returns nil without error when the user has no activity that day.
func (r *ActivityRepository) FindDaily(ctx context.Context, tx *gorm.DB, userID, day string) (*model.DailyActivity, error) {
	var activity model.DailyActivity
	err := pick(r.db, tx).WithContext(ctx).Where("user_id = ? AND day = ?", userID, day).First(&activity).Error
	if err != nil {
		if notFound(err) == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

func (r *ActivityRepository) SaveDaily(ctx context.Context, tx *gorm.DB, activity *model.DailyActivity) error {
	return pick(r.db, tx).WithContext(ctx).
		Model(&model.DailyActivity{}).
		Where("id = ?", activity.ID).
		Updates(map[string]interface{}{
			"orders_accepted": activity.OrdersAccepted,
			"earnings_today":  activity.EarningsToday,
			"mining_taps":     activity.MiningTaps,
			"spin_claimed":    activity.SpinClaimed,
			"spin_reward":     activity.SpinReward,
		}).Error
}

// ListDaily returns the most recent days first.
func (r *ActivityRepository) ListDaily(ctx context.Context, userID string, limit int) ([]model.DailyActivity, error) {
	var rows []model.DailyActivity
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("day DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *ActivityRepository) GetOrCreateState(ctx context.Context, tx *gorm.DB, userID string) (*model.UserActivityState, error) {
	db := pick(r.db, tx).WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.UserActivityState{UserID: userID}).Error; err != nil {
		return nil, err
	}

	var state model.UserActivityState
	if err := db.Where("user_id = ?", userID).First(&state).Error; err != nil {
		return nil, notFound(err)
	}
	return &state, nil
}

func (r *ActivityRepository) SaveState(ctx context.Context, tx *gorm.DB, state *model.UserActivityState) error {
	return pick(r.db, tx).WithContext(ctx).
		Model(&model.UserActivityState{}).
		Where("user_id = ?", state.UserID).
		Updates(map[string]interface{}{
			"mining_window_start":  state.MiningWindowStart,
			"mining_window_taps":   state.MiningWindowTaps,
			"total_taps":           state.TotalTaps,
			"order_cooldown_until": state.OrderCooldownUntil,
			"total_spins":          state.TotalSpins,
		}).Error
}
