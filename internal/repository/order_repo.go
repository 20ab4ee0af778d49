package repository

import (
	"context"
	"time"

	"cashmine/internal/model"

	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, offers []*model.OrderOffer) error {
	if len(offers) == 0 {
		return nil
	}
	return pick(r.db, tx).WithContext(ctx).Create(&offers).Error
}

func (r *OrderRepository) GetByOrderNo(ctx context.Context, tx *gorm.DB, orderNo string) (*model.OrderOffer, error) {
	var offer model.OrderOffer
	err := pick(r.db, tx).WithContext(ctx).Where("order_no = ?", orderNo).First(&offer).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &offer, nil
}

// ListOffered returns the user's unexpired candidates, oldest first.
func (r *OrderRepository) ListOffered(ctx context.Context, tx *gorm.DB, userID string, now time.Time) ([]*model.OrderOffer, error) {
	var offers []*model.OrderOffer
	err := pick(r.db, tx).WithContext(ctx).
		Where("user_id = ? AND status = ? AND expired_at > ?", userID, model.OrderStatusOffered, now).
		Order("id ASC").
		Find(&offers).Error
	return offers, err
}

// MarkAccepted 条件更新：只有 OFFERED 状态才能接单
func (r *OrderRepository) MarkAccepted(ctx context.Context, tx *gorm.DB, orderNo string, at time.Time) error {
	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.OrderOffer{}).
		Where("order_no = ? AND status = ?", orderNo, model.OrderStatusOffered).
		Updates(map[string]interface{}{
			"status":      model.OrderStatusAccepted,
			"accepted_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// Discard deletes a candidate that was never accepted.
func (r *OrderRepository) Discard(ctx context.Context, tx *gorm.DB, orderNo string) error {
	result := pick(r.db, tx).WithContext(ctx).
		Where("order_no = ? AND status = ?", orderNo, model.OrderStatusOffered).
		Delete(&model.OrderOffer{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// ListExpired returns order numbers of candidates that expired before now.
func (r *OrderRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var orderNos []string
	err := r.db.WithContext(ctx).
		Model(&model.OrderOffer{}).
		Where("status = ? AND expired_at <= ?", model.OrderStatusOffered, now).
		Order("expired_at ASC").
		Limit(limit).
		Pluck("order_no", &orderNos).Error
	return orderNos, err
}

// DeleteExpired removes the given candidates if they are still unaccepted
// and expired, and returns how many rows went away.
func (r *OrderRepository) DeleteExpired(ctx context.Context, orderNos []string, now time.Time) (int64, error) {
	if len(orderNos) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("order_no IN ? AND status = ? AND expired_at <= ?", orderNos, model.OrderStatusOffered, now).
		Delete(&model.OrderOffer{})
	return result.RowsAffected, result.Error
}
