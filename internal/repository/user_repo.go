package repository

import (
	"context"
	"errors"
	"time"

	"cashmine/internal/model"
	"cashmine/pkg/money"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, tx *gorm.DB, user *model.User) error {
	err := pick(r.db, tx).WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.User, error) {
	var user model.User
	err := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("login = ?", login).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetByIDForUpdate 加行锁读取，必须在事务内调用
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id string) (*model.User, error) {
	var user model.User
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// SaveFunds writes the funds columns of user if nobody else changed the row
// since it was read, and bumps the version on success.
func (r *UserRepository) SaveFunds(ctx context.Context, tx *gorm.DB, user *model.User) error {
	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND version = ?", user.ID, user.Version).
		Updates(map[string]interface{}{
			"balance":        user.Balance,
			"frozen_amount":  user.FrozenAmount,
			"total_earnings": user.TotalEarnings,
			"deposit_amount": user.DepositAmount,
			"version":        user.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	user.Version++
	return nil
}

// RaiseVIPLevel only ever moves the level up.
func (r *UserRepository) RaiseVIPLevel(ctx context.Context, tx *gorm.DB, id string, level int) error {
	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND vip_level < ?", id, level).
		Update("vip_level", level)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

// SetVIPLevel is the admin override and may move the level either way.
func (r *UserRepository) SetVIPLevel(ctx context.Context, tx *gorm.DB, id string, level int) error {
	return pick(r.db, tx).WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("vip_level", level).Error
}

func (r *UserRepository) SetRole(ctx context.Context, id, role string) error {
	return r.update(ctx, id, map[string]interface{}{"role": role})
}

func (r *UserRepository) SetWalletAddress(ctx context.Context, tx *gorm.DB, id, address string) error {
	return pick(r.db, tx).WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("wallet_address", address).Error
}

func (r *UserRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{"last_login_at": at})
}

func (r *UserRepository) update(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

func (r *UserRepository) List(ctx context.Context, page, pageSize int) ([]*model.User, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)

	var users []*model.User
	var total int64

	query := r.db.WithContext(ctx).Model(&model.User{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error
	return users, total, err
}

// ListUpdatedAfter pages through users whose row changed at or after since,
// ordered by (updated_at, id). Pass the last row of the previous page as the
// cursor; an empty afterID starts at since.
func (r *UserRepository) ListUpdatedAfter(ctx context.Context, since time.Time, afterID string, limit int) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Where("updated_at > ? OR (updated_at = ? AND id > ?)", since, since, afterID).
		Order("updated_at ASC, id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Count(&total).Error
	return total, err
}

func (r *UserRepository) SumBalance(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Select("SUM(balance)").
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal.Round(money.Scale), nil
}

func (r *UserRepository) CountByVIPLevel(ctx context.Context, level int) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("vip_level = ?", level).Count(&total).Error
	return total, err
}
