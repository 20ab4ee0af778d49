package repository

import (
	"context"
	"errors"

	"cashmine/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VIPRepository struct {
	db *gorm.DB
}

func NewVIPRepository(db *gorm.DB) *VIPRepository {
	return &VIPRepository{db: db}
}

// List returns all tiers ordered by level.
func (r *VIPRepository) List(ctx context.Context, tx *gorm.DB) ([]model.VIPLevel, error) {
	var levels []model.VIPLevel
	err := pick(r.db, tx).WithContext(ctx).Order("level ASC").Find(&levels).Error
	return levels, err
}

func (r *VIPRepository) Get(ctx context.Context, tx *gorm.DB, level int) (*model.VIPLevel, error) {
	var v model.VIPLevel
	err := pick(r.db, tx).WithContext(ctx).Where("level = ?", level).First(&v).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r *VIPRepository) Create(ctx context.Context, level *model.VIPLevel) error {
	err := r.db.WithContext(ctx).Create(level).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// Save overwrites every column of the tier, including false and zero values.
func (r *VIPRepository) Save(ctx context.Context, level *model.VIPLevel) error {
	result := r.db.WithContext(ctx).
		Model(&model.VIPLevel{}).
		Where("level = ?", level.Level).
		Select("name", "deposit_required", "max_daily_earnings", "orders_per_day", "commission_per_order", "is_active").
		Updates(level)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *VIPRepository) Delete(ctx context.Context, level int) error {
	result := r.db.WithContext(ctx).Where("level = ?", level).Delete(&model.VIPLevel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedDefaults inserts the default tiers that do not exist yet.
func (r *VIPRepository) SeedDefaults(ctx context.Context) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.VIPLevel{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	levels := model.DefaultVIPLevels()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&levels).Error
}
