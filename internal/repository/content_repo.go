package repository

import (
	"context"

	"cashmine/internal/model"

	"gorm.io/gorm"
)

type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ContentRepository) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *ContentRepository) SaveCampaign(ctx context.Context, c *model.Campaign) error {
	result := r.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ?", c.ID).
		Select("title", "description", "discount_percent", "bonus_amount", "min_deposit", "is_active").
		Updates(c)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ContentRepository) DeleteCampaign(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Campaign{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCampaigns returns newest first; activeOnly hides disabled campaigns.
func (r *ContentRepository) ListCampaigns(ctx context.Context, activeOnly bool) ([]*model.Campaign, error) {
	var campaigns []*model.Campaign
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("created_at DESC").Find(&campaigns).Error
	return campaigns, err
}

func (r *ContentRepository) CreateNotification(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *ContentRepository) LatestNotifications(ctx context.Context, limit int) ([]*model.Notification, error) {
	var notifications []*model.Notification
	err := r.db.WithContext(ctx).
		Where("is_global = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}
