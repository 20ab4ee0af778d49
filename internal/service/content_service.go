package service

import (
	"context"
	"strings"

	"cashmine/internal/model"
	"cashmine/pkg/apperr"
	"cashmine/pkg/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContentService manages campaigns and broadcast notifications.
type ContentService struct {
	*core
}

type CampaignInput struct {
	Title           string
	Description     string
	DiscountPercent decimal.Decimal
	BonusAmount     decimal.Decimal
	MinDeposit      decimal.Decimal
	IsActive        bool
}

func (in *CampaignInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.Validation(apperr.CodeInvalidArgument, "title is required")
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return apperr.Validation(apperr.CodeInvalidArgument, "discount_percent must be between 0 and 100")
	}
	if in.BonusAmount.IsNegative() || in.MinDeposit.IsNegative() {
		return apperr.Validation(apperr.CodeInvalidArgument, "amounts must not be negative")
	}
	return nil
}

func (in *CampaignInput) apply(c *model.Campaign) {
	c.Title = strings.TrimSpace(in.Title)
	c.Description = in.Description
	c.DiscountPercent = in.DiscountPercent.Round(2)
	c.BonusAmount = in.BonusAmount.Round(money.Scale)
	c.MinDeposit = in.MinDeposit.Round(money.Scale)
	c.IsActive = in.IsActive
}

func (s *ContentService) Campaigns(ctx context.Context, activeOnly bool) ([]*model.Campaign, error) {
	list, err := s.content.ListCampaigns(ctx, activeOnly)
	return list, translate(err)
}

func (s *ContentService) CreateCampaign(ctx context.Context, in CampaignInput) (*model.Campaign, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c := &model.Campaign{ID: uuid.NewString()}
	in.apply(c)
	if err := s.content.CreateCampaign(ctx, c); err != nil {
		return nil, translate(err)
	}
	return c, nil
}

func (s *ContentService) UpdateCampaign(ctx context.Context, id string, in CampaignInput) (*model.Campaign, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	c, err := s.content.GetCampaign(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	in.apply(c)
	if err := s.content.SaveCampaign(ctx, c); err != nil {
		return nil, translate(err)
	}
	return c, nil
}

func (s *ContentService) DeleteCampaign(ctx context.Context, id string) error {
	return translate(s.content.DeleteCampaign(ctx, id))
}

func (s *ContentService) Notify(ctx context.Context, title, message string) (*model.Notification, error) {
	title, message = strings.TrimSpace(title), strings.TrimSpace(message)
	if title == "" || message == "" {
		return nil, apperr.Validation(apperr.CodeInvalidArgument, "title and message are required")
	}
	n := &model.Notification{
		ID:       uuid.NewString(),
		Title:    title,
		Message:  message,
		IsGlobal: true,
	}
	if err := s.content.CreateNotification(ctx, n); err != nil {
		return nil, translate(err)
	}
	return n, nil
}

// Notifications returns the latest broadcasts, newest first.
func (s *ContentService) Notifications(ctx context.Context, limit int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	list, err := s.content.LatestNotifications(ctx, limit)
	return list, translate(err)
}
