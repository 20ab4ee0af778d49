package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cashmine/internal/model"
	"cashmine/internal/repository"
	"cashmine/pkg/apperr"
	"cashmine/pkg/idgen"
	"cashmine/pkg/money"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type product struct {
	Name      string
	BasePrice decimal.Decimal
	Category  string
}

var catalog = []product{
	{"Faberlic Expert Pharma Krem", money.MustParse("45.99"), "Kosmetika"},
	{"Oriflame The ONE Ruj", money.MustParse("18.50"), "Makeup"},
	{"Faberlic Oxygen Serum", money.MustParse("67.00"), "Dəri Baxımı"},
	{"Oriflame Eclat Parfüm", money.MustParse("89.99"), "Parfüm"},
	{"Faberlic Fitness Body Krem", money.MustParse("32.50"), "Bədən Baxımı"},
	{"Oriflame Giordani Gold Parfüm", money.MustParse("125.00"), "Parfüm"},
	{"Faberlic Expert Pharma Şampun", money.MustParse("28.75"), "Saç Baxımı"},
	{"Oriflame NovAge Serum", money.MustParse("95.50"), "Dəri Baxımı"},
	{"Faberlic Home Aromatherapy", money.MustParse("41.25"), "Ev üçün"},
	{"Oriflame The ONE İllumina", money.MustParse("22.99"), "Makeup"},
}

type OrderService struct {
	*core
}

// Offer is a candidate order with its QR code rendered as a base64 PNG.
type Offer struct {
	*model.OrderOffer
	QRCode string
}

type AvailableOrders struct {
	Offers            []Offer
	OrdersAccepted    int
	OrdersPerDay      int
	DailyEarnings     decimal.Decimal
	MaxDailyEarnings  decimal.Decimal
	CooldownRemaining time.Duration
	Message           string
}

type AcceptResult struct {
	Order          *model.OrderOffer
	Cashback       decimal.Decimal
	NewBalance     decimal.Decimal
	OrdersAccepted int
	DailyEarnings  decimal.Decimal
}

type RejectResult struct {
	OrderNo       string
	WaitSeconds   int
	CooldownUntil time.Time
}

// ListAvailable serves the user's open offers and tops them up with new ones
// as far as today's order count and earnings cap allow.
func (s *OrderService) ListAvailable(ctx context.Context, userID string) (*AvailableOrders, error) {
	var result *AvailableOrders
	err := s.runLocked(ctx, userID, func(tx *gorm.DB) error {
		user, err := s.users.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		state, err := s.activities.GetOrCreateState(ctx, tx, userID)
		if err != nil {
			return err
		}
		now := s.clock()
		result = &AvailableOrders{CooldownRemaining: cooldownRemaining(state, now)}

		vip, err := s.tierOf(ctx, tx, user.VIPLevel)
		if err != nil {
			return err
		}
		if vip == nil {
			result.Message = apperr.ErrVIPRequired.Message
			return nil
		}
		daily, err := s.today(ctx, tx, userID)
		if err != nil {
			return err
		}
		result.OrdersAccepted = daily.OrdersAccepted
		result.OrdersPerDay = vip.OrdersPerDay
		result.DailyEarnings = daily.EarningsToday
		result.MaxDailyEarnings = vip.MaxDailyEarnings

		want := vip.OrdersPerDay - daily.OrdersAccepted
		if want > s.cfg.Business.OffersPerFetch {
			want = s.cfg.Business.OffersPerFetch
		}
		budget := remainingCap(daily, vip)
		if want <= 0 || !budget.IsPositive() {
			result.Message = apperr.ErrDailyLimit.Message
			return nil
		}

		existing, err := s.orders.ListOffered(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		var served []*model.OrderOffer
		for _, o := range existing {
			if len(served) == want {
				break
			}
			if o.Cashback.GreaterThan(budget) {
				continue
			}
			served = append(served, o)
			budget = budget.Sub(o.Cashback)
		}

		var fresh []*model.OrderOffer
		for len(served)+len(fresh) < want && budget.IsPositive() {
			o, err := s.generate(userID, vip, budget, now)
			if err != nil {
				return err
			}
			fresh = append(fresh, o)
			budget = budget.Sub(o.Cashback)
		}
		if err := s.orders.Create(ctx, tx, fresh); err != nil {
			return fmt.Errorf("create offers: %w", err)
		}

		for _, o := range append(served, fresh...) {
			offer, err := withQRCode(o)
			if err != nil {
				return err
			}
			result.Offers = append(result.Offers, offer)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Accept settles an offer: the cashback is credited through the ledger and
// counted against today's limits, all in one transaction.
func (s *OrderService) Accept(ctx context.Context, userID, orderNo string) (*AcceptResult, error) {
	var result *AcceptResult
	err := s.runLocked(ctx, userID, func(tx *gorm.DB) error {
		now := s.clock()
		state, err := s.activities.GetOrCreateState(ctx, tx, userID)
		if err != nil {
			return err
		}
		if left := cooldownRemaining(state, now); left > 0 {
			return cooldownError(left)
		}

		user, err := s.users.GetByIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		vip, err := s.tierOf(ctx, tx, user.VIPLevel)
		if err != nil {
			return err
		}
		if vip == nil {
			return apperr.ErrVIPRequired
		}
		offer, err := s.openOffer(ctx, tx, userID, orderNo, now)
		if err != nil {
			return err
		}

		daily, err := s.today(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := checkOrderCaps(daily, vip, offer.Cashback); err != nil {
			return err
		}

		if err := s.orders.MarkAccepted(ctx, tx, offer.OrderNo, now); err != nil {
			return err
		}
		t, err := s.ledger.apply(ctx, tx, user, model.KindOrder, offer.Cashback, offer.OrderNo, offer.ProductName)
		if err != nil {
			return err
		}
		daily.OrdersAccepted++
		daily.EarningsToday = daily.EarningsToday.Add(offer.Cashback)
		if err := s.activities.SaveDaily(ctx, tx, daily); err != nil {
			return err
		}

		offer.Status = model.OrderStatusAccepted
		offer.AcceptedAt = &now
		result = &AcceptResult{
			Order:          offer,
			Cashback:       offer.Cashback,
			NewBalance:     t.BalanceAfter,
			OrdersAccepted: daily.OrdersAccepted,
			DailyEarnings:  daily.EarningsToday,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order accepted",
		zap.String("user_id", userID),
		zap.String("order_no", orderNo),
		zap.String("cashback", money.Format(result.Cashback)),
	)
	return result, nil
}

// Reject discards an offer and starts the reject cooldown.
func (s *OrderService) Reject(ctx context.Context, userID, orderNo string) (*RejectResult, error) {
	var result *RejectResult
	err := s.runLocked(ctx, userID, func(tx *gorm.DB) error {
		now := s.clock()
		state, err := s.activities.GetOrCreateState(ctx, tx, userID)
		if err != nil {
			return err
		}
		if left := cooldownRemaining(state, now); left > 0 {
			return cooldownError(left)
		}
		offer, err := s.openOffer(ctx, tx, userID, orderNo, now)
		if err != nil {
			return err
		}
		if err := s.orders.Discard(ctx, tx, offer.OrderNo); err != nil {
			return err
		}

		until := now.Add(s.cfg.Business.RejectCooldown)
		state.OrderCooldownUntil = &until
		if err := s.activities.SaveState(ctx, tx, state); err != nil {
			return err
		}
		result = &RejectResult{
			OrderNo:       offer.OrderNo,
			WaitSeconds:   int(s.cfg.Business.RejectCooldown / time.Second),
			CooldownUntil: until,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PurgeExpired deletes up to limit offers that expired unaccepted.
func (s *OrderService) PurgeExpired(ctx context.Context, limit int) (int64, error) {
	now := s.clock()
	orderNos, err := s.orders.ListExpired(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	return s.orders.DeleteExpired(ctx, orderNos, now)
}

// openOffer loads an offer the user may still act on.
func (s *OrderService) openOffer(ctx context.Context, tx *gorm.DB, userID, orderNo string, now time.Time) (*model.OrderOffer, error) {
	offer, err := s.orders.GetByOrderNo(ctx, tx, orderNo)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && offer.UserID != userID) {
		return nil, apperr.ErrNotFound.With(apperr.WithMessage("order not found"))
	}
	if err != nil {
		return nil, err
	}
	if !model.CanTransitionTo(offer.Status, model.OrderStatusAccepted) {
		return nil, apperr.ErrAlreadyResolved.With(apperr.WithMessage("order already accepted"))
	}
	if !now.Before(offer.ExpiredAt) {
		return nil, apperr.ErrNotFound.With(apperr.WithMessage("order expired"))
	}
	return offer, nil
}

func (s *OrderService) generate(userID string, vip *model.VIPLevel, budget decimal.Decimal, now time.Time) (*model.OrderOffer, error) {
	pick, err := s.random(int64(len(catalog)))
	if err != nil {
		return nil, err
	}
	p := catalog[pick]

	// 价格浮动 0.90 ~ 1.20
	step, err := s.random(301)
	if err != nil {
		return nil, err
	}
	factor := decimal.NewFromInt(900 + step).Shift(-3)
	price := p.BasePrice.Mul(factor).Round(money.Scale)

	cashback, err := s.cashbackFor(vip)
	if err != nil {
		return nil, err
	}
	if cashback.GreaterThan(budget) {
		cashback = budget
	}

	serial, err := s.random(90000)
	if err != nil {
		return nil, err
	}
	code := fmt.Sprintf("%s%d", categoryPrefix(p.Category), 10000+serial)
	orderNo := idgen.GenerateOrderNo()

	return &model.OrderOffer{
		OrderNo:      orderNo,
		UserID:       userID,
		ProductName:  p.Name,
		ProductCode:  code,
		ProductPrice: price,
		Cashback:     cashback,
		Category:     p.Category,
		QRPayload:    qrPayload(orderNo, code, price, cashback),
		Status:       model.OrderStatusOffered,
		ExpiredAt:    now.Add(s.cfg.Business.OrderOfferTTL),
	}, nil
}

// cashbackFor is the tier commission, optionally varied by up to
// ±cashback_variation of itself. It never drops below one cent.
func (s *OrderService) cashbackFor(vip *model.VIPLevel) (decimal.Decimal, error) {
	base := vip.CommissionPerOrder
	variation := s.cfg.Business.CashbackVariation
	if !variation.IsPositive() {
		return base, nil
	}
	step, err := s.random(2001)
	if err != nil {
		return decimal.Zero, err
	}
	// step/1000 - 1 is uniform in [-1, 1]
	offset := decimal.NewFromInt(step - 1000).Shift(-3).Mul(variation)
	cashback := base.Mul(decimal.NewFromInt(1).Add(offset)).Round(money.Scale)
	minimum := decimal.New(1, -money.Scale)
	if cashback.LessThan(minimum) {
		cashback = minimum
	}
	return cashback, nil
}

func categoryPrefix(category string) string {
	runes := []rune(category)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return strings.ToUpper(string(runes))
}

func qrPayload(orderNo, code string, price, cashback decimal.Decimal) string {
	return fmt.Sprintf("ORDER:%s|PRODUCT:%s|PRICE:%s|CASHBACK:%s",
		orderNo, code, money.Format(price), money.Format(cashback))
}

func withQRCode(o *model.OrderOffer) (Offer, error) {
	png, err := qrcode.Encode(o.QRPayload, qrcode.Medium, 256)
	if err != nil {
		return Offer{}, fmt.Errorf("encode qr for %s: %w", o.OrderNo, err)
	}
	return Offer{OrderOffer: o, QRCode: base64.StdEncoding.EncodeToString(png)}, nil
}
