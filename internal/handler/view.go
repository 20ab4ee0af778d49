package handler

import (
	"time"

	"cashmine/internal/model"
	"cashmine/internal/service"
	"cashmine/pkg/money"
)

// Amounts go over the wire as fixed two-digit strings.

type UserView struct {
	ID               string     `json:"id"`
	Login            string     `json:"login"`
	Role             string     `json:"role"`
	Balance          string     `json:"balance"`
	FrozenAmount     string     `json:"frozen_amount"`
	AvailableBalance string     `json:"available_balance"`
	DailyEarnings    string     `json:"daily_earnings,omitempty"`
	TotalEarnings    string     `json:"total_earnings"`
	DepositAmount    string     `json:"deposit_amount"`
	VIPLevel         int        `json:"vip_level"`
	VIP              *VIPView   `json:"vip,omitempty"`
	WalletAddress    string     `json:"wallet_address,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
}

func newUserView(u *model.User) UserView {
	return UserView{
		ID:               u.ID,
		Login:            u.Login,
		Role:             u.Role,
		Balance:          money.Format(u.Balance),
		FrozenAmount:     money.Format(u.FrozenAmount),
		AvailableBalance: money.Format(u.Available()),
		TotalEarnings:    money.Format(u.TotalEarnings),
		DepositAmount:    money.Format(u.DepositAmount),
		VIPLevel:         u.VIPLevel,
		WalletAddress:    u.WalletAddress,
		CreatedAt:        u.CreatedAt,
		LastLoginAt:      u.LastLoginAt,
	}
}

func newSnapshotView(s *service.UserSnapshot) UserView {
	v := newUserView(s.User)
	v.DailyEarnings = money.Format(s.DailyEarnings)
	if s.VIP != nil {
		vip := newVIPView(*s.VIP)
		v.VIP = &vip
	}
	return v
}

type VIPView struct {
	Level              int    `json:"level"`
	Name               string `json:"name"`
	DepositRequired    string `json:"deposit_required"`
	MaxDailyEarnings   string `json:"max_daily_earnings"`
	OrdersPerDay       int    `json:"orders_per_day"`
	CommissionPerOrder string `json:"commission_per_order"`
	IsActive           bool   `json:"is_active"`
}

func newVIPView(l model.VIPLevel) VIPView {
	return VIPView{
		Level:              l.Level,
		Name:               l.Name,
		DepositRequired:    money.Format(l.DepositRequired),
		MaxDailyEarnings:   money.Format(l.MaxDailyEarnings),
		OrdersPerDay:       l.OrdersPerDay,
		CommissionPerOrder: money.Format(l.CommissionPerOrder),
		IsActive:           l.IsActive,
	}
}

func newVIPViews(levels []model.VIPLevel) []VIPView {
	out := make([]VIPView, 0, len(levels))
	for _, l := range levels {
		out = append(out, newVIPView(l))
	}
	return out
}

type OrderView struct {
	ID           string     `json:"id"`
	ProductName  string     `json:"product_name"`
	ProductCode  string     `json:"product_code"`
	ProductPrice string     `json:"product_price"`
	Cashback     string     `json:"cashback"`
	Category     string     `json:"category"`
	QRPayload    string     `json:"qr_payload"`
	QRCode       string     `json:"qr_code,omitempty"`
	Status       string     `json:"status"`
	ExpiredAt    time.Time  `json:"expired_at"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
}

func newOrderView(o *model.OrderOffer, qr string) OrderView {
	return OrderView{
		ID:           o.OrderNo,
		ProductName:  o.ProductName,
		ProductCode:  o.ProductCode,
		ProductPrice: money.Format(o.ProductPrice),
		Cashback:     money.Format(o.Cashback),
		Category:     o.Category,
		QRPayload:    o.QRPayload,
		QRCode:       qr,
		Status:       o.Status,
		ExpiredAt:    o.ExpiredAt,
		AcceptedAt:   o.AcceptedAt,
	}
}

type TransactionView struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	UserLogin     string     `json:"user_login,omitempty"`
	Type          string     `json:"type"`
	Amount        string     `json:"amount"`
	Status        string     `json:"status"`
	BalanceBefore string     `json:"balance_before,omitempty"`
	BalanceAfter  string     `json:"balance_after,omitempty"`
	WalletAddress string     `json:"wallet_address,omitempty"`
	ReferenceNo   string     `json:"reference_no,omitempty"`
	Remark        string     `json:"remark,omitempty"`
	AdminNote     string     `json:"admin_note,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

func newTransactionView(t *model.Transaction) TransactionView {
	v := TransactionView{
		ID:            t.TransactionNo,
		UserID:        t.UserID,
		Type:          t.Kind,
		Amount:        money.Format(t.Amount),
		Status:        t.Status,
		WalletAddress: t.WalletAddress,
		ReferenceNo:   t.ReferenceNo,
		Remark:        t.Remark,
		AdminNote:     t.AdminNote,
		CreatedAt:     t.CreatedAt,
		ResolvedAt:    t.ResolvedAt,
	}
	// balances are only meaningful once the entry has moved money
	if t.Status == model.StatusCompleted {
		v.BalanceBefore = money.Format(t.BalanceBefore)
		v.BalanceAfter = money.Format(t.BalanceAfter)
	}
	return v
}

type CampaignView struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DiscountPercent string    `json:"discount_percent"`
	BonusAmount     string    `json:"bonus_amount"`
	MinDeposit      string    `json:"min_deposit"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

func newCampaignView(c *model.Campaign) CampaignView {
	return CampaignView{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		DiscountPercent: c.DiscountPercent.StringFixed(2),
		BonusAmount:     money.Format(c.BonusAmount),
		MinDeposit:      money.Format(c.MinDeposit),
		IsActive:        c.IsActive,
		CreatedAt:       c.CreatedAt,
	}
}
