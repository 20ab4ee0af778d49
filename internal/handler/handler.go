package handler

import (
	"math"
	"strconv"
	"strings"

	"cashmine/internal/repository"
	"cashmine/internal/service"
	"cashmine/pkg/money"
	"cashmine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	svc *service.Services
	log *zap.Logger
}

func NewHandler(svc *service.Services, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func principal(c *gin.Context) *service.Principal {
	p, _ := c.Get(principalKey)
	return p.(*service.Principal)
}

// pageParams returns the page actually served, after the same clamping the
// repositories apply.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return repository.NormalizePage(page, pageSize)
}

// param reads a value from the query string, falling back to a form field.
func param(c *gin.Context, key string) string {
	if v, ok := c.GetQuery(key); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(c.PostForm(key))
}

func amountParam(c *gin.Context) (decimal.Decimal, bool) {
	raw := param(c, "amount")
	if raw == "" {
		response.ParamError(c, "amount is required")
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		response.ParamError(c, "amount must be a decimal number")
		return decimal.Zero, false
	}
	return amount, true
}

// ============================================================
// 认证
// ============================================================

type CredentialsRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Auth.Register(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"token": res.Token, "user": newUserView(res.User)})
}

// Login POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Auth.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"token": res.Token, "user": newUserView(res.User)})
}

// Me GET /api/auth/me
func (h *Handler) Me(c *gin.Context) {
	snap, err := h.svc.Auth.Me(c.Request.Context(), principal(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, newSnapshotView(snap))
}

// ============================================================
// VIP
// ============================================================

// ListVIPLevels GET /api/vip/levels
func (h *Handler) ListVIPLevels(c *gin.Context) {
	levels, err := h.svc.VIP.Levels(c.Request.Context(), false)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, newVIPViews(levels))
}

// UpgradeVIP POST /api/vip/upgrade
func (h *Handler) UpgradeVIP(c *gin.Context) {
	res, err := h.svc.VIP.Upgrade(c.Request.Context(), principal(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"previous_level": res.PreviousLevel,
		"new_level":      res.Level.Level,
		"vip":            newVIPView(res.Level),
	})
}

// ============================================================
// 订单
// ============================================================

// AvailableOrders GET /api/orders/available
func (h *Handler) AvailableOrders(c *gin.Context) {
	res, err := h.svc.Order.ListAvailable(c.Request.Context(), principal(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	orders := make([]OrderView, 0, len(res.Offers))
	for _, o := range res.Offers {
		orders = append(orders, newOrderView(o.OrderOffer, o.QRCode))
	}
	response.Success(c, gin.H{
		"orders":             orders,
		"message":            res.Message,
		"orders_accepted":    res.OrdersAccepted,
		"orders_per_day":     res.OrdersPerDay,
		"daily_earnings":     money.Format(res.DailyEarnings),
		"max_daily_earnings": money.Format(res.MaxDailyEarnings),
		"cooldown_seconds":   int(math.Ceil(res.CooldownRemaining.Seconds())),
	})
}

// AcceptOrder POST /api/orders/accept/:id
func (h *Handler) AcceptOrder(c *gin.Context) {
	res, err := h.svc.Order.Accept(c.Request.Context(), principal(c).UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"order":           newOrderView(res.Order, ""),
		"cashback":        money.Format(res.Cashback),
		"new_balance":     money.Format(res.NewBalance),
		"orders_accepted": res.OrdersAccepted,
		"daily_earnings":  money.Format(res.DailyEarnings),
	})
}

// RejectOrder POST /api/orders/reject/:id
func (h *Handler) RejectOrder(c *gin.Context) {
	res, err := h.svc.Order.Reject(c.Request.Context(), principal(c).UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"order_id":       res.OrderNo,
		"wait_time":      res.WaitSeconds,
		"cooldown_until": res.CooldownUntil,
	})
}

// ============================================================
// 挖矿与转盘
// ============================================================

// MiningStatus GET /api/mining/status
func (h *Handler) MiningStatus(c *gin.Context) {
	st, err := h.svc.Mining.Status(c.Request.Context(), principal(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"tap_count":    st.Taps,
		"remaining":    st.Remaining(),
		"limit":        st.Limit,
		"window_start": st.Start,
		"reset_at":     st.ResetAt,
		"total_taps":   st.TotalTaps,
		"tap_reward":   money.Format(st.TapReward),
	})
}

// MiningTap POST /api/mining/tap
func (h *Handler) MiningTap(c *gin.Context) {
	res, err := h.svc.Mining.Tap(c.Request.Context(), principal(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"tap_count":   res.TapCount,
		"reward":      money.Format(res.Credited),
		"new_balance": money.Format(res.NewBalance),
		"remaining":   res.Remaining,
	})
}

// DailySpin POST /api/spin/daily
func (h *Handler) DailySpin(c *gin.Context) {
	res, err := h.svc.Spin.Spin(c.Request.Context(), principal(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"reward":      money.Format(res.Reward),
		"new_balance": money.Format(res.NewBalance),
		"day":         res.Day,
	})
}

// SpinStatus GET /api/spin/status
func (h *Handler) SpinStatus(c *gin.Context) {
	st, err := h.svc.Spin.Status(c.Request.Context(), principal(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	prizes := make([]string, 0, len(st.Prizes))
	for _, p := range st.Prizes {
		prizes = append(prizes, money.Format(p.Amount))
	}
	response.Success(c, gin.H{
		"day":         st.Day,
		"claimed":     st.Claimed,
		"reward":      money.Format(st.Reward),
		"total_spins": st.TotalSpins,
		"prizes":      prizes,
	})
}

// ============================================================
// 充值与提现
// ============================================================

// Deposit POST /api/transactions/deposit?amount=
func (h *Handler) Deposit(c *gin.Context) {
	amount, ok := amountParam(c)
	if !ok {
		return
	}
	res, err := h.svc.Transaction.Deposit(c.Request.Context(), principal(c).UserID, amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"transaction_id": res.Transaction.TransactionNo,
		"wallet_address": res.WalletAddress,
		"transaction":    newTransactionView(res.Transaction),
	})
}

// Withdraw POST /api/transactions/withdraw?amount=&wallet_address=
func (h *Handler) Withdraw(c *gin.Context) {
	amount, ok := amountParam(c)
	if !ok {
		return
	}
	res, err := h.svc.Transaction.Withdraw(c.Request.Context(), principal(c).UserID, amount, param(c, "wallet_address"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"transaction_id":    res.Transaction.TransactionNo,
		"available_balance": money.Format(res.Available),
		"transaction":       newTransactionView(res.Transaction),
	})
}

// History GET /api/transactions/history?page=&page_size=
func (h *Handler) History(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, total, err := h.svc.Transaction.History(c.Request.Context(), principal(c).UserID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]TransactionView, 0, len(list))
	for _, t := range list {
		views = append(views, newTransactionView(t))
	}
	response.Success(c, gin.H{
		"list":      views,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 公告与活动
// ============================================================

// Notifications GET /api/notifications
func (h *Handler) Notifications(c *gin.Context) {
	list, err := h.svc.Content.Notifications(c.Request.Context(), 10)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// Campaigns GET /api/campaigns
func (h *Handler) Campaigns(c *gin.Context) {
	list, err := h.svc.Content.Campaigns(c.Request.Context(), true)
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]CampaignView, 0, len(list))
	for _, cp := range list {
		views = append(views, newCampaignView(cp))
	}
	response.Success(c, views)
}
