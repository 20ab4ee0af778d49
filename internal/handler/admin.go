package handler

import (
	"strconv"
	"strings"

	"cashmine/internal/service"
	"cashmine/pkg/money"
	"cashmine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================
// 管理后台：用户
// ============================================================

// ListUsers GET /api/admin/users?page=&page_size=
func (h *Handler) ListUsers(c *gin.Context) {
	page, pageSize := pageParams(c)
	users, total, err := h.svc.Admin.ListUsers(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}
	response.Success(c, gin.H{
		"list":      views,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Stats GET /api/admin/stats
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.Admin.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"total_users":            stats.TotalUsers,
		"pending_withdrawals":    stats.PendingWithdrawals,
		"pending_deposits":       stats.PendingDeposits,
		"total_platform_balance": money.Format(stats.TotalBalance),
	})
}

// SetRole PUT /api/admin/users/:id/role
func (h *Handler) SetRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.Admin.SetRole(c.Request.Context(), c.Param("id"), req.Role); err != nil {
		response.Error(c, err)
		return
	}
	h.log.Info("role changed",
		zap.String("admin_id", principal(c).UserID),
		zap.String("user_id", c.Param("id")),
		zap.String("role", req.Role),
	)
	response.Success(c, gin.H{"success": true})
}

// SetUserVIPLevel PUT /api/admin/users/:id/vip-level
func (h *Handler) SetUserVIPLevel(c *gin.Context) {
	var req struct {
		Level *int `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.Admin.SetVIPLevel(c.Request.Context(), principal(c).UserID, c.Param("id"), *req.Level); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"success": true, "vip_level": *req.Level})
}

type AdjustBalanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type" binding:"required"`
	Remark string          `json:"remark"`
}

// AdjustBalance POST /api/admin/users/:id/adjust
func (h *Handler) AdjustBalance(c *gin.Context) {
	var req AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	balance, err := h.svc.Admin.AdjustBalance(c.Request.Context(), principal(c).UserID, c.Param("id"), req.Amount, req.Type, req.Remark)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"new_balance": money.Format(balance)})
}

// ============================================================
// 管理后台：VIP 等级
// ============================================================

type VIPLevelRequest struct {
	Level              int             `json:"level"`
	Name               string          `json:"name" binding:"required"`
	DepositRequired    decimal.Decimal `json:"deposit_required"`
	MaxDailyEarnings   decimal.Decimal `json:"max_daily_earnings"`
	OrdersPerDay       int             `json:"orders_per_day"`
	CommissionPerOrder decimal.Decimal `json:"commission_per_order"`
	IsActive           *bool           `json:"is_active"`
}

func (r *VIPLevelRequest) input() service.VIPLevelInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return service.VIPLevelInput{
		Level:              r.Level,
		Name:               r.Name,
		DepositRequired:    r.DepositRequired,
		MaxDailyEarnings:   r.MaxDailyEarnings,
		OrdersPerDay:       r.OrdersPerDay,
		CommissionPerOrder: r.CommissionPerOrder,
		IsActive:           active,
	}
}

func levelParam(c *gin.Context) (int, bool) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil {
		response.ParamError(c, "level must be an integer")
		return 0, false
	}
	return level, true
}

// AdminVIPLevels GET /api/admin/vip-levels
func (h *Handler) AdminVIPLevels(c *gin.Context) {
	levels, err := h.svc.VIP.Levels(c.Request.Context(), true)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, newVIPViews(levels))
}

// CreateVIPLevel POST /api/admin/vip-levels
func (h *Handler) CreateVIPLevel(c *gin.Context) {
	var req VIPLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	level, err := h.svc.VIP.CreateLevel(c.Request.Context(), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, newVIPView(*level))
}

// UpdateVIPLevel PUT /api/admin/vip-levels/:level
func (h *Handler) UpdateVIPLevel(c *gin.Context) {
	lv, ok := levelParam(c)
	if !ok {
		return
	}
	var req VIPLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	req.Level = lv
	level, err := h.svc.VIP.UpdateLevel(c.Request.Context(), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, newVIPView(*level))
}

// DeleteVIPLevel DELETE /api/admin/vip-levels/:level
func (h *Handler) DeleteVIPLevel(c *gin.Context) {
	lv, ok := levelParam(c)
	if !ok {
		return
	}
	if err := h.svc.VIP.DeleteLevel(c.Request.Context(), lv); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"success": true})
}

// ============================================================
// 管理后台：充值与提现审核
// ============================================================

// PendingTransactions lists pending requests of one kind.
// GET /api/admin/withdrawals, GET /api/admin/deposits
func (h *Handler) PendingTransactions(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		list, err := h.svc.Transaction.ListPending(c.Request.Context(), kind, limit)
		if err != nil {
			response.Error(c, err)
			return
		}
		views := make([]TransactionView, 0, len(list))
		for _, p := range list {
			v := newTransactionView(p.Transaction)
			v.UserLogin = p.UserLogin
			views = append(views, v)
		}
		response.Success(c, views)
	}
}

// ResolveTransaction approves or rejects a pending request of kind.
// POST /api/admin/{withdrawals,deposits}/:id/{approve,reject}
func (h *Handler) ResolveTransaction(kind string, approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Note string `json:"note"`
		}
		if c.ContentType() == gin.MIMEJSON && c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				response.ParamError(c, "invalid request: "+err.Error())
				return
			}
		} else {
			req.Note = param(c, "note")
		}

		resolve := h.svc.Transaction.Reject
		if approve {
			resolve = h.svc.Transaction.Approve
		}
		t, err := resolve(c.Request.Context(), principal(c).UserID, kind, c.Param("id"), strings.TrimSpace(req.Note))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, newTransactionView(t))
	}
}

// ============================================================
// 管理后台：公告与活动
// ============================================================

// CreateNotification POST /api/admin/notifications
func (h *Handler) CreateNotification(c *gin.Context) {
	var req struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	if c.ContentType() == gin.MIMEJSON {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, "invalid request: "+err.Error())
			return
		}
	} else {
		req.Title, req.Message = param(c, "title"), param(c, "message")
	}
	n, err := h.svc.Content.Notify(c.Request.Context(), req.Title, req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"notification_id": n.ID, "notification": n})
}

type CampaignRequest struct {
	Title           string          `json:"title" binding:"required"`
	Description     string          `json:"description"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	BonusAmount     decimal.Decimal `json:"bonus_amount"`
	MinDeposit      decimal.Decimal `json:"min_deposit"`
	IsActive        bool            `json:"is_active"`
}

func (r *CampaignRequest) input() service.CampaignInput {
	return service.CampaignInput{
		Title:           r.Title,
		Description:     r.Description,
		DiscountPercent: r.DiscountPercent,
		BonusAmount:     r.BonusAmount,
		MinDeposit:      r.MinDeposit,
		IsActive:        r.IsActive,
	}
}

// AdminCampaigns GET /api/admin/campaigns
func (h *Handler) AdminCampaigns(c *gin.Context) {
	list, err := h.svc.Content.Campaigns(c.Request.Context(), false)
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

// CreateCampaign POST /api/admin/campaigns
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	cp, err := h.svc.Content.CreateCampaign(c.Request.Context(), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, newCampaignView(cp))
}

// UpdateCampaign PUT /api/admin/campaigns/:id
func (h *Handler) UpdateCampaign(c *gin.Context) {
	var req CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	cp, err := h.svc.Content.UpdateCampaign(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, newCampaignView(cp))
}

// DeleteCampaign DELETE /api/admin/campaigns/:id
func (h *Handler) DeleteCampaign(c *gin.Context) {
	if err := h.svc.Content.DeleteCampaign(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"success": true})
}
