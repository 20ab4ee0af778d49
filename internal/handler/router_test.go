package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cashmine/internal/config"
	"cashmine/internal/infrastructure/lock"
	"cashmine/internal/service"
	"cashmine/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Details map[string]string `json:"details"`
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func newAPIClient(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Auth.JWTSecret = "router-secret"

	db := testutil.NewTestDB(t)
	svc := service.New(db, lock.NewLocalLocker(time.Millisecond, 10), cfg, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, svc.VIP.EnsureDefaults(ctx))
	require.NoError(t, svc.Auth.EnsureAdmin(ctx, "admin", "admin-pass"))

	return &apiClient{t: t, router: SetupRouter(svc, cfg, zap.NewNop())}
}

func (a *apiClient) do(method, path, token string, body interface{}) (int, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func (a *apiClient) login(login, password string, register bool) string {
	a.t.Helper()
	path := "/api/auth/login"
	if register {
		path = "/api/auth/register"
	}
	status, env := a.do(http.MethodPost, path, "", map[string]string{"login": login, "password": password})
	require.Equal(a.t, http.StatusOK, status, env.Message)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &data))
	return data.Token
}

func decode(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	api := newAPIClient(t)

	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	api.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "cashmine_http_request_duration_seconds")
}

func TestRouter_Authentication(t *testing.T) {
	api := newAPIClient(t)

	status, env := api.do(http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", env.Code)

	status, env = api.do(http.MethodGet, "/api/auth/me", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	token := api.login("mallory", "secret123", true)
	status, env = api.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	var me UserView
	decode(t, env, &me)
	require.Equal(t, "mallory", me.Login)
	require.Equal(t, "0.00", me.Balance)
	require.Equal(t, "0.00", me.DailyEarnings)

	status, env = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{"login": "mallory", "password": "secret123"})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "DUPLICATE_LOGIN", env.Code)

	status, env = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"login": "mallory", "password": "nope123"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "INVALID_CREDENTIALS", env.Code)

	status, env = api.do(http.MethodGet, "/api/admin/stats", token, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", env.Code)
}

func TestRouter_DepositApprovalAndOrders(t *testing.T) {
	api := newAPIClient(t)
	admin := api.login("admin", "admin-pass", false)
	user := api.login("nina", "secret123", true)

	status, env := api.do(http.MethodPost, "/api/transactions/deposit?amount=999", user, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "BELOW_MINIMUM", env.Code)
	require.Equal(t, "1000.00", env.Details["minimum"])

	status, env = api.do(http.MethodPost, "/api/transactions/deposit?amount=1000", user, nil)
	require.Equal(t, http.StatusOK, status)
	var dep struct {
		TransactionID string `json:"transaction_id"`
		WalletAddress string `json:"wallet_address"`
	}
	decode(t, env, &dep)
	require.NotEmpty(t, dep.WalletAddress)

	status, env = api.do(http.MethodPost, "/api/vip/upgrade", user, nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "NOT_ENOUGH_DEPOSIT", env.Code)

	status, env = api.do(http.MethodGet, "/api/admin/deposits", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var pending []TransactionView
	decode(t, env, &pending)
	require.Len(t, pending, 1)
	require.Equal(t, "nina", pending[0].UserLogin)

	// a deposit cannot be resolved through the withdrawal routes
	status, _ = api.do(http.MethodPost, "/api/admin/withdrawals/"+dep.TransactionID+"/approve", admin, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(http.MethodPost, "/api/admin/deposits/"+dep.TransactionID+"/approve", admin, map[string]string{"note": "received"})
	require.Equal(t, http.StatusOK, status)
	status, env = api.do(http.MethodPost, "/api/admin/deposits/"+dep.TransactionID+"/approve", admin, nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "ALREADY_RESOLVED", env.Code)

	status, _ = api.do(http.MethodPost, "/api/vip/upgrade", user, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = api.do(http.MethodGet, "/api/orders/available", user, nil)
	require.Equal(t, http.StatusOK, status)
	var avail struct {
		Orders       []OrderView `json:"orders"`
		OrdersPerDay int         `json:"orders_per_day"`
	}
	decode(t, env, &avail)
	require.Len(t, avail.Orders, 3)
	require.Equal(t, 10, avail.OrdersPerDay)
	require.NotEmpty(t, avail.Orders[0].QRCode)

	status, env = api.do(http.MethodPost, "/api/orders/accept/"+avail.Orders[0].ID, user, nil)
	require.Equal(t, http.StatusOK, status)
	var accepted struct {
		Cashback   string `json:"cashback"`
		NewBalance string `json:"new_balance"`
	}
	decode(t, env, &accepted)
	require.Equal(t, "5.00", accepted.Cashback)
	require.Equal(t, "1005.00", accepted.NewBalance)

	status, _ = api.do(http.MethodPost, "/api/orders/reject/"+avail.Orders[1].ID, user, nil)
	require.Equal(t, http.StatusOK, status)
	status, env = api.do(http.MethodPost, "/api/orders/accept/"+avail.Orders[2].ID, user, nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "COOLDOWN_ACTIVE", env.Code)
	require.NotEmpty(t, env.Details["wait_seconds"])

	status, env = api.do(http.MethodGet, "/api/transactions/history", user, nil)
	require.Equal(t, http.StatusOK, status)
	var history struct {
		List  []TransactionView `json:"list"`
		Total int64             `json:"total"`
	}
	decode(t, env, &history)
	require.EqualValues(t, 2, history.Total)
	require.Equal(t, "order", history.List[0].Type)
}

func TestRouter_MiningSpinAndWithdraw(t *testing.T) {
	api := newAPIClient(t)
	admin := api.login("admin", "admin-pass", false)
	user := api.login("omar", "secret123", true)

	status, env := api.do(http.MethodPost, "/api/mining/tap", user, nil)
	require.Equal(t, http.StatusOK, status)
	var tap struct {
		TapCount  int    `json:"tap_count"`
		Reward    string `json:"reward"`
		Remaining int    `json:"remaining"`
	}
	decode(t, env, &tap)
	require.Equal(t, 1, tap.TapCount)
	require.Equal(t, "0.01", tap.Reward)
	require.Equal(t, 499, tap.Remaining)

	status, _ = api.do(http.MethodPost, "/api/spin/daily", user, nil)
	require.Equal(t, http.StatusOK, status)
	status, env = api.do(http.MethodPost, "/api/spin/daily", user, nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "ALREADY_CLAIMED_TODAY", env.Code)

	status, env = api.do(http.MethodPost, "/api/transactions/withdraw?amount=250&wallet_address=TXq9Wv7PzK3mB8nLc2Rd", user, nil)
	require.Equal(t, http.StatusPaymentRequired, status)
	require.Equal(t, "INSUFFICIENT_FUNDS", env.Code)

	status, env = api.do(http.MethodPost, "/api/transactions/withdraw?amount=250&wallet_address=bad", user, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_ADDRESS", env.Code)

	status, env = api.do(http.MethodPost, "/api/transactions/withdraw?amount=abc", user, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_ARGUMENT", env.Code)

	status, env = api.do(http.MethodGet, "/api/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var stats struct {
		TotalUsers int64 `json:"total_users"`
	}
	decode(t, env, &stats)
	require.EqualValues(t, 2, stats.TotalUsers)
}

func TestRouter_AdminContent(t *testing.T) {
	api := newAPIClient(t)
	admin := api.login("admin", "admin-pass", false)
	user := api.login("pia", "secret123", true)

	status, _ := api.do(http.MethodPost, "/api/admin/notifications", admin, map[string]string{"title": "Hello", "message": "Welcome aboard"})
	require.Equal(t, http.StatusOK, status)

	status, env := api.do(http.MethodGet, "/api/notifications", user, nil)
	require.Equal(t, http.StatusOK, status)
	var notes []struct {
		Title string `json:"title"`
	}
	decode(t, env, &notes)
	require.Len(t, notes, 1)
	require.Equal(t, "Hello", notes[0].Title)

	status, _ = api.do(http.MethodPost, "/api/admin/campaigns", admin, map[string]interface{}{
		"title":            "Double cashback",
		"discount_percent": "10",
		"bonus_amount":     "25.5",
		"is_active":        true,
	})
	require.Equal(t, http.StatusOK, status)

	status, env = api.do(http.MethodGet, "/api/campaigns", user, nil)
	require.Equal(t, http.StatusOK, status)
	var campaigns []CampaignView
	decode(t, env, &campaigns)
	require.Len(t, campaigns, 1)
	require.Equal(t, "25.50", campaigns[0].BonusAmount)

	status, env = api.do(http.MethodPut, "/api/admin/vip-levels/2", admin, map[string]interface{}{
		"name":                 "VIP 2",
		"deposit_required":     "500",
		"max_daily_earnings":   "150",
		"orders_per_day":       30,
		"commission_per_order": "5",
	})
	require.Equal(t, http.StatusBadRequest, status, env.Message)

	status, env = api.do(http.MethodDelete, "/api/admin/vip-levels/5", admin, nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = api.do(http.MethodGet, "/api/vip/levels", user, nil)
	require.Equal(t, http.StatusOK, status)
	var levels []VIPView
	decode(t, env, &levels)
	require.Len(t, levels, 4)
}

func TestRouter_PublicVIPLevels(t *testing.T) {
	api := newAPIClient(t)

	status, env := api.do(http.MethodGet, "/api/vip/levels", "", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var levels []VIPView
	decode(t, env, &levels)
	require.Len(t, levels, 5)
	require.Equal(t, "1000.00", levels[0].DepositRequired)

	status, _ = api.do(http.MethodPost, "/api/vip/upgrade", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_PagingReportsServedPage(t *testing.T) {
	api := newAPIClient(t)
	admin := api.login("admin", "admin-pass", false)
	user := api.login("pablo", "secret123", true)

	type page struct {
		Total    int64 `json:"total"`
		Page     int   `json:"page"`
		PageSize int   `json:"page_size"`
	}

	status, env := api.do(http.MethodGet, "/api/transactions/history?page=0&page_size=500", user, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var history page
	decode(t, env, &history)
	require.Equal(t, 1, history.Page)
	require.Equal(t, 20, history.PageSize)

	status, env = api.do(http.MethodGet, "/api/admin/users?page=-3&page_size=0", admin, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var users page
	decode(t, env, &users)
	require.Equal(t, 1, users.Page)
	require.Equal(t, 20, users.PageSize)
	require.EqualValues(t, 2, users.Total)
}
