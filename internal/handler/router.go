package handler

import (
	"net/http"

	"cashmine/internal/config"
	"cashmine/internal/model"
	"cashmine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRouter 配置路由
func SetupRouter(svc *service.Services, cfg *config.Config, log *zap.Logger) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.Server.CORSOrigins))

	h := NewHandler(svc, log)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
		}
		api.GET("/vip/levels", h.ListVIPLevels)

		user := api.Group("", AuthMiddleware(svc.Auth))
		{
			user.GET("/auth/me", h.Me)

			user.POST("/vip/upgrade", h.UpgradeVIP)

			user.GET("/orders/available", h.AvailableOrders)
			user.POST("/orders/accept/:id", h.AcceptOrder)
			user.POST("/orders/reject/:id", h.RejectOrder)

			user.GET("/mining/status", h.MiningStatus)
			user.POST("/mining/tap", h.MiningTap)

			user.GET("/spin/status", h.SpinStatus)
			user.POST("/spin/daily", h.DailySpin)

			user.POST("/transactions/deposit", h.Deposit)
			user.POST("/transactions/withdraw", h.Withdraw)
			user.GET("/transactions/history", h.History)

			user.GET("/notifications", h.Notifications)
			user.GET("/campaigns", h.Campaigns)
		}

		admin := api.Group("/admin", AuthMiddleware(svc.Auth), RequireAdmin())
		{
			admin.GET("/stats", h.Stats)

			admin.GET("/users", h.ListUsers)
			admin.PUT("/users/:id/role", h.SetRole)
			admin.PUT("/users/:id/vip-level", h.SetUserVIPLevel)
			admin.POST("/users/:id/adjust", h.AdjustBalance)

			admin.GET("/vip-levels", h.AdminVIPLevels)
			admin.POST("/vip-levels", h.CreateVIPLevel)
			admin.PUT("/vip-levels/:level", h.UpdateVIPLevel)
			admin.DELETE("/vip-levels/:level", h.DeleteVIPLevel)

			admin.GET("/withdrawals", h.PendingTransactions(model.KindWithdraw))
			admin.POST("/withdrawals/:id/approve", h.ResolveTransaction(model.KindWithdraw, true))
			admin.POST("/withdrawals/:id/reject", h.ResolveTransaction(model.KindWithdraw, false))
			admin.GET("/deposits", h.PendingTransactions(model.KindDeposit))
			admin.POST("/deposits/:id/approve", h.ResolveTransaction(model.KindDeposit, true))
			admin.POST("/deposits/:id/reject", h.ResolveTransaction(model.KindDeposit, false))

			admin.POST("/notifications", h.CreateNotification)

			admin.GET("/campaigns", h.AdminCampaigns)
			admin.POST("/campaigns", h.CreateCampaign)
			admin.PUT("/campaigns/:id", h.UpdateCampaign)
			admin.DELETE("/campaigns/:id", h.DeleteCampaign)
		}
	}

	return r
}
