package handler

import (
	"net/http"
	"time"

	"github.com/CryptoMichaael/Nexus/internal/config"
	"github.com/CryptoMichaael/Nexus/internal/repository"
	"github.com/CryptoMichaael/Nexus/internal/security"

	"github.com/gin-gonic/gin"
)

// NewRouter 组装全部路由
// webhook 走验签，/api 为用户接口，/admin 走双因子门卫
func NewRouter(
	webhook *WebhookHandler,
	api *ApiHandler,
	admin *AdminHandler,
	cfg *config.Config,
	auditRepo *repository.AuditRepository,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.POST("/webhook/deposit", webhook.HandleDeposit)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/withdrawals", api.RequestWithdrawal)
		apiGroup.GET("/withdrawals", api.GetWithdrawals)
		apiGroup.GET("/balance", api.GetBalance)
		apiGroup.GET("/ledger", api.GetLedger)
	}

	adminGroup := r.Group("/admin", security.AdminAuth(&cfg.Admin, auditRepo))
	{
		adminGroup.PUT("/users/:id/rank", admin.SetRank)
		adminGroup.PUT("/users/:id/withdrawal-address", admin.SetWithdrawalAddress)
		adminGroup.PUT("/users/:id/sponsor", admin.SetSponsor)
		adminGroup.POST("/users/:id/adjustments", admin.Adjust)
		adminGroup.POST("/jobs/roi", admin.TriggerRoi)
		adminGroup.POST("/jobs/pool", admin.TriggerPool)
		adminGroup.GET("/pools", admin.PoolHistory)
		adminGroup.POST("/wallet/unlock", admin.UnlockWallet)
		adminGroup.POST("/wallet/lock", admin.LockWallet)
		adminGroup.GET("/wallet", admin.WalletStatus)
	}

	return r
}
