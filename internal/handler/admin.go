package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/CryptoMichaael/Nexus/internal/repository"
	"github.com/CryptoMichaael/Nexus/internal/service"
	"github.com/CryptoMichaael/Nexus/internal/wallet"
	"github.com/CryptoMichaael/Nexus/pkg/logger"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	admin    *service.AdminService
	rank     *service.RankService
	roi      *service.RoiService
	pool     *service.PoolService
	wallet   *wallet.Manager
	poolRepo *repository.PoolRepository
}

func NewAdminHandler(
	admin *service.AdminService,
	rank *service.RankService,
	roi *service.RoiService,
	pool *service.PoolService,
	w *wallet.Manager,
	poolRepo *repository.PoolRepository,
) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		rank:     rank,
		roi:      roi,
		pool:     pool,
		wallet:   w,
		poolRepo: poolRepo,
	}
}

func actorFrom(c *gin.Context) *service.AuditActor {
	return &service.AuditActor{
		ID:        "admin",
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func pathUserID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

type setRankRequest struct {
	Rank int `json:"rank"`
}

func (h *AdminHandler) SetRank(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}
	var req setRankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.rank.AdminSetRank(c.Request.Context(), userID, req.Rank, actorFrom(c)); err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "rank": req.Rank})
}

type setAddressRequest struct {
	Address string `json:"address" binding:"required"`
}

func (h *AdminHandler) SetWithdrawalAddress(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}
	var req setAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.admin.SetWithdrawalAddress(c.Request.Context(), userID, req.Address, actorFrom(c)); err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "address": req.Address})
}

type adjustRequest struct {
	Token  string `json:"token" binding:"required"`
	Amount string `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

func (h *AdminHandler) Adjust(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	entry, err := h.admin.Adjust(c.Request.Context(), userID, req.Token, req.Amount, req.Reason, actorFrom(c))
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

type setSponsorRequest struct {
	SponsorID uint64 `json:"sponsorId" binding:"required"`
}

func (h *AdminHandler) SetSponsor(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}
	var req setSponsorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.admin.SetSponsor(c.Request.Context(), userID, req.SponsorID, actorFrom(c)); err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "sponsorId": req.SponsorID})
}

// TriggerRoi 手动补跑某日收益，缺省为当日（UTC）
// 按日幂等，重复触发不产生额外入账
func (h *AdminHandler) TriggerRoi(c *gin.Context) {
	day := time.Now().UTC()
	if d := c.Query("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	// 请求返回后任务继续跑，不能挂在请求上下文上
	go func() {
		if _, err := h.roi.AccrueDaily(context.Background(), day); err != nil {
			logger.Error("手动收益补跑失败:", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"message": "roi accrual triggered", "date": day.Format("2006-01-02")})
}

// TriggerPool 手动触发周池流程，唯一约束保证本周已算过时为空操作
func (h *AdminHandler) TriggerPool(c *gin.Context) {
	go func() {
		if err := h.pool.Run(context.Background(), time.Now().UTC()); err != nil {
			logger.Error("手动周池触发失败:", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"message": "weekly pool triggered"})
}

func (h *AdminHandler) PoolHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	pools, err := h.poolRepo.GetHistory(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, pools)
}

type unlockRequest struct {
	Passphrase string `json:"passphrase" binding:"required"`
}

// UnlockWallet 解锁金库热钱包，空闲超时自动回锁
func (h *AdminHandler) UnlockWallet(c *gin.Context) {
	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.wallet.Unlock(req.Passphrase); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unlock failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unlocked": true})
}

func (h *AdminHandler) LockWallet(c *gin.Context) {
	h.wallet.Lock()
	c.JSON(http.StatusOK, gin.H{"unlocked": false})
}

func (h *AdminHandler) WalletStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"unlocked": h.wallet.IsUnlocked()})
}
