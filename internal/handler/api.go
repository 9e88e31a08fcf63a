package handler

import (
	"net/http"
	"strconv"

	"github.com/CryptoMichaael/Nexus/internal/money"
	"github.com/CryptoMichaael/Nexus/internal/repository"
	"github.com/CryptoMichaael/Nexus/internal/service"
	"github.com/CryptoMichaael/Nexus/pkg/errors"

	"github.com/gin-gonic/gin"
)

type ApiHandler struct {
	withdrawals    *service.WithdrawalService
	balanceRepo    *repository.BalanceRepository
	ledgerRepo     *repository.LedgerRepository
	withdrawalRepo *repository.WithdrawalRepository
}

func NewApiHandler(
	withdrawals *service.WithdrawalService,
	balanceRepo *repository.BalanceRepository,
	ledgerRepo *repository.LedgerRepository,
	withdrawalRepo *repository.WithdrawalRepository,
) *ApiHandler {
	return &ApiHandler{
		withdrawals:    withdrawals,
		balanceRepo:    balanceRepo,
		ledgerRepo:     ledgerRepo,
		withdrawalRepo: withdrawalRepo,
	}
}

func userIDFromHeader(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid X-User-ID"})
		return 0, false
	}
	return id, true
}

func writeAppError(c *gin.Context, err error) {
	if appErr, ok := err.(*errors.AppError); ok && appErr.Code == errors.ErrInvalidInput {
		c.JSON(http.StatusBadRequest, gin.H{"error": appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

type withdrawalRequest struct {
	Token     string `json:"token" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	ToAddress string `json:"toAddress" binding:"required"`
}

// RequestWithdrawal 受理提现申请，结算由后台队列异步完成
func (h *ApiHandler) RequestWithdrawal(c *gin.Context) {
	userID, ok := userIDFromHeader(c)
	if !ok {
		return
	}

	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	w, err := h.withdrawals.Request(c.Request.Context(), userID, req.Token, req.Amount, req.ToAddress)
	if err != nil {
		writeAppError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"requestId": w.RequestID,
		"status":    w.Status,
		"amount":    money.Format(money.FromDB(w.AmountAtomic)),
	})
}

func (h *ApiHandler) GetBalance(c *gin.Context) {
	userID, ok := userIDFromHeader(c)
	if !ok {
		return
	}

	balance, err := h.balanceRepo.GetByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if balance == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "balance not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"claimable":       money.Format(money.FromDB(balance.ClaimableAtomic)),
		"locked":          money.Format(money.FromDB(balance.LockedAtomic)),
		"totalDeposited":  money.Format(money.FromDB(balance.TotalDepositedAtomic)),
		"totalRoi":        money.Format(money.FromDB(balance.TotalRoiEarnedAtomic)),
		"totalCommission": money.Format(money.FromDB(balance.TotalCommissionEarnedAtomic)),
	})
}

func (h *ApiHandler) GetLedger(c *gin.Context) {
	userID, ok := userIDFromHeader(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	entries, err := h.ledgerRepo.GetByUser(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *ApiHandler) GetWithdrawals(c *gin.Context) {
	userID, ok := userIDFromHeader(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	ws, err := h.withdrawalRepo.GetByUser(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, ws)
}
