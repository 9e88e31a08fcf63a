package handler

import (
	"encoding/json"
	"net/http"

	"github.com/CryptoMichaael/Nexus/internal/config"
	"github.com/CryptoMichaael/Nexus/internal/security"
	"github.com/CryptoMichaael/Nexus/internal/service"
	"github.com/CryptoMichaael/Nexus/pkg/errors"
	"github.com/CryptoMichaael/Nexus/pkg/logger"

	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	deposits *service.DepositService
	cfg      *config.Config
}

func NewWebhookHandler(deposits *service.DepositService, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{deposits: deposits, cfg: cfg}
}

// HandleDeposit 入金 webhook 入口
// 先对原始请求体做 HMAC 验签，再反序列化；验签失败一律 401。
// 重复投递返回 200 duplicate，处理失败返回 500 供投递方重试
func (h *WebhookHandler) HandleDeposit(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if !security.VerifyWebhookSignature(h.cfg.Webhook.Secret, body, signature) {
		logger.WithFields(map[string]interface{}{
			"ip": c.ClientIP(),
		}).Warn("入金webhook验签失败")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var event service.DepositEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	result, err := h.deposits.Process(c.Request.Context(), &event)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok && appErr.Code == errors.ErrInvalidInput {
			c.JSON(http.StatusBadRequest, gin.H{"error": appErr.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deposit processing failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}
