package security

import (
	"crypto/subtle"
	"net/http"

	"github.com/CryptoMichaael/Nexus/internal/config"
	"github.com/CryptoMichaael/Nexus/internal/models"
	"github.com/CryptoMichaael/Nexus/internal/repository"
	"github.com/CryptoMichaael/Nexus/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
)

// AdminAuth 管理端双因子门卫：静态密钥 + TOTP 动态口令
// 每次调用无论成败都写审计日志
func AdminAuth(cfg *config.AdminConfig, audit *repository.AuditRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.GetHeader("X-Admin-Secret")
		otpCode := c.GetHeader("X-Admin-OTP")

		secretOK := subtle.ConstantTimeCompare([]byte(secret), []byte(cfg.SecretKey)) == 1
		otpOK := secretOK && totp.Validate(otpCode, cfg.TotpSecret)

		event := "ADMIN_AUTH_SUCCESS"
		if !otpOK {
			event = "ADMIN_AUTH_FAILURE"
		}
		if err := audit.Create(c.Request.Context(), &models.AuditLog{
			ActorID:   "admin",
			EventType: event,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Details: models.JSONB{
				"path":   c.FullPath(),
				"method": c.Request.Method,
			},
		}); err != nil {
			logger.Error("审计日志写入失败:", err)
		}

		if !otpOK {
			logger.WithFields(map[string]interface{}{
				"ip":   c.ClientIP(),
				"path": c.FullPath(),
			}).Warn("管理端认证失败")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
