package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyWebhookSignature 校验入金 webhook 的 HMAC-SHA256 签名
// 签名为请求原始字节的十六进制摘要，比较恒定时间
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if len(signature) != sha256.Size*2 {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}

// SignWebhookBody 生成 webhook 签名，测试与回放工具共用
func SignWebhookBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
