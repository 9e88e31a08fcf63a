package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "shh"
	body := []byte(`{"txHash":"0x01","amount":"100"}`)

	sig := SignWebhookBody(secret, body)
	assert.True(t, VerifyWebhookSignature(secret, body, sig))

	// 密钥、内容、签名任一不符都拒绝
	assert.False(t, VerifyWebhookSignature("other", body, sig))
	assert.False(t, VerifyWebhookSignature(secret, []byte(`{"txHash":"0x02"}`), sig))
	assert.False(t, VerifyWebhookSignature(secret, body, ""))
	assert.False(t, VerifyWebhookSignature(secret, body, "deadbeef"))
	assert.False(t, VerifyWebhookSignature(secret, body, sig[:32]+"zz"+sig[34:]))
}
