package service

import (
	"context"
	"testing"

	"github.com/CryptoMichaael/Nexus/internal/models"
	"github.com/CryptoMichaael/Nexus/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAdjust(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := &AuditActor{ID: "ops", IP: "127.0.0.1"}

	user := env.createUser(t, walletA, nil)
	env.deposit(t, walletA, "0x50", "100")

	entry, err := env.adminSvc.Adjust(ctx, user.ID, "USDT", "25", "promo credit", actor)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerTypeAdjustment, entry.Type)
	assert.Equal(t, "125", env.claimable(t, user.ID))

	_, err = env.adminSvc.Adjust(ctx, user.ID, "USDT", "-25", "promo revert", actor)
	require.NoError(t, err)
	assert.Equal(t, "100", env.claimable(t, user.ID))

	// 不允许把余额调成负数
	_, err = env.adminSvc.Adjust(ctx, user.ID, "USDT", "-101", "oops", actor)
	assert.Error(t, err)
	assert.Equal(t, "100", env.claimable(t, user.ID))

	// 原因必填
	_, err = env.adminSvc.Adjust(ctx, user.ID, "USDT", "1", "", actor)
	assert.Error(t, err)

	// 调账后余额缓存与账本一致
	recomputed, err := env.ledger.RecomputeClaimable(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", money.Format(recomputed))

	logs, err := env.audit.GetRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
	assert.Equal(t, "BALANCE_ADJUSTMENT", logs[0].EventType)
}

func TestAdminSetSponsorRejectsCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := &AuditActor{ID: "ops"}

	a := env.createUser(t, walletA, nil)
	b := env.createUser(t, walletB, &a.ID)
	c := env.createUser(t, walletC, &b.ID)

	// A→B→C 已成链，再把 C 设为 A 的推荐人会成环
	err := env.adminSvc.SetSponsor(ctx, a.ID, c.ID, actor)
	assert.Error(t, err)

	// 自荐也被拒绝
	err = env.adminSvc.SetSponsor(ctx, a.ID, a.ID, actor)
	assert.Error(t, err)
}
