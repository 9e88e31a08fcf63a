package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/CryptoMichaael/Nexus/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directWallet(i int) string {
	return fmt.Sprintf("0xd%039x", i)
}

func TestRankUpgradeRequiresQualifiedDirects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sponsor := env.createUser(t, walletA, nil)

	// 4个合格直推不够一段门槛（需要5个）
	for i := 1; i <= 4; i++ {
		env.createUser(t, directWallet(i), &sponsor.ID)
		env.deposit(t, directWallet(i), fmt.Sprintf("0x2%02d", i), "100")
	}

	upgraded, err := env.rankSvc.CheckAndUpgrade(ctx, sponsor.ID)
	require.NoError(t, err)
	assert.False(t, upgraded)

	// 入金不足门槛的直推不计数
	env.createUser(t, directWallet(5), &sponsor.ID)
	env.deposit(t, directWallet(5), "0x205", "99")
	upgraded, err = env.rankSvc.CheckAndUpgrade(ctx, sponsor.ID)
	require.NoError(t, err)
	assert.False(t, upgraded)

	// 第5个合格直推到位后升段（入金钩子已自动触发）
	env.deposit(t, directWallet(5), "0x206", "100")
	user, err := env.users.GetByID(ctx, sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, user.CurrentRank)

	// 重复评估不再重复升段
	upgraded, err = env.rankSvc.CheckAndUpgrade(ctx, sponsor.ID)
	require.NoError(t, err)
	assert.False(t, upgraded)
}

func TestRankUpgradeRaisesRoiCapRetroactively(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sponsor := env.createUser(t, walletA, nil)
	result := env.deposit(t, walletA, "0x210", "100")

	record, err := env.roi.GetByDeposit(ctx, result.DepositID)
	require.NoError(t, err)
	assert.Equal(t, money.ToDB(mustParse(t, "200")), record.MaxRoiAtomic)

	for i := 1; i <= 5; i++ {
		env.createUser(t, directWallet(i), &sponsor.ID)
		env.deposit(t, directWallet(i), fmt.Sprintf("0x21%02d", i), "100")
	}

	user, err := env.users.GetByID(ctx, sponsor.ID)
	require.NoError(t, err)
	require.Equal(t, 1, user.CurrentRank)

	// 入段后既有收益记录的上限追溯上调到300%
	record, err = env.roi.GetByDeposit(ctx, result.DepositID)
	require.NoError(t, err)
	assert.Equal(t, money.ToDB(mustParse(t, "300")), record.MaxRoiAtomic)
}

func TestAdminSetRank(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := &AuditActor{ID: "ops", IP: "127.0.0.1"}

	user := env.createUser(t, walletA, nil)
	result := env.deposit(t, walletA, "0x220", "100")

	require.Error(t, env.rankSvc.AdminSetRank(ctx, user.ID, 9, actor))
	require.Error(t, env.rankSvc.AdminSetRank(ctx, 9999, 3, actor))

	require.NoError(t, env.rankSvc.AdminSetRank(ctx, user.ID, 3, actor))

	updated, err := env.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.CurrentRank)

	// 手动设段同样触发追溯上限
	record, err := env.roi.GetByDeposit(ctx, result.DepositID)
	require.NoError(t, err)
	assert.Equal(t, money.ToDB(mustParse(t, "300")), record.MaxRoiAtomic)

	logs, err := env.audit.GetRecent(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "MANUAL_RANK_UPGRADE", logs[0].EventType)
}
