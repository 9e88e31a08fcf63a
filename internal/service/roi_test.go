package service

import (
	"context"
	"testing"
	"time"

	"github.com/CryptoMichaael/Nexus/internal/models"
	"github.com/CryptoMichaael/Nexus/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoiAccrualDaily(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.deposit(t, walletA, "0x10", "1000")
	user, err := env.users.GetByWallet(ctx, walletA)
	require.NoError(t, err)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	summary, err := env.roiSvc.AccrueDaily(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Capped)

	// 本金1000，日息30bps → 3
	assert.Equal(t, "3", money.Format(summary.TotalCredited))
	assert.Equal(t, "1003", env.claimable(t, user.ID))
}

func TestRoiAccrualSameDayIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.deposit(t, walletA, "0x11", "1000")
	user, err := env.users.GetByWallet(ctx, walletA)
	require.NoError(t, err)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	_, err = env.roiSvc.AccrueDaily(ctx, day)
	require.NoError(t, err)

	// 同日重跑不产生额外收益
	summary, err := env.roiSvc.AccrueDaily(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, "1003", env.claimable(t, user.ID))

	// 次日照常计提
	next, err := env.roiSvc.AccrueDaily(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, next.Processed)
	assert.Equal(t, "1006", env.claimable(t, user.ID))
}

func TestRoiAccrualReplayedPastDayIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.deposit(t, walletA, "0x13", "1000")
	user, err := env.users.GetByWallet(ctx, walletA)
	require.NoError(t, err)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	_, err = env.roiSvc.AccrueDaily(ctx, day)
	require.NoError(t, err)
	_, err = env.roiSvc.AccrueDaily(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, "1006", env.claimable(t, user.ID))

	// 回放已计提的历史日期不得再次计提
	replay, err := env.roiSvc.AccrueDaily(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 0, replay.Processed)
	assert.Equal(t, "1006", env.claimable(t, user.ID))
}

func TestRoiAccrualStopsAtCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.deposit(t, walletA, "0x12", "100")

	// 把累计收益推到上限附近，下一次计提只补齐剩余差额
	record, err := env.roi.GetByDeposit(ctx, result.DepositID)
	require.NoError(t, err)
	nearCap, err := money.Sub(money.FromDB(record.MaxRoiAtomic), mustParse(t, "0.1"))
	require.NoError(t, err)
	record.AccumulatedRoiAtomic = money.ToDB(nearCap)
	require.NoError(t, env.roi.Save(ctx, record))

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	summary, err := env.roiSvc.AccrueDaily(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Capped)
	assert.Equal(t, "0.1", money.Format(summary.TotalCredited))

	record, err = env.roi.GetByDeposit(ctx, result.DepositID)
	require.NoError(t, err)
	assert.Equal(t, models.RoiStatusCapped, record.Status)
	assert.Equal(t, record.MaxRoiAtomic, record.AccumulatedRoiAtomic)

	// 封顶记录不再参与计提
	next, err := env.roiSvc.AccrueDaily(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, next.Processed)
}
