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

func TestWeekStart(t *testing.T) {
	// 2026-03-04 是周三，所属周起点为周一 03-02
	assert.Equal(t, "2026-03-02", WeekStart(time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-03-02", WeekStart(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-03-02", WeekStart(time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "2026-03-09", WeekStart(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)))
}

func TestWeeklyPoolDistribution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u1 := env.createUser(t, walletA, nil)
	u2 := env.createUser(t, walletB, nil)
	u3 := env.createUser(t, walletC, nil)
	env.deposit(t, walletA, "0x30", "1000")
	env.deposit(t, walletB, "0x31", "1000")
	env.deposit(t, walletC, "0x32", "1000")

	require.NoError(t, env.users.UpdateRank(ctx, u1.ID, 1))
	require.NoError(t, env.users.UpdateRank(ctx, u2.ID, 1))
	require.NoError(t, env.users.UpdateRank(ctx, u3.ID, 2))

	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	require.NoError(t, env.poolSvc.Run(ctx, now))

	pool, err := env.pools.GetByWeekStart(ctx, "2026-03-02")
	require.NoError(t, err)
	require.NotNil(t, pool)
	assert.Equal(t, models.PoolStatusDistributed, pool.Status)

	// 总入金3000 × 30bps = 9
	assert.Equal(t, money.ToDB(mustParse(t, "9")), pool.PoolSizeAtomic)

	// L1 占35%均分给2人，L2 占25%给1人
	assert.Equal(t, "1001.575", env.claimable(t, u1.ID))
	assert.Equal(t, "1001.575", env.claimable(t, u2.ID))
	assert.Equal(t, "1002.25", env.claimable(t, u3.ID))

	rewards, err := env.pools.GetRewardsByPool(ctx, pool.ID)
	require.NoError(t, err)
	require.Len(t, rewards, 3)
	for _, r := range rewards {
		assert.Equal(t, models.RewardStatusCredited, r.Status)
		assert.NotNil(t, r.LedgerID)
	}
}

func TestWeeklyPoolRunsOncePerWeek(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u1 := env.createUser(t, walletA, nil)
	env.deposit(t, walletA, "0x33", "1000")
	require.NoError(t, env.users.UpdateRank(ctx, u1.ID, 1))

	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	require.NoError(t, env.poolSvc.Run(ctx, now))
	after := env.claimable(t, u1.ID)

	// 同一周重复触发为空操作
	require.NoError(t, env.poolSvc.Run(ctx, now.AddDate(0, 0, 2)))
	assert.Equal(t, after, env.claimable(t, u1.ID))

	rewards, err := env.pools.GetPendingRewards(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, rewards)
}

func TestWeeklyPoolTwoPhaseResume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u1 := env.createUser(t, walletA, nil)
	env.deposit(t, walletA, "0x34", "1000")
	require.NoError(t, env.users.UpdateRank(ctx, u1.ID, 1))

	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	pool, err := env.poolSvc.Calculate(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, pool)
	assert.Equal(t, models.PoolStatusCalculated, pool.Status)

	// 计算与入账之间崩溃：奖励行还在 pending，入账阶段直接续跑
	pending, err := env.pools.GetPendingRewards(ctx, pool.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "1000", env.claimable(t, u1.ID))

	require.NoError(t, env.poolSvc.CreditPending(ctx, pool.ID))

	pool, err = env.pools.GetByWeekStart(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, models.PoolStatusDistributed, pool.Status)
	// 1000 × 30bps × 35% = 1.05
	assert.Equal(t, "1001.05", env.claimable(t, u1.ID))
}
