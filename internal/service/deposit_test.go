package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/CryptoMichaael/Nexus/internal/models"
	"github.com/CryptoMichaael/Nexus/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	walletA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	walletB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	walletC = "0xcccccccccccccccccccccccccccccccccccccccc"
)

func TestDepositCreditsChainOfSponsors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createUser(t, walletA, nil)
	b := env.createUser(t, walletB, &a.ID)
	c := env.createUser(t, walletC, &b.ID)

	result := env.deposit(t, walletC, "0x01", "100")
	require.False(t, result.Duplicate)

	// 入金人全额入账，二层500bps，三层200bps
	assert.Equal(t, "100", env.claimable(t, c.ID))
	assert.Equal(t, "5", env.claimable(t, b.ID))
	assert.Equal(t, "2", env.claimable(t, a.ID))

	record, err := env.roi.GetByDeposit(ctx, result.DepositID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, money.ToDB(mustParse(t, "100")), record.PrincipalAtomic)
	assert.Equal(t, money.ToDB(mustParse(t, "200")), record.MaxRoiAtomic)
	assert.Equal(t, models.RoiStatusActive, record.Status)

	deposit, err := env.deposits.GetByTxHash(ctx, "0x01")
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusSuccess, deposit.Status)

	entries, err := env.ledger.GetByRef(ctx, "deposit", result.DepositID)
	require.NoError(t, err)
	assert.Len(t, entries, 3) // DEPOSIT + 两条 LEVEL_REWARD
}

func TestDepositReplayIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createUser(t, walletA, nil)
	env.createUser(t, walletB, &a.ID)

	first := env.deposit(t, walletB, "0x02", "50")
	require.False(t, first.Duplicate)

	entriesBefore, err := env.ledger.GetByRef(ctx, "deposit", first.DepositID)
	require.NoError(t, err)

	replay := env.deposit(t, walletB, "0x02", "50")
	assert.True(t, replay.Duplicate)

	entriesAfter, err := env.ledger.GetByRef(ctx, "deposit", first.DepositID)
	require.NoError(t, err)
	assert.Len(t, entriesAfter, len(entriesBefore))

	b, err := env.users.GetByWallet(ctx, walletB)
	require.NoError(t, err)
	assert.Equal(t, "50", env.claimable(t, b.ID))
}

func TestDepositCreatesUnknownWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.deposit(t, walletC, "0x03", "10")
	require.False(t, result.Duplicate)

	user, err := env.users.GetByWallet(ctx, walletC)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Nil(t, user.SponsorID)
	assert.Equal(t, "10", env.claimable(t, user.ID))
}

func TestDepositRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.depositSvc.Process(ctx, &DepositEvent{
		TxHash: "0x04", WalletAddress: walletA, Token: "DOGE", Amount: "10",
	})
	assert.Error(t, err)

	_, err = env.depositSvc.Process(ctx, &DepositEvent{
		TxHash: "0x05", WalletAddress: walletA, Token: "USDT", Amount: "0",
	})
	assert.Error(t, err)

	_, err = env.depositSvc.Process(ctx, &DepositEvent{
		WalletAddress: walletA, Token: "USDT", Amount: "10",
	})
	assert.Error(t, err)
}

func TestDepositConservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.createUser(t, walletA, nil)
	b := env.createUser(t, walletB, &a.ID)

	env.deposit(t, walletB, "0x06", "100")
	env.deposit(t, walletB, "0x07", "30.5")

	// 余额缓存必须与已完成账本条目之和一致
	recomputed, err := env.ledger.RecomputeClaimable(ctx, b.ID)
	require.NoError(t, err)

	balance, err := env.balances.GetByUser(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, money.ToDB(recomputed), balance.ClaimableAtomic)
}

func TestDepositFailedRetryRecredits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.createUser(t, walletA, nil)
	require.NoError(t, env.db.Create(&models.Deposit{
		UserID:       user.ID,
		TxHash:       "0x08",
		Token:        "USDT",
		AmountAtomic: money.ToDB(mustParse(t, "100")),
		Status:       models.DepositStatusFailed,
		Error:        "db unavailable",
		DepositedAt:  time.Now().UTC(),
	}).Error)

	// 重放失败入金走重试补记
	result := env.deposit(t, walletA, "0x08", "100")
	require.False(t, result.Duplicate)
	assert.Equal(t, "100", env.claimable(t, user.ID))

	deposit, err := env.deposits.GetByTxHash(ctx, "0x08")
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusSuccess, deposit.Status)
	assert.Empty(t, deposit.Error)
}

func TestDepositRetryLoserCannotClobberSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.createUser(t, walletA, nil)
	require.NoError(t, env.db.Create(&models.Deposit{
		UserID:       user.ID,
		TxHash:       "0x09",
		Token:        "USDT",
		AmountAtomic: money.ToDB(mustParse(t, "100")),
		Status:       models.DepositStatusFailed,
		DepositedAt:  time.Now().UTC(),
	}).Error)

	result := env.deposit(t, walletA, "0x09", "100")
	require.False(t, result.Duplicate)

	deposit, err := env.deposits.GetByTxHash(ctx, "0x09")
	require.NoError(t, err)
	require.Equal(t, models.DepositStatusSuccess, deposit.Status)

	// 并发重放的落败方：读到旧的 FAILED 后条件重置抢不到行
	claimed, err := env.deposits.ResetForRetry(ctx, deposit.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	// 落败方补记中止后的标记失败不得覆盖已成功状态
	require.NoError(t, env.deposits.MarkFailed(ctx, "0x09", fmt.Errorf("credit aborted")))
	deposit, err = env.deposits.GetByTxHash(ctx, "0x09")
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusSuccess, deposit.Status)

	// 后续重放按重复投递处理，余额不变
	replay := env.deposit(t, walletA, "0x09", "100")
	assert.True(t, replay.Duplicate)
	assert.Equal(t, "100", env.claimable(t, user.ID))
}
