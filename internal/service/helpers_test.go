package service

import (
	"context"
	"math/big"
	"testing"

	"github.com/CryptoMichaael/Nexus/internal/config"
	"github.com/CryptoMichaael/Nexus/internal/models"
	"github.com/CryptoMichaael/Nexus/internal/money"
	"github.com/CryptoMichaael/Nexus/internal/repository"
	"github.com/CryptoMichaael/Nexus/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	_ = logger.Init("error", "text", "stdout")
}

// testEnv 内存库上的全套仓储与服务
type testEnv struct {
	db          *gorm.DB
	users       *repository.UserRepository
	balances    *repository.BalanceRepository
	deposits    *repository.DepositRepository
	roi         *repository.RoiRepository
	ledger      *repository.LedgerRepository
	pools       *repository.PoolRepository
	withdrawals *repository.WithdrawalRepository
	jobs        *repository.JobRepository
	audit       *repository.AuditRepository
	cfg         *config.Config

	depositSvc    *DepositService
	roiSvc        *RoiService
	rankSvc       *RankService
	poolSvc       *PoolService
	withdrawalSvc *WithdrawalService
	adminSvc      *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Balance{},
		&models.Deposit{},
		&models.RoiLedger{},
		&models.LedgerEntry{},
		&models.WeeklyPool{},
		&models.WeeklyReward{},
		&models.Withdrawal{},
		&models.WithdrawalJob{},
		&models.AuditLog{},
	))

	cfg := testConfig()
	env := &testEnv{
		db:          db,
		users:       repository.NewUserRepository(db),
		balances:    repository.NewBalanceRepository(db),
		deposits:    repository.NewDepositRepository(db),
		roi:         repository.NewRoiRepository(db),
		ledger:      repository.NewLedgerRepository(db),
		pools:       repository.NewPoolRepository(db),
		withdrawals: repository.NewWithdrawalRepository(db),
		jobs:        repository.NewJobRepository(db),
		audit:       repository.NewAuditRepository(db),
		cfg:         cfg,
	}

	env.rankSvc = NewRankService(db, env.users, env.balances, env.roi, env.ledger, env.audit, cfg)
	env.depositSvc = NewDepositService(db, env.users, env.balances, env.deposits, env.roi, env.ledger, cfg, env.rankSvc)
	env.roiSvc = NewRoiService(db, env.roi, env.balances, env.ledger, cfg)
	env.poolSvc = NewPoolService(db, env.users, env.balances, env.pools, env.ledger, cfg)
	env.adminSvc = NewAdminService(db, env.users, env.balances, env.ledger, env.audit, cfg)
	return env
}

func testConfig() *config.Config {
	directRank := func(r int) *int { return &r }
	return &config.Config{
		Roi: config.RoiConfig{
			DailyRateBps:       30,
			StandardCapPercent: 200,
			RankedCapPercent:   300,
		},
		Commission: config.CommissionConfig{
			MaxLevels: 7,
			LevelBps:  map[string]int64{"2": 500, "3": 200, "4": 100, "5": 100, "6": 50, "7": 50},
		},
		Ranks: []config.RankConfig{
			{Level: 1, Name: "L1", RequiredDirects: 5, MinDeposit: "100", PoolSharePercent: 35},
			{Level: 2, Name: "L2", RequiredDirects: 3, RequiredDirectRank: directRank(1), MinDeposit: "100", PoolSharePercent: 25},
			{Level: 3, Name: "L3", RequiredDirects: 3, RequiredDirectRank: directRank(2), MinDeposit: "100", PoolSharePercent: 16},
			{Level: 4, Name: "L4", RequiredDirects: 3, RequiredDirectRank: directRank(3), MinDeposit: "100", PoolSharePercent: 10},
			{Level: 5, Name: "L5", RequiredDirects: 3, RequiredDirectRank: directRank(4), MinDeposit: "100", PoolSharePercent: 7},
			{Level: 6, Name: "L6", RequiredDirects: 3, RequiredDirectRank: directRank(5), MinDeposit: "100", PoolSharePercent: 4},
			{Level: 7, Name: "L7", RequiredDirects: 3, RequiredDirectRank: directRank(6), MinDeposit: "100", PoolSharePercent: 3},
		},
		Pool:   config.PoolConfig{RateBps: 30},
		Queue:  config.QueueConfig{PollIntervalSeconds: 1, MaxAttempts: 3},
		Tokens: []string{"USDT"},
	}
}

func (e *testEnv) createUser(t *testing.T, wallet string, sponsorID *uint64) *models.User {
	t.Helper()
	user := &models.User{
		WalletAddress: wallet,
		SponsorID:     sponsorID,
		Status:        models.UserStatusActive,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) deposit(t *testing.T, wallet, txHash, amount string) *DepositResult {
	t.Helper()
	result, err := e.depositSvc.Process(context.Background(), &DepositEvent{
		TxHash:        txHash,
		WalletAddress: wallet,
		Token:         "USDT",
		Amount:        amount,
	})
	require.NoError(t, err)
	return result
}

func mustParse(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := money.Parse(s)
	require.NoError(t, err)
	return v
}

func (e *testEnv) claimable(t *testing.T, userID uint64) string {
	t.Helper()
	balance, err := e.balances.GetByUser(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, balance)
	return money.Format(money.FromDB(balance.ClaimableAtomic))
}
