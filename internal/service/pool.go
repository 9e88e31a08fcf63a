package service

import (
	"context"
	"math/big"
	"time"

	"github.com/CryptoMichaael/Nexus/internal/config"
	"github.com/CryptoMichaael/Nexus/internal/models"
	"github.com/CryptoMichaael/Nexus/internal/money"
	"github.com/CryptoMichaael/Nexus/internal/repository"
	"github.com/CryptoMichaael/Nexus/pkg/errors"
	"github.com/CryptoMichaael/Nexus/pkg/logger"

	"gorm.io/gorm"
)

type PoolService struct {
	db       *gorm.DB
	users    *repository.UserRepository
	balances *repository.BalanceRepository
	pools    *repository.PoolRepository
	ledger   *repository.LedgerRepository
	cfg      *config.Config
}

func NewPoolService(
	db *gorm.DB,
	users *repository.UserRepository,
	balances *repository.BalanceRepository,
	pools *repository.PoolRepository,
	ledger *repository.LedgerRepository,
	cfg *config.Config,
) *PoolService {
	return &PoolService{
		db:       db,
		users:    users,
		balances: balances,
		pools:    pools,
		ledger:   ledger,
		cfg:      cfg,
	}
}

// WeekStart 返回 now 所在 ISO 周的周一（UTC），格式 2006-01-02
func WeekStart(now time.Time) string {
	now = now.UTC()
	offset := (int(now.Weekday()) + 6) % 7
	return now.AddDate(0, 0, -offset).Format("2006-01-02")
}

// Run 执行一轮完整的周池流程：计算分配后逐笔入账
func (s *PoolService) Run(ctx context.Context, now time.Time) error {
	pool, err := s.Calculate(ctx, now)
	if err != nil {
		return err
	}
	if pool == nil {
		return nil
	}
	return s.CreditPending(ctx, pool.ID)
}

// Calculate 计算本周的段位池并生成待入账奖励行，全程单事务
// 池按全平台累计入金的固定比例取值，按段位配置份额分层，层内均分。
// week_start_date 唯一约束保证重复触发为空操作（返回 nil 池）
func (s *PoolService) Calculate(ctx context.Context, now time.Time) (*models.WeeklyPool, error) {
	weekStart := WeekStart(now)
	weekEnd, _ := time.Parse("2006-01-02", weekStart)
	weekEndStr := weekEnd.AddDate(0, 0, 6).Format("2006-01-02")

	total, err := s.totalDeposits(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrPoolCalc, "统计累计入金失败", err)
	}
	poolSize := money.ApplyBps(total, s.cfg.Pool.RateBps)

	pool := &models.WeeklyPool{
		WeekStartDate:       weekStart,
		WeekEndDate:         weekEndStr,
		TotalDepositsAtomic: money.ToDB(total),
		PoolSizeAtomic:      money.ToDB(poolSize),
		Distribution:        models.JSONB{},
		Status:              models.PoolStatusCalculated,
		CalculatedAt:        time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.pools.WithTx(tx).CreatePool(ctx, pool); err != nil {
			return err
		}

		for _, rc := range s.cfg.Ranks {
			holders, err := s.users.WithTx(tx).GetByRank(ctx, rc.Level)
			if err != nil {
				return err
			}
			rankShare := money.ApplyPercent(poolSize, rc.PoolSharePercent)

			pool.Distribution[rc.Name] = models.JSONB{
				"rank_level":    rc.Level,
				"share_percent": rc.PoolSharePercent,
				"share_atomic":  money.ToDB(rankShare),
				"holders":       len(holders),
			}
			if len(holders) == 0 || rankShare.Sign() <= 0 {
				continue
			}

			// 层内向下取整均分，截断余量留在池内不发
			perHolder := new(big.Int).Div(rankShare, big.NewInt(int64(len(holders))))
			if perHolder.Sign() <= 0 {
				continue
			}

			for _, holder := range holders {
				reward := &models.WeeklyReward{
					PoolID:           pool.ID,
					UserID:           holder.ID,
					WalletAddress:    holder.WalletAddress,
					RankLevel:        rc.Level,
					RankName:         rc.Name,
					TotalRankHolders: len(holders),
					ShareAtomic:      money.ToDB(perHolder),
					Status:           models.RewardStatusPending,
				}
				if err := s.pools.WithTx(tx).CreateReward(ctx, reward); err != nil {
					return err
				}
			}
		}

		return tx.Model(&models.WeeklyPool{}).
			Where("id = ?", pool.ID).
			Update("distribution", pool.Distribution).Error
	})
	if err == repository.ErrDuplicatePool {
		logger.WithFields(map[string]interface{}{
			"week_start": weekStart,
		}).Info("本周段位池已计算，跳过")
		return s.pools.GetByWeekStart(ctx, weekStart)
	}
	if err != nil {
		return nil, errors.New(errors.ErrPoolCalc, "周池计算失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"week_start": weekStart,
		"pool_size":  money.Format(poolSize),
	}).Info("周段位池已计算")

	return pool, nil
}

// CreditPending 奖励入账阶段，逐笔独立事务
// 单笔失败只影响该笔，剩余照常入账，后续调度自动补发；
// 带条件的状态迁移防止同一笔奖励重复入账
func (s *PoolService) CreditPending(ctx context.Context, poolID uint64) error {
	rewards, err := s.pools.GetPendingRewards(ctx, poolID)
	if err != nil {
		return errors.New(errors.ErrPoolCalc, "拉取待入账奖励失败", err)
	}

	failed := 0
	for i := range rewards {
		if err := s.creditReward(ctx, &rewards[i]); err != nil {
			failed++
			logger.Error("周池奖励入账失败, reward:", rewards[i].ID, err)
		}
	}

	if failed == 0 && poolID > 0 {
		if err := s.pools.MarkPoolDistributed(ctx, poolID); err != nil {
			return errors.New(errors.ErrPoolCalc, "标记池已分发失败", err)
		}
	}

	logger.WithFields(map[string]interface{}{
		"pool_id":  poolID,
		"credited": len(rewards) - failed,
		"failed":   failed,
	}).Info("周池奖励入账完成")

	return nil
}

func (s *PoolService) creditReward(ctx context.Context, reward *models.WeeklyReward) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		share := money.FromDB(reward.ShareAtomic)

		balance, err := s.balances.WithTx(tx).GetForUpdate(ctx, reward.UserID, reward.WalletAddress)
		if err != nil {
			return err
		}
		claimable, err := money.Add(money.FromDB(balance.ClaimableAtomic), share)
		if err != nil {
			return err
		}
		balance.ClaimableAtomic = money.ToDB(claimable)
		if err := s.balances.WithTx(tx).Save(ctx, balance); err != nil {
			return err
		}

		entry := &models.LedgerEntry{
			UserID:       reward.UserID,
			Type:         models.LedgerTypeWeeklyRank,
			Token:        "USDT",
			AmountAtomic: reward.ShareAtomic,
			Status:       models.LedgerStatusCompleted,
			RefType:      "weekly_reward",
			RefID:        reward.ID,
			Meta: models.JSONB{
				"pool_id":   reward.PoolID,
				"rank":      reward.RankLevel,
				"rank_name": reward.RankName,
			},
		}
		if err := s.ledger.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}

		return s.pools.WithTx(tx).MarkRewardCredited(ctx, reward.ID, entry.ID)
	})
}

// totalDeposits 全平台累计入金，应用侧大整数求和
func (s *PoolService) totalDeposits(ctx context.Context) (*big.Int, error) {
	balances, err := s.balances.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	total := new(big.Int)
	for i := range balances {
		total, err = money.Add(total, money.FromDB(balances[i].TotalDepositedAtomic))
		if err != nil {
			return nil, err
		}
	}
	return total, nil
}
