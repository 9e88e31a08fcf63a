package service

import (
	"context"
	"fmt"

	"github.com/CryptoMichaael/Nexus/internal/config"
	"github.com/CryptoMichaael/Nexus/internal/models"
	"github.com/CryptoMichaael/Nexus/internal/money"
	"github.com/CryptoMichaael/Nexus/internal/repository"
	"github.com/CryptoMichaael/Nexus/pkg/errors"
	"github.com/CryptoMichaael/Nexus/pkg/logger"

	"gorm.io/gorm"
)

type RankService struct {
	db       *gorm.DB
	users    *repository.UserRepository
	balances *repository.BalanceRepository
	roi      *repository.RoiRepository
	ledger   *repository.LedgerRepository
	audit    *repository.AuditRepository
	cfg      *config.Config
}

func NewRankService(
	db *gorm.DB,
	users *repository.UserRepository,
	balances *repository.BalanceRepository,
	roi *repository.RoiRepository,
	ledger *repository.LedgerRepository,
	audit *repository.AuditRepository,
	cfg *config.Config,
) *RankService {
	return &RankService{
		db:       db,
		users:    users,
		balances: balances,
		roi:      roi,
		ledger:   ledger,
		audit:    audit,
		cfg:      cfg,
	}
}

// CheckAndUpgrade 检查单个用户是否满足下一段位条件，满足则升段
// 段位只增不减；每次评估最多升一段，重复评估自然收敛
func (s *RankService) CheckAndUpgrade(ctx context.Context, userID uint64) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, errors.New(errors.ErrRankUpgrade, "查询用户失败", err)
	}
	if user == nil || user.CurrentRank >= models.MaxRank {
		return false, nil
	}

	nextRank := user.CurrentRank + 1
	rc, ok := s.cfg.RankByLevel(nextRank)
	if !ok {
		return false, nil
	}

	qualified, err := s.countQualifiedDirects(ctx, userID, rc)
	if err != nil {
		return false, err
	}
	if qualified < rc.RequiredDirects {
		return false, nil
	}

	if err := s.upgrade(ctx, user, nextRank, rc, qualified); err != nil {
		return false, err
	}
	return true, nil
}

// CheckAll 对全部未达最高段位的用户做一轮段位评估（小时级调度）
func (s *RankService) CheckAll(ctx context.Context) (int, error) {
	users, err := s.users.GetBelowRank(ctx, models.MaxRank)
	if err != nil {
		return 0, errors.New(errors.ErrRankUpgrade, "拉取待评估用户失败", err)
	}

	upgraded := 0
	for _, u := range users {
		ok, err := s.CheckAndUpgrade(ctx, u.ID)
		if err != nil {
			logger.Error("段位评估失败, user:", u.ID, err)
			continue
		}
		if ok {
			upgraded++
		}
	}

	logger.WithFields(map[string]interface{}{
		"checked":  len(users),
		"upgraded": upgraded,
	}).Info("段位评估完成")

	return upgraded, nil
}

// countQualifiedDirects 统计合格直推数
// 合格条件：累计入金达到门槛；二段及以上还要求直推自身段位达标。
// 金额比较在应用侧以大整数进行
func (s *RankService) countQualifiedDirects(ctx context.Context, userID uint64, rc *config.RankConfig) (int, error) {
	minDeposit, err := money.Parse(rc.MinDeposit)
	if err != nil {
		return 0, errors.New(errors.ErrRankUpgrade, "段位配置的最低入金非法", err)
	}

	directs, err := s.users.GetDirects(ctx, userID)
	if err != nil {
		return 0, err
	}

	qualified := 0
	for _, d := range directs {
		balance, err := s.balances.GetByUser(ctx, d.ID)
		if err != nil {
			return 0, err
		}
		if balance == nil {
			continue
		}
		if money.FromDB(balance.TotalDepositedAtomic).Cmp(minDeposit) < 0 {
			continue
		}
		if rc.RequiredDirectRank != nil && d.CurrentRank < *rc.RequiredDirectRank {
			continue
		}
		qualified++
	}
	return qualified, nil
}

func (s *RankService) upgrade(ctx context.Context, user *models.User, newRank int, rc *config.RankConfig, qualified int) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.users.WithTx(tx).UpdateRank(ctx, user.ID, newRank); err != nil {
			return err
		}

		// 首次入段解锁300%收益上限，追溯到全部活跃收益记录
		if user.CurrentRank == 0 && newRank >= 1 {
			if err := s.applyRankedCap(ctx, tx, user.ID); err != nil {
				return err
			}
		}

		return s.ledger.WithTx(tx).Create(ctx, &models.LedgerEntry{
			UserID:       user.ID,
			Type:         models.LedgerTypeAdjustment,
			Token:        "USDT",
			AmountAtomic: "0",
			Status:       models.LedgerStatusCompleted,
			RefType:      "rank_achievement",
			RefID:        user.ID,
			Meta: models.JSONB{
				"rank":              newRank,
				"rank_name":         rc.Name,
				"qualified_directs": qualified,
			},
		})
	})
	if err != nil {
		return errors.New(errors.ErrRankUpgrade, "升段落库失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"user_id":           user.ID,
		"wallet":            user.WalletAddress,
		"new_rank":          newRank,
		"rank_name":         rc.Name,
		"qualified_directs": qualified,
	}).Info("用户已升段")

	return nil
}

// applyRankedCap 将用户全部活跃收益记录的上限追溯上调到入段倍率
// 自动升段与管理员手动设段共用此函数，保证追溯规则只有一份实现
func (s *RankService) applyRankedCap(ctx context.Context, tx *gorm.DB, userID uint64) error {
	records, err := s.roi.WithTx(tx).GetActiveByUserForUpdate(ctx, userID)
	if err != nil {
		return err
	}

	for i := range records {
		principal := money.FromDB(records[i].PrincipalAtomic)
		records[i].MaxRoiAtomic = money.ToDB(money.ApplyPercent(principal, s.cfg.Roi.RankedCapPercent))
		if err := s.roi.WithTx(tx).Save(ctx, &records[i]); err != nil {
			return err
		}
	}
	return nil
}

// AdminSetRank 管理员直接设段（MFA路径），与自动升段共用追溯上限逻辑
// 操作永久写入安全审计日志
func (s *RankService) AdminSetRank(ctx context.Context, userID uint64, targetRank int, actor *AuditActor) error {
	if targetRank < 0 || targetRank > models.MaxRank {
		return errors.New(errors.ErrInvalidInput, fmt.Sprintf("非法段位: %d", targetRank), nil)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return errors.New(errors.ErrRankUpgrade, "查询用户失败", err)
	}
	if user == nil {
		return errors.New(errors.ErrInvalidInput, "用户不存在", nil)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.users.WithTx(tx).UpdateRank(ctx, userID, targetRank); err != nil {
			return err
		}

		if targetRank > 0 {
			if err := s.applyRankedCap(ctx, tx, userID); err != nil {
				return err
			}
		}

		return s.audit.WithTx(tx).Create(ctx, &models.AuditLog{
			ActorID:   actor.ID,
			EventType: "MANUAL_RANK_UPGRADE",
			IPAddress: actor.IP,
			UserAgent: actor.UserAgent,
			Details: models.JSONB{
				"user_id":     userID,
				"target_rank": targetRank,
				"prev_rank":   user.CurrentRank,
			},
		})
	})
	if err != nil {
		return errors.New(errors.ErrRankUpgrade, "管理员设段失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"actor":       actor.ID,
		"user_id":     userID,
		"target_rank": targetRank,
	}).Warn("管理员手动调整段位")

	return nil
}

// AuditActor 审计日志的操作者信息
type AuditActor struct {
	ID        string
	IP        string
	UserAgent string
}
