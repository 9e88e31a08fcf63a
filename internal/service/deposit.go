package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/CryptoMichaael/Nexus/internal/config"
	"github.com/CryptoMichaael/Nexus/internal/models"
	"github.com/CryptoMichaael/Nexus/internal/money"
	"github.com/CryptoMichaael/Nexus/internal/repository"
	"github.com/CryptoMichaael/Nexus/pkg/errors"
	"github.com/CryptoMichaael/Nexus/pkg/logger"

	"gorm.io/gorm"
)

// DepositEvent 边界层已验签的入金事件
type DepositEvent struct {
	TxHash        string `json:"txHash"`
	WalletAddress string `json:"creditedWalletAddress"`
	Token         string `json:"tokenSymbol"`
	Amount        string `json:"amount"`
	FromAddress   string `json:"fromAddress"`
	ToAddress     string `json:"toAddress"`
	Timestamp     int64  `json:"timestamp"`
}

type DepositResult struct {
	Duplicate bool   `json:"duplicate"`
	DepositID uint64 `json:"deposit_id,omitempty"`
}

type DepositService struct {
	db       *gorm.DB
	users    *repository.UserRepository
	balances *repository.BalanceRepository
	deposits *repository.DepositRepository
	roi      *repository.RoiRepository
	ledger   *repository.LedgerRepository
	cfg      *config.Config
	rank     *RankService
}

func NewDepositService(
	db *gorm.DB,
	users *repository.UserRepository,
	balances *repository.BalanceRepository,
	deposits *repository.DepositRepository,
	roi *repository.RoiRepository,
	ledger *repository.LedgerRepository,
	cfg *config.Config,
	rank *RankService,
) *DepositService {
	return &DepositService{
		db:       db,
		users:    users,
		balances: balances,
		deposits: deposits,
		roi:      roi,
		ledger:   ledger,
		cfg:      cfg,
		rank:     rank,
	}
}

// Process 处理已验签的入金事件，以交易哈希为幂等键
// 重复投递返回 duplicate 结果且不产生任何额外经济效果；
// 失败的入金重放时重置后重新处理
func (s *DepositService) Process(ctx context.Context, event *DepositEvent) (*DepositResult, error) {
	if event.TxHash == "" {
		return nil, errors.New(errors.ErrInvalidInput, "txHash为空", nil)
	}
	if !s.cfg.IsTokenSupported(event.Token) {
		return nil, errors.New(errors.ErrInvalidInput, fmt.Sprintf("不支持的代币: %s", event.Token), nil)
	}

	amount, err := money.Parse(event.Amount)
	if err != nil {
		return nil, errors.New(errors.ErrInvalidInput, "金额格式非法", err)
	}
	if amount.Sign() <= 0 {
		return nil, errors.New(errors.ErrInvalidInput, "金额必须大于零", nil)
	}

	depositedAt := time.Now().UTC()
	if event.Timestamp > 0 {
		depositedAt = time.UnixMilli(event.Timestamp).UTC()
	}

	// 先落入金行：唯一约束在存储层拦截并发重复投递
	user, deposit, err := s.insertDeposit(ctx, event, amount, depositedAt)
	if err != nil {
		return nil, err
	}
	if deposit == nil {
		// 已存在：SUCCESS/PROCESSING 为重复投递，FAILED 走重试
		existing, err := s.deposits.GetByTxHash(ctx, event.TxHash)
		if err != nil {
			return nil, errors.New(errors.ErrDepositProcess, "查询已存在入金失败", err)
		}
		if existing == nil || existing.Status != models.DepositStatusFailed {
			logger.WithFields(map[string]interface{}{
				"tx_hash": event.TxHash,
			}).Info("重复入金已忽略")
			return &DepositResult{Duplicate: true}, nil
		}

		claimed, err := s.deposits.ResetForRetry(ctx, existing.ID)
		if err != nil {
			return nil, errors.New(errors.ErrDepositProcess, "重置失败入金失败", err)
		}
		if !claimed {
			// 另一路重放已抢到该入金，按重复投递处理
			logger.WithFields(map[string]interface{}{
				"tx_hash": event.TxHash,
			}).Info("重复入金已忽略")
			return &DepositResult{Duplicate: true}, nil
		}
		deposit = existing
		user, err = s.users.GetByID(ctx, existing.UserID)
		if err != nil || user == nil {
			return nil, errors.New(errors.ErrDepositProcess, "入金用户不存在", err)
		}
	}

	if err := s.credit(ctx, user, deposit, amount); err != nil {
		if markErr := s.deposits.MarkFailed(ctx, event.TxHash, err); markErr != nil {
			logger.Error("标记入金失败状态出错:", markErr)
		}
		return nil, errors.New(errors.ErrDepositProcess, "入金处理失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"tx_hash":    event.TxHash,
		"deposit_id": deposit.ID,
		"wallet":     user.WalletAddress,
		"amount":     money.Format(amount),
	}).Info("入金已处理")

	// 达到门槛的入金可能使推荐人符合升段条件
	s.triggerSponsorRankCheck(ctx, user, amount)

	return &DepositResult{Duplicate: false, DepositID: deposit.ID}, nil
}

func (s *DepositService) insertDeposit(ctx context.Context, event *DepositEvent, amount *big.Int, depositedAt time.Time) (*models.User, *models.Deposit, error) {
	var user *models.User
	var deposit *models.Deposit

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = s.users.WithTx(tx).GetOrCreateByWallet(ctx, event.WalletAddress)
		if err != nil {
			return err
		}

		deposit = &models.Deposit{
			UserID:       user.ID,
			TxHash:       event.TxHash,
			Token:        event.Token,
			AmountAtomic: money.ToDB(amount),
			FromAddress:  strings.ToLower(event.FromAddress),
			ToAddress:    strings.ToLower(event.ToAddress),
			Status:       models.DepositStatusProcessing,
			DepositedAt:  depositedAt,
		}
		return s.deposits.WithTx(tx).Create(ctx, deposit)
	})

	if err == repository.ErrDuplicateDeposit {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, errors.New(errors.ErrDepositProcess, "入金落库失败", err)
	}
	return user, deposit, nil
}

// credit 单事务内完成余额、收益记录、分佣与账本写入
// 崩溃不会产生已入账却无对应收益记录的半成品状态
func (s *DepositService) credit(ctx context.Context, user *models.User, deposit *models.Deposit, amount *big.Int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := s.balances.WithTx(tx).GetForUpdate(ctx, user.ID, user.WalletAddress)
		if err != nil {
			return err
		}

		claimable, err := money.Add(money.FromDB(balance.ClaimableAtomic), amount)
		if err != nil {
			return err
		}
		deposited, err := money.Add(money.FromDB(balance.TotalDepositedAtomic), amount)
		if err != nil {
			return err
		}
		balance.ClaimableAtomic = money.ToDB(claimable)
		balance.TotalDepositedAtomic = money.ToDB(deposited)
		if err := s.balances.WithTx(tx).Save(ctx, balance); err != nil {
			return err
		}

		if err := s.createRoiRecord(ctx, tx, user, deposit, amount); err != nil {
			return err
		}

		if err := s.creditUpline(ctx, tx, user, deposit, amount); err != nil {
			return err
		}

		if err := s.ledger.WithTx(tx).Create(ctx, &models.LedgerEntry{
			UserID:       user.ID,
			Type:         models.LedgerTypeDeposit,
			Token:        deposit.Token,
			AmountAtomic: money.ToDB(amount),
			Status:       models.LedgerStatusCompleted,
			RefType:      "deposit",
			RefID:        deposit.ID,
			Meta:         models.JSONB{"txHash": deposit.TxHash},
		}); err != nil {
			return err
		}

		return s.deposits.WithTx(tx).MarkSuccess(ctx, deposit.ID)
	})
}

// createRoiRecord 收益上限按入金时用户当前段位取值
// 未入段200%，入段300%；升段后由段位引擎追溯上调
func (s *DepositService) createRoiRecord(ctx context.Context, tx *gorm.DB, user *models.User, deposit *models.Deposit, amount *big.Int) error {
	capPercent := s.cfg.Roi.StandardCapPercent
	if user.CurrentRank > 0 {
		capPercent = s.cfg.Roi.RankedCapPercent
	}

	return s.roi.WithTx(tx).Create(ctx, &models.RoiLedger{
		DepositID:            deposit.ID,
		UserID:               user.ID,
		WalletAddress:        user.WalletAddress,
		PrincipalAtomic:      money.ToDB(amount),
		AccumulatedRoiAtomic: "0",
		MaxRoiAtomic:         money.ToDB(money.ApplyPercent(amount, capPercent)),
		DailyRateBps:         s.cfg.Roi.DailyRateBps,
		Status:               models.RoiStatusActive,
		StartDate:            deposit.DepositedAt.Format("2006-01-02"),
	})
}

// creditUpline 沿推荐链上行逐级分佣，最多走到配置的层级上限
// 层级1是入金人自身，不参与分佣；断链只意味着层级变少，不是错误。
// 祖先解析失败时记录告警并停止上行（fail-open，入金本身不回滚）；
// 已解析祖先的入账写失败仍会中止整个入金事务
func (s *DepositService) creditUpline(ctx context.Context, tx *gorm.DB, depositor *models.User, deposit *models.Deposit, amount *big.Int) error {
	visited := map[uint64]bool{depositor.ID: true}
	cursor := depositor.SponsorID

	for level := 2; cursor != nil && level <= s.cfg.Commission.MaxLevels; level++ {
		ancestor, err := s.users.WithTx(tx).GetByID(ctx, *cursor)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"deposit_id": deposit.ID,
				"level":      level,
				"marker":     "commission_fanout_incomplete",
			}).Error("分佣祖先解析失败，上行中止:", err)
			return nil
		}
		if ancestor == nil || visited[ancestor.ID] {
			break
		}
		visited[ancestor.ID] = true

		rate := s.cfg.Commission.RateForLevel(level)
		if rate > 0 {
			commission := money.ApplyBps(amount, rate)
			if commission.Sign() > 0 {
				if err := s.creditCommission(ctx, tx, ancestor, deposit, commission, level); err != nil {
					return err
				}
			}
		}

		cursor = ancestor.SponsorID
	}
	return nil
}

func (s *DepositService) creditCommission(ctx context.Context, tx *gorm.DB, ancestor *models.User, deposit *models.Deposit, commission *big.Int, level int) error {
	balance, err := s.balances.WithTx(tx).GetForUpdate(ctx, ancestor.ID, ancestor.WalletAddress)
	if err != nil {
		return err
	}

	claimable, err := money.Add(money.FromDB(balance.ClaimableAtomic), commission)
	if err != nil {
		return err
	}
	earned, err := money.Add(money.FromDB(balance.TotalCommissionEarnedAtomic), commission)
	if err != nil {
		return err
	}
	balance.ClaimableAtomic = money.ToDB(claimable)
	balance.TotalCommissionEarnedAtomic = money.ToDB(earned)
	if err := s.balances.WithTx(tx).Save(ctx, balance); err != nil {
		return err
	}

	return s.ledger.WithTx(tx).Create(ctx, &models.LedgerEntry{
		UserID:       ancestor.ID,
		Type:         models.LedgerTypeLevelReward,
		Token:        deposit.Token,
		AmountAtomic: money.ToDB(commission),
		Status:       models.LedgerStatusCompleted,
		RefType:      "deposit",
		RefID:        deposit.ID,
		Meta: models.JSONB{
			"level":          level,
			"source_user_id": deposit.UserID,
			"txHash":         deposit.TxHash,
		},
	})
}

// triggerSponsorRankCheck 入金达到最低门槛时顺带检查推荐人段位
func (s *DepositService) triggerSponsorRankCheck(ctx context.Context, depositor *models.User, amount *big.Int) {
	if s.rank == nil || depositor.SponsorID == nil {
		return
	}

	rc, ok := s.cfg.RankByLevel(1)
	if !ok {
		return
	}
	minDeposit, err := money.Parse(rc.MinDeposit)
	if err != nil || amount.Cmp(minDeposit) < 0 {
		return
	}

	if _, err := s.rank.CheckAndUpgrade(ctx, *depositor.SponsorID); err != nil {
		logger.Error("入金后段位检查失败:", err)
	}
}
