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

const accrualBatchSize = 500

type RoiService struct {
	db       *gorm.DB
	roi      *repository.RoiRepository
	balances *repository.BalanceRepository
	ledger   *repository.LedgerRepository
	cfg      *config.Config
}

func NewRoiService(
	db *gorm.DB,
	roi *repository.RoiRepository,
	balances *repository.BalanceRepository,
	ledger *repository.LedgerRepository,
	cfg *config.Config,
) *RoiService {
	return &RoiService{
		db:       db,
		roi:      roi,
		balances: balances,
		ledger:   ledger,
		cfg:      cfg,
	}
}

type AccrualSummary struct {
	Processed     int
	Capped        int
	TotalCredited *big.Int
}

// AccrueDaily 对全部活跃收益记录计提当日收益
// 按 last_calculated_date 做单日幂等，同日重跑不会重复计提；
// 每条记录独立成事务，中断后续跑从断点恢复
func (s *RoiService) AccrueDaily(ctx context.Context, day time.Time) (*AccrualSummary, error) {
	dayStr := day.UTC().Format("2006-01-02")
	summary := &AccrualSummary{TotalCredited: big.NewInt(0)}

	logger.WithFields(map[string]interface{}{
		"day": dayStr,
	}).Info("开始日收益计提")

	// 先收集活跃记录ID快照，逐条处理避免翻页期间状态漂移
	var ids []uint64
	for offset := 0; ; offset += accrualBatchSize {
		records, err := s.roi.GetActivePaginated(ctx, offset, accrualBatchSize)
		if err != nil {
			return nil, errors.New(errors.ErrRoiCalc, "拉取活跃收益记录失败", err)
		}
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		if len(records) < accrualBatchSize {
			break
		}
	}

	for _, id := range ids {
		credited, capped, err := s.accrueRecord(ctx, id, dayStr)
		if err != nil {
			logger.Error("收益计提失败, record:", id, err)
			continue
		}
		if capped {
			summary.Capped++
		}
		if credited != nil && credited.Sign() > 0 {
			summary.Processed++
			summary.TotalCredited.Add(summary.TotalCredited, credited)
		}
	}

	logger.WithFields(map[string]interface{}{
		"day":            dayStr,
		"processed":      summary.Processed,
		"capped":         summary.Capped,
		"total_credited": money.Format(summary.TotalCredited),
	}).Info("日收益计提完成")

	return summary, nil
}

// accrueRecord 单条记录的一次日计提，整体原子提交
func (s *RoiService) accrueRecord(ctx context.Context, recordID uint64, dayStr string) (*big.Int, bool, error) {
	var credited *big.Int
	var capped bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.roi.WithTx(tx).GetForUpdate(ctx, recordID)
		if err != nil {
			return err
		}
		if record == nil || record.Status != models.RoiStatusActive {
			return nil
		}
		// 2006-01-02 字符串按字典序即按日期序，回放历史日期同样视为已计提
		if record.LastCalculatedDate >= dayStr {
			return nil
		}

		principal := money.FromDB(record.PrincipalAtomic)
		accumulated := money.FromDB(record.AccumulatedRoiAtomic)
		max := money.FromDB(record.MaxRoiAtomic)

		remaining, err := money.Sub(max, accumulated)
		if err != nil || remaining.Sign() <= 0 {
			record.Status = models.RoiStatusCapped
			capped = true
			return s.roi.WithTx(tx).Save(ctx, record)
		}

		delta := money.ApplyBps(principal, record.DailyRateBps)
		if delta.Cmp(remaining) > 0 {
			delta = remaining
		}
		if delta.Sign() <= 0 {
			record.LastCalculatedDate = dayStr
			return s.roi.WithTx(tx).Save(ctx, record)
		}

		newAccumulated, err := money.Add(accumulated, delta)
		if err != nil {
			return err
		}
		record.AccumulatedRoiAtomic = money.ToDB(newAccumulated)
		record.LastCalculatedDate = dayStr
		if newAccumulated.Cmp(max) >= 0 {
			record.Status = models.RoiStatusCapped
			capped = true
		}
		if err := s.roi.WithTx(tx).Save(ctx, record); err != nil {
			return err
		}

		balance, err := s.balances.WithTx(tx).GetForUpdate(ctx, record.UserID, record.WalletAddress)
		if err != nil {
			return err
		}
		claimable, err := money.Add(money.FromDB(balance.ClaimableAtomic), delta)
		if err != nil {
			return err
		}
		roiEarned, err := money.Add(money.FromDB(balance.TotalRoiEarnedAtomic), delta)
		if err != nil {
			return err
		}
		balance.ClaimableAtomic = money.ToDB(claimable)
		balance.TotalRoiEarnedAtomic = money.ToDB(roiEarned)
		if err := s.balances.WithTx(tx).Save(ctx, balance); err != nil {
			return err
		}

		if err := s.ledger.WithTx(tx).Create(ctx, &models.LedgerEntry{
			UserID:       record.UserID,
			Type:         models.LedgerTypeYield,
			Token:        "USDT",
			AmountAtomic: money.ToDB(delta),
			Status:       models.LedgerStatusCompleted,
			RefType:      "roi_ledger",
			RefID:        record.ID,
			Meta:         models.JSONB{"day": dayStr, "deposit_id": record.DepositID},
		}); err != nil {
			return err
		}

		credited = delta
		return nil
	})

	return credited, capped, err
}

// GetUserRoiStatus 用户收益面板数据
func (s *RoiService) GetUserRoiStatus(ctx context.Context, userID uint64) ([]models.RoiLedger, error) {
	return s.roi.GetByUser(ctx, userID)
}
