package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/CryptoMichaael/Nexus/internal/config"
	"github.com/CryptoMichaael/Nexus/internal/models"
	"github.com/CryptoMichaael/Nexus/internal/money"
	"github.com/CryptoMichaael/Nexus/internal/repository"
	"github.com/CryptoMichaael/Nexus/pkg/errors"
	"github.com/CryptoMichaael/Nexus/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChainTransferer 向链上发送转账，返回交易哈希
// 调用方保证同一提现至多调用一次已提交的转账
type ChainTransferer interface {
	Transfer(ctx context.Context, to string, amount *big.Int) (string, error)
}

type WithdrawalService struct {
	db          *gorm.DB
	users       *repository.UserRepository
	balances    *repository.BalanceRepository
	withdrawals *repository.WithdrawalRepository
	jobs        *repository.JobRepository
	ledger      *repository.LedgerRepository
	chain       ChainTransferer
	cfg         *config.Config
}

func NewWithdrawalService(
	db *gorm.DB,
	users *repository.UserRepository,
	balances *repository.BalanceRepository,
	withdrawals *repository.WithdrawalRepository,
	jobs *repository.JobRepository,
	ledger *repository.LedgerRepository,
	chain ChainTransferer,
	cfg *config.Config,
) *WithdrawalService {
	return &WithdrawalService{
		db:          db,
		users:       users,
		balances:    balances,
		withdrawals: withdrawals,
		jobs:        jobs,
		ledger:      ledger,
		chain:       chain,
		cfg:         cfg,
	}
}

// Request 受理提现申请：校验目标地址、预留余额、入队结算任务
// 可提余额划转到锁定余额，账本记 PENDING 负项，全程单事务。
// 目标地址必须等于用户的提现地址（入金地址或管理员覆盖地址）
func (s *WithdrawalService) Request(ctx context.Context, userID uint64, token, amountStr, toAddress string) (*models.Withdrawal, error) {
	if !s.cfg.IsTokenSupported(token) {
		return nil, errors.New(errors.ErrInvalidInput, fmt.Sprintf("不支持的代币: %s", token), nil)
	}

	amount, err := money.Parse(amountStr)
	if err != nil {
		return nil, errors.New(errors.ErrInvalidInput, "金额格式非法", err)
	}
	if amount.Sign() <= 0 {
		return nil, errors.New(errors.ErrInvalidInput, "金额必须大于零", nil)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.New(errors.ErrWithdrawal, "查询用户失败", err)
	}
	if user == nil {
		return nil, errors.New(errors.ErrInvalidInput, "用户不存在", nil)
	}

	allowed := user.WithdrawalAddress()
	if allowed == "" || !strings.EqualFold(toAddress, allowed) {
		return nil, errors.New(errors.ErrInvalidInput, "提现地址与绑定地址不一致", nil)
	}

	withdrawal := &models.Withdrawal{
		RequestID:      uuid.NewString(),
		UserID:         userID,
		Token:          token,
		AmountAtomic:   money.ToDB(amount),
		ToAddress:      strings.ToLower(toAddress),
		DepositAddress: user.WalletAddress,
		Status:         models.WithdrawalStatusPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := s.balances.WithTx(tx).GetForUpdate(ctx, userID, user.WalletAddress)
		if err != nil {
			return err
		}

		claimable := money.FromDB(balance.ClaimableAtomic)
		if claimable.Cmp(amount) < 0 {
			return errors.New(errors.ErrInvalidInput, "可提余额不足", nil)
		}

		remaining, err := money.Sub(claimable, amount)
		if err != nil {
			return err
		}
		locked, err := money.Add(money.FromDB(balance.LockedAtomic), amount)
		if err != nil {
			return err
		}
		balance.ClaimableAtomic = money.ToDB(remaining)
		balance.LockedAtomic = money.ToDB(locked)
		if err := s.balances.WithTx(tx).Save(ctx, balance); err != nil {
			return err
		}

		if err := s.withdrawals.WithTx(tx).Create(ctx, withdrawal); err != nil {
			return err
		}

		if err := s.ledger.WithTx(tx).Create(ctx, &models.LedgerEntry{
			UserID:       userID,
			Type:         models.LedgerTypeWithdrawal,
			Token:        token,
			AmountAtomic: money.ToDB(new(big.Int).Neg(amount)),
			Status:       models.LedgerStatusPending,
			RefType:      "withdrawal",
			RefID:        withdrawal.ID,
			Meta:         models.JSONB{"request_id": withdrawal.RequestID, "to": withdrawal.ToAddress},
		}); err != nil {
			return err
		}

		return s.jobs.WithTx(tx).Enqueue(ctx, withdrawal.ID)
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.New(errors.ErrWithdrawal, "提现申请落库失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"request_id": withdrawal.RequestID,
		"user_id":    userID,
		"amount":     money.Format(amount),
		"to":         withdrawal.ToAddress,
	}).Info("提现申请已受理")

	return withdrawal, nil
}

// Settle 两阶段结算：先在事务内抢占状态，再在事务外发链上交易
// 阶段一行锁下 PENDING→PROCESSING，并发结算只有一个赢家；
// 阶段二链上调用慢，放在事务外避免长事务压住余额行
func (s *WithdrawalService) Settle(ctx context.Context, withdrawalID uint64) error {
	var w *models.Withdrawal

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		w, err = s.withdrawals.WithTx(tx).GetForUpdate(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if w == nil || w.Status != models.WithdrawalStatusPending {
			w = nil
			return nil
		}
		return s.withdrawals.WithTx(tx).UpdateStatus(ctx, withdrawalID, models.WithdrawalStatusProcessing)
	})
	if err != nil {
		return errors.New(errors.ErrWithdrawal, "提现抢占失败", err)
	}
	if w == nil {
		return nil
	}

	amount := money.FromDB(w.AmountAtomic)
	txHash, sendErr := s.chain.Transfer(ctx, w.ToAddress, amount)
	if sendErr != nil {
		return s.settleFailed(ctx, w, sendErr)
	}
	return s.settleSuccess(ctx, w, amount, txHash)
}

// settleSuccess 打款成功：释放锁定余额，账本落 COMPLETED
func (s *WithdrawalService) settleSuccess(ctx context.Context, w *models.Withdrawal, amount *big.Int, txHash string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := s.balances.WithTx(tx).GetForUpdate(ctx, w.UserID, w.DepositAddress)
		if err != nil {
			return err
		}
		locked, err := money.Sub(money.FromDB(balance.LockedAtomic), amount)
		if err != nil {
			return err
		}
		balance.LockedAtomic = money.ToDB(locked)
		if err := s.balances.WithTx(tx).Save(ctx, balance); err != nil {
			return err
		}

		if err := s.ledger.WithTx(tx).UpdateStatusByRef(ctx, "withdrawal", w.ID, models.LedgerStatusCompleted); err != nil {
			return err
		}
		return s.withdrawals.WithTx(tx).MarkSuccess(ctx, w.ID, txHash)
	})
	if err != nil {
		// 链上已打款但落库失败，必须人工核对，不能重试打款
		logger.WithFields(map[string]interface{}{
			"withdrawal_id": w.ID,
			"tx_hash":       txHash,
		}).Error("提现已上链但状态落库失败，需人工处理:", err)
		return errors.New(errors.ErrWithdrawal, "提现成功状态落库失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"withdrawal_id": w.ID,
		"tx_hash":       txHash,
		"amount":        money.Format(amount),
	}).Info("提现已打款")

	return nil
}

// settleFailed 打款失败：状态落 FAILED，锁定余额不自动回退
// 资金保持锁定待人工裁决，防止链上状态不明时重复花费
func (s *WithdrawalService) settleFailed(ctx context.Context, w *models.Withdrawal, sendErr error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.WithTx(tx).UpdateStatusByRef(ctx, "withdrawal", w.ID, models.LedgerStatusFailed); err != nil {
			return err
		}
		return s.withdrawals.WithTx(tx).MarkFailed(ctx, w.ID, sendErr)
	})
	if err != nil {
		return errors.New(errors.ErrWithdrawal, "提现失败状态落库失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"withdrawal_id": w.ID,
	}).Error("提现打款失败:", sendErr)

	return errors.New(errors.ErrWithdrawal, "链上打款失败", sendErr)
}
