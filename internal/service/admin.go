package service

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/CryptoMichaael/Nexus/internal/config"
	"github.com/CryptoMichaael/Nexus/internal/models"
	"github.com/CryptoMichaael/Nexus/internal/money"
	"github.com/CryptoMichaael/Nexus/internal/repository"
	"github.com/CryptoMichaael/Nexus/pkg/errors"
	"github.com/CryptoMichaael/Nexus/pkg/logger"

	"gorm.io/gorm"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

type AdminService struct {
	db       *gorm.DB
	users    *repository.UserRepository
	balances *repository.BalanceRepository
	ledger   *repository.LedgerRepository
	audit    *repository.AuditRepository
	cfg      *config.Config
}

func NewAdminService(
	db *gorm.DB,
	users *repository.UserRepository,
	balances *repository.BalanceRepository,
	ledger *repository.LedgerRepository,
	audit *repository.AuditRepository,
	cfg *config.Config,
) *AdminService {
	return &AdminService{
		db:       db,
		users:    users,
		balances: balances,
		ledger:   ledger,
		audit:    audit,
		cfg:      cfg,
	}
}

// Adjust 管理员手工调账，正负皆可，余额不允许调成负数
// 调账必须带原因，账本与审计日志各落一条
func (s *AdminService) Adjust(ctx context.Context, userID uint64, token, amountStr, reason string, actor *AuditActor) (*models.LedgerEntry, error) {
	if reason == "" {
		return nil, errors.New(errors.ErrInvalidInput, "调账必须填写原因", nil)
	}
	if !s.cfg.IsTokenSupported(token) {
		return nil, errors.New(errors.ErrInvalidInput, fmt.Sprintf("不支持的代币: %s", token), nil)
	}

	negative := strings.HasPrefix(amountStr, "-")
	magnitude, err := money.Parse(strings.TrimPrefix(amountStr, "-"))
	if err != nil {
		return nil, errors.New(errors.ErrInvalidInput, "金额格式非法", err)
	}
	if magnitude.Sign() == 0 {
		return nil, errors.New(errors.ErrInvalidInput, "调账金额不能为零", nil)
	}
	delta := new(big.Int).Set(magnitude)
	if negative {
		delta.Neg(delta)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.New(errors.ErrLedger, "查询用户失败", err)
	}
	if user == nil {
		return nil, errors.New(errors.ErrInvalidInput, "用户不存在", nil)
	}

	entry := &models.LedgerEntry{
		UserID:       userID,
		Type:         models.LedgerTypeAdjustment,
		Token:        token,
		AmountAtomic: money.ToDB(delta),
		Status:       models.LedgerStatusCompleted,
		RefType:      "admin_adjustment",
		RefID:        userID,
		Meta:         models.JSONB{"reason": reason, "actor": actor.ID},
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := s.balances.WithTx(tx).GetForUpdate(ctx, userID, user.WalletAddress)
		if err != nil {
			return err
		}

		claimable, err := money.Add(money.FromDB(balance.ClaimableAtomic), delta)
		if err != nil {
			return err
		}
		if claimable.Sign() < 0 {
			return errors.New(errors.ErrInvalidInput, "调账后余额为负", nil)
		}
		balance.ClaimableAtomic = money.ToDB(claimable)
		if err := s.balances.WithTx(tx).Save(ctx, balance); err != nil {
			return err
		}

		if err := s.ledger.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}

		return s.audit.WithTx(tx).Create(ctx, &models.AuditLog{
			ActorID:   actor.ID,
			EventType: "BALANCE_ADJUSTMENT",
			IPAddress: actor.IP,
			UserAgent: actor.UserAgent,
			Details: models.JSONB{
				"user_id": userID,
				"amount":  money.ToDB(delta),
				"reason":  reason,
			},
		})
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.New(errors.ErrLedger, "调账落库失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"actor":   actor.ID,
		"user_id": userID,
		"amount":  money.Format(delta),
		"reason":  reason,
	}).Warn("管理员手工调账")

	return entry, nil
}

// SetWithdrawalAddress 设置提现地址覆盖（默认提现只能回入金地址）
func (s *AdminService) SetWithdrawalAddress(ctx context.Context, userID uint64, address string, actor *AuditActor) error {
	if !addressPattern.MatchString(address) {
		return errors.New(errors.ErrInvalidInput, "地址格式非法", nil)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return errors.New(errors.ErrLedger, "查询用户失败", err)
	}
	if user == nil {
		return errors.New(errors.ErrInvalidInput, "用户不存在", nil)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.users.WithTx(tx).SetWithdrawalOverride(ctx, userID, strings.ToLower(address)); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Create(ctx, &models.AuditLog{
			ActorID:   actor.ID,
			EventType: "WITHDRAWAL_ADDRESS_OVERRIDE",
			IPAddress: actor.IP,
			UserAgent: actor.UserAgent,
			Details: models.JSONB{
				"user_id":     userID,
				"new_address": strings.ToLower(address),
				"old_address": user.WithdrawalAddressOverride,
			},
		})
	})
	if err != nil {
		return errors.New(errors.ErrLedger, "设置提现地址失败", err)
	}

	logger.WithFields(map[string]interface{}{
		"actor":   actor.ID,
		"user_id": userID,
		"address": strings.ToLower(address),
	}).Warn("管理员设置提现地址覆盖")

	return nil
}

// SetSponsor 绑定推荐关系，存储层做成环检查
func (s *AdminService) SetSponsor(ctx context.Context, userID, sponsorID uint64, actor *AuditActor) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.users.WithTx(tx).SetSponsor(ctx, userID, sponsorID); err != nil {
			return err
		}
		return s.audit.WithTx(tx).Create(ctx, &models.AuditLog{
			ActorID:   actor.ID,
			EventType: "SPONSOR_BIND",
			IPAddress: actor.IP,
			UserAgent: actor.UserAgent,
			Details: models.JSONB{
				"user_id":    userID,
				"sponsor_id": sponsorID,
			},
		})
	})
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return appErr
		}
		return errors.New(errors.ErrInvalidInput, "绑定推荐关系失败", err)
	}
	return nil
}
