package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/CryptoMichaael/Nexus/internal/models"

	"gorm.io/gorm"
)

type BalanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

func (r *BalanceRepository) WithTx(tx *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: tx}
}

func (r *BalanceRepository) GetByUser(ctx context.Context, userID uint64) (*models.Balance, error) {
	var balance models.Balance
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &balance, err
}

// GetForUpdate 行锁读取余额，不存在则惰性创建
// 必须在事务内调用
func (r *BalanceRepository) GetForUpdate(ctx context.Context, userID uint64, walletAddress string) (*models.Balance, error) {
	balance := &models.Balance{
		UserID:                      userID,
		WalletAddress:               strings.ToLower(walletAddress),
		ClaimableAtomic:             "0",
		LockedAtomic:                "0",
		TotalDepositedAtomic:        "0",
		TotalRoiEarnedAtomic:        "0",
		TotalCommissionEarnedAtomic: "0",
	}
	err := forUpdate(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		FirstOrCreate(balance).Error
	return balance, err
}

func (r *BalanceRepository) Save(ctx context.Context, balance *models.Balance) error {
	return r.db.WithContext(ctx).Save(balance).Error
}

// GetAll 全量余额，周池快照用
func (r *BalanceRepository) GetAll(ctx context.Context) ([]models.Balance, error) {
	var balances []models.Balance
	err := r.db.WithContext(ctx).Find(&balances).Error
	return balances, err
}

func (r *BalanceRepository) GetPaginated(ctx context.Context, offset, limit int) ([]models.Balance, error) {
	var balances []models.Balance
	err := r.db.WithContext(ctx).
		Offset(offset).
		Limit(limit).
		Find(&balances).Error
	return balances, err
}

func (r *BalanceRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Balance{}).
		Count(&count).Error
	return count, err
}
