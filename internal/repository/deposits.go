package repository

import (
	"context"
	"errors"
	"time"

	"github.com/CryptoMichaael/Nexus/internal/models"

	"gorm.io/gorm"
)

// ErrDuplicateDeposit tx_hash 唯一约束冲突，表示该哈希已入库
var ErrDuplicateDeposit = errors.New("deposit already exists for tx hash")

type DepositRepository struct {
	db *gorm.DB
}

func NewDepositRepository(db *gorm.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

func (r *DepositRepository) WithTx(tx *gorm.DB) *DepositRepository {
	return &DepositRepository{db: tx}
}

// Create 依赖 tx_hash 唯一约束在存储层拦截重复投递
// 冲突返回 ErrDuplicateDeposit，并发场景下免疫先查后写竞争
func (r *DepositRepository) Create(ctx context.Context, deposit *models.Deposit) error {
	err := r.db.WithContext(ctx).Create(deposit).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateDeposit
	}
	return err
}

func (r *DepositRepository) GetByTxHash(ctx context.Context, txHash string) (*models.Deposit, error) {
	var deposit models.Deposit
	err := r.db.WithContext(ctx).
		Where("tx_hash = ?", txHash).
		First(&deposit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &deposit, err
}

func (r *DepositRepository) GetByID(ctx context.Context, id uint64) (*models.Deposit, error) {
	var deposit models.Deposit
	err := r.db.WithContext(ctx).First(&deposit, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &deposit, err
}

func (r *DepositRepository) MarkSuccess(ctx context.Context, id uint64) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.DepositStatusSuccess,
			"processed_at": &now,
			"error":        "",
		}).Error
}

// MarkFailed 记录失败原因供运营排查，失败的入金可重试
// 仅对处理中的行生效，避免并发重放把已成功的入金改写回失败
func (r *DepositRepository) MarkFailed(ctx context.Context, txHash string, processErr error) error {
	return r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("tx_hash = ? AND status = ?", txHash, models.DepositStatusProcessing).
		Updates(map[string]interface{}{
			"status": models.DepositStatusFailed,
			"error":  processErr.Error(),
		}).Error
}

// ResetForRetry 条件更新将失败的入金重置回处理中，返回是否抢到重试权
// 并发重放只有一路会命中，落败方按重复投递处理
func (r *DepositRepository) ResetForRetry(ctx context.Context, id uint64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("id = ? AND status = ?", id, models.DepositStatusFailed).
		Updates(map[string]interface{}{
			"status": models.DepositStatusProcessing,
			"error":  "",
		})
	return result.RowsAffected > 0, result.Error
}

func (r *DepositRepository) List(ctx context.Context, status string, offset, limit int) ([]models.Deposit, error) {
	var deposits []models.Deposit
	query := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Offset(offset).Limit(limit).Find(&deposits).Error
	return deposits, err
}
