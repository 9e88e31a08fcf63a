package repository

import (
	"context"
	"errors"
	"time"

	"github.com/CryptoMichaael/Nexus/internal/models"

	"gorm.io/gorm"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) WithTx(tx *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: tx}
}

func (r *WithdrawalRepository) Create(ctx context.Context, w *models.Withdrawal) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id uint64) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := r.db.WithContext(ctx).First(&w, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &w, err
}

// GetForUpdate 结算前行锁，防止队列重投递导致重复打款
// 必须在事务内调用
func (r *WithdrawalRepository) GetForUpdate(ctx context.Context, id uint64) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := forUpdate(r.db.WithContext(ctx)).
		First(&w, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &w, err
}

func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, id uint64, status models.WithdrawalStatus) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"processed_at": &now,
		}).Error
}

// MarkSuccess 记录链上交易哈希
func (r *WithdrawalRepository) MarkSuccess(ctx context.Context, id uint64, txHash string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.WithdrawalStatusSuccess,
			"tx_hash":      txHash,
			"processed_at": &now,
		}).Error
}

func (r *WithdrawalRepository) MarkFailed(ctx context.Context, id uint64, sendErr error) error {
	return r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": models.WithdrawalStatusFailed,
			"error":  sendErr.Error(),
		}).Error
}

func (r *WithdrawalRepository) GetByUser(ctx context.Context, userID uint64, limit int) ([]models.Withdrawal, error) {
	var ws []models.Withdrawal
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&ws).Error
	return ws, err
}
