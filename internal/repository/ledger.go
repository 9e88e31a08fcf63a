package repository

import (
	"context"
	"math/big"

	"github.com/CryptoMichaael/Nexus/internal/models"
	"github.com/CryptoMichaael/Nexus/internal/money"

	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) WithTx(tx *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: tx}
}

func (r *LedgerRepository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// UpdateStatusByRef 按来源实体迁移条目状态，账本条目仅允许该变更
func (r *LedgerRepository) UpdateStatusByRef(ctx context.Context, refType string, refID uint64, status models.LedgerStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("ref_type = ? AND ref_id = ?", refType, refID).
		Update("status", status).Error
}

func (r *LedgerRepository) GetByUser(ctx context.Context, userID uint64, limit int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&entries).Error
	return entries, err
}

func (r *LedgerRepository) GetByRef(ctx context.Context, refType string, refID uint64) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("ref_type = ? AND ref_id = ?", refType, refID).
		Find(&entries).Error
	return entries, err
}

func (r *LedgerRepository) List(ctx context.Context, entryType, status string, offset, limit int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	query := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if entryType != "" {
		query = query.Where("type = ?", entryType)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Offset(offset).Limit(limit).Find(&entries).Error
	return entries, err
}

func (r *LedgerRepository) CountByUser(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// RecomputeClaimable 按账本重算可领余额：已完成贷方之和减借方之和
// 一致性校验用，金额在应用侧以大整数累加
func (r *LedgerRepository) RecomputeClaimable(ctx context.Context, userID uint64) (*big.Int, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Select("amount_atomic").
		Where("user_id = ? AND status = ?", userID, models.LedgerStatusCompleted).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	total := big.NewInt(0)
	for _, e := range entries {
		total.Add(total, money.FromDB(e.AmountAtomic))
	}
	return total, nil
}
