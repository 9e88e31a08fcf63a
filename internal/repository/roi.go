package repository

import (
	"context"
	"errors"

	"github.com/CryptoMichaael/Nexus/internal/models"

	"gorm.io/gorm"
)

type RoiRepository struct {
	db *gorm.DB
}

func NewRoiRepository(db *gorm.DB) *RoiRepository {
	return &RoiRepository{db: db}
}

func (r *RoiRepository) WithTx(tx *gorm.DB) *RoiRepository {
	return &RoiRepository{db: tx}
}

func (r *RoiRepository) Create(ctx context.Context, record *models.RoiLedger) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *RoiRepository) GetByDeposit(ctx context.Context, depositID uint64) (*models.RoiLedger, error) {
	var record models.RoiLedger
	err := r.db.WithContext(ctx).
		Where("deposit_id = ?", depositID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &record, err
}

func (r *RoiRepository) GetByUser(ctx context.Context, userID uint64) ([]models.RoiLedger, error) {
	var records []models.RoiLedger
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

// GetActivePaginated 分批拉取活跃收益记录，日批处理用
func (r *RoiRepository) GetActivePaginated(ctx context.Context, offset, limit int) ([]models.RoiLedger, error) {
	var records []models.RoiLedger
	err := r.db.WithContext(ctx).
		Where("status = ?", models.RoiStatusActive).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	return records, err
}

// GetForUpdate 行锁读取单条收益记录，必须在事务内调用
func (r *RoiRepository) GetForUpdate(ctx context.Context, id uint64) (*models.RoiLedger, error) {
	var record models.RoiLedger
	err := forUpdate(r.db.WithContext(ctx)).
		First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &record, err
}

// GetActiveByUserForUpdate 行锁读取用户全部活跃记录，升段追溯调整用
func (r *RoiRepository) GetActiveByUserForUpdate(ctx context.Context, userID uint64) ([]models.RoiLedger, error) {
	var records []models.RoiLedger
	err := forUpdate(r.db.WithContext(ctx)).
		Where("user_id = ? AND status = ?", userID, models.RoiStatusActive).
		Find(&records).Error
	return records, err
}

func (r *RoiRepository) Save(ctx context.Context, record *models.RoiLedger) error {
	return r.db.WithContext(ctx).Save(record).Error
}
