package repository

import (
	"context"
	"errors"
	"time"

	"github.com/CryptoMichaael/Nexus/internal/models"

	"gorm.io/gorm"
)

// ErrDuplicatePool week_start_date 唯一约束冲突，本周池已计算
var ErrDuplicatePool = errors.New("weekly pool already calculated for week")

type PoolRepository struct {
	db *gorm.DB
}

func NewPoolRepository(db *gorm.DB) *PoolRepository {
	return &PoolRepository{db: db}
}

func (r *PoolRepository) WithTx(tx *gorm.DB) *PoolRepository {
	return &PoolRepository{db: tx}
}

// CreatePool 唯一约束保证每周至多一个池，重复触发即空操作
func (r *PoolRepository) CreatePool(ctx context.Context, pool *models.WeeklyPool) error {
	err := r.db.WithContext(ctx).Create(pool).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicatePool
	}
	return err
}

func (r *PoolRepository) GetByWeekStart(ctx context.Context, weekStart string) (*models.WeeklyPool, error) {
	var pool models.WeeklyPool
	err := r.db.WithContext(ctx).
		Where("week_start_date = ?", weekStart).
		First(&pool).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &pool, err
}

func (r *PoolRepository) CreateReward(ctx context.Context, reward *models.WeeklyReward) error {
	return r.db.WithContext(ctx).Create(reward).Error
}

// GetPendingRewards 待入账奖励，入账阶段可独立重试
func (r *PoolRepository) GetPendingRewards(ctx context.Context, poolID uint64) ([]models.WeeklyReward, error) {
	var rewards []models.WeeklyReward
	query := r.db.WithContext(ctx).Where("status = ?", models.RewardStatusPending)
	if poolID > 0 {
		query = query.Where("pool_id = ?", poolID)
	}
	err := query.Order("id ASC").Find(&rewards).Error
	return rewards, err
}

// MarkRewardCredited 状态迁移带条件防重复入账
func (r *PoolRepository) MarkRewardCredited(ctx context.Context, rewardID, ledgerID uint64) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.WeeklyReward{}).
		Where("id = ? AND status = ?", rewardID, models.RewardStatusPending).
		Updates(map[string]interface{}{
			"status":      models.RewardStatusCredited,
			"ledger_id":   ledgerID,
			"credited_at": &now,
		}).Error
}

func (r *PoolRepository) MarkPoolDistributed(ctx context.Context, poolID uint64) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.WeeklyPool{}).
		Where("id = ?", poolID).
		Updates(map[string]interface{}{
			"status":         models.PoolStatusDistributed,
			"distributed_at": &now,
		}).Error
}

func (r *PoolRepository) GetHistory(ctx context.Context, limit int) ([]models.WeeklyPool, error) {
	var pools []models.WeeklyPool
	if limit <= 0 {
		limit = 10
	}
	err := r.db.WithContext(ctx).
		Order("week_start_date DESC").
		Limit(limit).
		Find(&pools).Error
	return pools, err
}

func (r *PoolRepository) GetRewardsByPool(ctx context.Context, poolID uint64) ([]models.WeeklyReward, error) {
	var rewards []models.WeeklyReward
	err := r.db.WithContext(ctx).
		Where("pool_id = ?", poolID).
		Find(&rewards).Error
	return rewards, err
}
