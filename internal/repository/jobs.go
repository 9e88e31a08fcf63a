package repository

import (
	"context"
	"errors"

	"github.com/CryptoMichaael/Nexus/internal/models"

	"gorm.io/gorm"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) WithTx(tx *gorm.DB) *JobRepository {
	return &JobRepository{db: tx}
}

func (r *JobRepository) Enqueue(ctx context.Context, withdrawalID uint64) error {
	return r.db.WithContext(ctx).Create(&models.WithdrawalJob{
		WithdrawalID: withdrawalID,
		Status:       models.JobStatusQueued,
	}).Error
}

// ClaimNext 行锁认领最早的排队任务并标记运行中
// 多 worker 并发时锁保证同一任务只被认领一次；无任务返回 nil
func (r *JobRepository) ClaimNext(ctx context.Context) (*models.WithdrawalJob, error) {
	var job models.WithdrawalJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := forUpdate(tx).
			Where("status = ?", models.JobStatusQueued).
			Order("id ASC").
			First(&job).Error
		if err != nil {
			return err
		}
		job.Status = models.JobStatusRunning
		job.Attempts++
		return tx.Save(&job).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) MarkDone(ctx context.Context, jobID uint64) error {
	return r.db.WithContext(ctx).
		Model(&models.WithdrawalJob{}).
		Where("id = ?", jobID).
		Update("status", models.JobStatusDone).Error
}

// Release 失败回队或达到次数上限后标记死亡
func (r *JobRepository) Release(ctx context.Context, job *models.WithdrawalJob, jobErr error, maxAttempts int) error {
	status := models.JobStatusQueued
	if job.Attempts >= maxAttempts {
		status = models.JobStatusDead
	}
	return r.db.WithContext(ctx).
		Model(&models.WithdrawalJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": jobErr.Error(),
		}).Error
}

func (r *JobRepository) CountByStatus(ctx context.Context, status models.JobStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WithdrawalJob{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}
