package models

import (
	"time"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "PENDING"
	WithdrawalStatusProcessing WithdrawalStatus = "PROCESSING"
	WithdrawalStatusSuccess    WithdrawalStatus = "SUCCESS"
	WithdrawalStatusFailed     WithdrawalStatus = "FAILED"
)

// Withdrawal 结算期间行锁保护，防止重复打款
type Withdrawal struct {
	ID             uint64           `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID      string           `gorm:"size:36;not null;uniqueIndex:uk_request" json:"request_id"`
	UserID         uint64           `gorm:"not null;index" json:"user_id"`
	Token          string           `gorm:"size:10;not null" json:"token"`
	AmountAtomic   string           `gorm:"type:varchar(78);not null" json:"amount_atomic"`
	ToAddress      string           `gorm:"size:42;not null" json:"to_address"`
	DepositAddress string           `gorm:"size:42;not null" json:"deposit_address"`
	Status         WithdrawalStatus `gorm:"size:20;not null;index" json:"status"`
	TxHash         string           `gorm:"size:66" json:"tx_hash,omitempty"`
	Error          string           `gorm:"type:text" json:"error,omitempty"`
	ProcessedAt    *time.Time       `json:"processed_at"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}

type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusDead    JobStatus = "dead"
)

// WithdrawalJob 与账本同库的持久化任务队列
type WithdrawalJob struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawalID uint64    `gorm:"not null;index" json:"withdrawal_id"`
	Status       JobStatus `gorm:"size:10;not null;index" json:"status"`
	Attempts     int       `gorm:"not null;default:0" json:"attempts"`
	LastError    string    `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WithdrawalJob) TableName() string {
	return "withdrawal_jobs"
}
