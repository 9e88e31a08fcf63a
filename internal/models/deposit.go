package models

import (
	"time"
)

type DepositStatus string

const (
	DepositStatusProcessing DepositStatus = "PROCESSING"
	DepositStatusSuccess    DepositStatus = "SUCCESS"
	DepositStatusFailed     DepositStatus = "FAILED"
)

// Deposit 每个链上交易哈希一条记录，tx_hash 唯一约束即幂等键
type Deposit struct {
	ID           uint64        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint64        `gorm:"not null;index" json:"user_id"`
	TxHash       string        `gorm:"size:66;not null;uniqueIndex:uk_tx_hash" json:"tx_hash"`
	Token        string        `gorm:"size:10;not null" json:"token"`
	AmountAtomic string        `gorm:"type:varchar(78);not null" json:"amount_atomic"`
	FromAddress  string        `gorm:"size:42" json:"from_address"`
	ToAddress    string        `gorm:"size:42" json:"to_address"`
	Status       DepositStatus `gorm:"size:20;not null;index" json:"status"`
	Error        string        `gorm:"type:text" json:"error,omitempty"`
	DepositedAt  time.Time     `gorm:"not null" json:"deposited_at"`
	ProcessedAt  *time.Time    `json:"processed_at"`
	CreatedAt    time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

func (Deposit) TableName() string {
	return "deposits"
}
