package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type LedgerType string

const (
	LedgerTypeDeposit     LedgerType = "DEPOSIT"
	LedgerTypeLevelReward LedgerType = "LEVEL_REWARD"
	LedgerTypeYield       LedgerType = "YIELD"
	LedgerTypeWeeklyRank  LedgerType = "WEEKLY_RANK"
	LedgerTypeWithdrawal  LedgerType = "WITHDRAWAL"
	LedgerTypeAdjustment  LedgerType = "ADJUSTMENT"
)

type LedgerStatus string

const (
	LedgerStatusPending   LedgerStatus = "PENDING"
	LedgerStatusCompleted LedgerStatus = "COMPLETED"
	LedgerStatusFailed    LedgerStatus = "FAILED"
)

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return errors.New("unsupported type for JSONB scan")
	}
}

// LedgerEntry 只追加的审计账本，单条经济效果一条记录
// 除 PENDING→COMPLETED|FAILED 状态迁移外不可变更
type LedgerEntry struct {
	ID           uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint64       `gorm:"not null;index:idx_user_type" json:"user_id"`
	Type         LedgerType   `gorm:"size:20;not null;index:idx_user_type" json:"type"`
	Token        string       `gorm:"size:10;not null" json:"token"`
	AmountAtomic string       `gorm:"type:varchar(78);not null" json:"amount_atomic"`
	Status       LedgerStatus `gorm:"size:20;not null;index" json:"status"`
	RefType      string       `gorm:"size:30;not null;index:idx_ref,priority:1" json:"ref_type"`
	RefID        uint64       `gorm:"not null;index:idx_ref,priority:2" json:"ref_id"`
	Meta         JSONB        `gorm:"type:json" json:"meta"`
	CreatedAt    time.Time    `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger"
}
