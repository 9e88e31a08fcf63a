package models

import (
	"time"
)

type RoiStatus string

const (
	RoiStatusActive RoiStatus = "active"
	RoiStatusCapped RoiStatus = "capped"
)

// RoiLedger 每笔入金一条收益记录
// max_roi_atomic 随用户段位浮动，升段时被追溯上调
type RoiLedger struct {
	ID                   uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	DepositID            uint64    `gorm:"not null;uniqueIndex:uk_deposit" json:"deposit_id"`
	UserID               uint64    `gorm:"not null;index" json:"user_id"`
	WalletAddress        string    `gorm:"size:42;not null;index" json:"wallet_address"`
	PrincipalAtomic      string    `gorm:"type:varchar(78);not null" json:"principal_atomic"`
	AccumulatedRoiAtomic string    `gorm:"type:varchar(78);not null;default:0" json:"accumulated_roi_atomic"`
	MaxRoiAtomic         string    `gorm:"type:varchar(78);not null" json:"max_roi_atomic"`
	DailyRateBps         int64     `gorm:"not null" json:"daily_rate_bps"`
	Status               RoiStatus `gorm:"size:10;not null;index" json:"status"`
	StartDate            string    `gorm:"size:10;not null" json:"start_date"`
	// 按日历日去重的幂等键，格式 2006-01-02
	LastCalculatedDate string    `gorm:"size:10" json:"last_calculated_date"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RoiLedger) TableName() string {
	return "roi_ledger"
}
