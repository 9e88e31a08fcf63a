package models

import (
	"time"
)

// Balance 每个用户一行的余额汇总，是账本条目的缓存视图
// claimable_atomic 恒等于已完成的贷方条目之和减去借方条目之和
type Balance struct {
	ID                          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID                      uint64    `gorm:"not null;uniqueIndex:uk_user" json:"user_id"`
	WalletAddress               string    `gorm:"size:42;not null;index" json:"wallet_address"`
	ClaimableAtomic             string    `gorm:"type:varchar(78);not null;default:0" json:"claimable_atomic"`
	LockedAtomic                string    `gorm:"type:varchar(78);not null;default:0" json:"locked_atomic"`
	TotalDepositedAtomic        string    `gorm:"type:varchar(78);not null;default:0" json:"total_deposited_atomic"`
	TotalRoiEarnedAtomic        string    `gorm:"type:varchar(78);not null;default:0" json:"total_roi_earned_atomic"`
	TotalCommissionEarnedAtomic string    `gorm:"type:varchar(78);not null;default:0" json:"total_commission_earned_atomic"`
	UpdatedAt                   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Balance) TableName() string {
	return "user_balances"
}
