package models

import (
	"time"
)

type PoolStatus string

const (
	PoolStatusCalculated  PoolStatus = "calculated"
	PoolStatusDistributed PoolStatus = "distributed"
)

// WeeklyPool 每个ISO周（周一为起点，UTC）至多计算一次
// week_start_date 唯一约束保证重复触发为空操作
type WeeklyPool struct {
	ID                  uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WeekStartDate       string     `gorm:"size:10;not null;uniqueIndex:uk_week_start" json:"week_start_date"`
	WeekEndDate         string     `gorm:"size:10;not null" json:"week_end_date"`
	TotalDepositsAtomic string     `gorm:"type:varchar(78);not null" json:"total_deposits_atomic"`
	PoolSizeAtomic      string     `gorm:"type:varchar(78);not null" json:"pool_size_atomic"`
	Distribution        JSONB      `gorm:"type:json" json:"distribution"`
	Status              PoolStatus `gorm:"size:15;not null" json:"status"`
	CalculatedAt        time.Time  `gorm:"not null" json:"calculated_at"`
	DistributedAt       *time.Time `json:"distributed_at"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (WeeklyPool) TableName() string {
	return "weekly_rank_pools"
}

type RewardStatus string

const (
	RewardStatusPending  RewardStatus = "pending"
	RewardStatusCredited RewardStatus = "credited"
)

// WeeklyReward 每个（池，持有人）一行，可独立重试入账
// 两阶段设计：计算与入账分离，崩溃后续跑无需重算分配
type WeeklyReward struct {
	ID               uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	PoolID           uint64       `gorm:"not null;index:idx_pool_status" json:"pool_id"`
	UserID           uint64       `gorm:"not null;index" json:"user_id"`
	WalletAddress    string       `gorm:"size:42;not null" json:"wallet_address"`
	RankLevel        int          `gorm:"not null" json:"rank_level"`
	RankName         string       `gorm:"size:10;not null" json:"rank_name"`
	TotalRankHolders int          `gorm:"not null" json:"total_rank_holders"`
	ShareAtomic      string       `gorm:"type:varchar(78);not null" json:"share_atomic"`
	Status           RewardStatus `gorm:"size:10;not null;index:idx_pool_status" json:"status"`
	LedgerID         *uint64      `json:"ledger_id"`
	CreditedAt       *time.Time   `json:"credited_at"`
	CreatedAt        time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

func (WeeklyReward) TableName() string {
	return "weekly_rank_rewards"
}
