package models

import (
	"time"
)

type UserStatus string

const (
	UserStatusActive  UserStatus = "ACTIVE"
	UserStatusBlocked UserStatus = "BLOCKED"
)

const MaxRank = 7

type User struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletAddress string     `gorm:"size:42;not null;uniqueIndex:uk_wallet" json:"wallet_address"`
	SponsorID     *uint64    `gorm:"index" json:"sponsor_id"`
	CurrentRank   int        `gorm:"not null;default:0" json:"current_rank"`
	Status        UserStatus `gorm:"size:20;not null;default:'ACTIVE'" json:"status"`
	// 提现地址白名单覆盖，仅管理员MFA路径可写
	WithdrawalAddressOverride string    `gorm:"size:42" json:"-"`
	RankUpdatedAt             *time.Time `json:"rank_updated_at"`
	CreatedAt                 time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                 time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// WithdrawalAddress 允许的提现目标地址：默认为入金地址，管理员覆盖优先
func (u *User) WithdrawalAddress() string {
	if u.WithdrawalAddressOverride != "" {
		return u.WithdrawalAddressOverride
	}
	return u.WalletAddress
}
