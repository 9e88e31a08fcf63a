package models

import (
	"time"
)

// AuditLog 永久安全审计日志，管理员操作必写
type AuditLog struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorID   string    `gorm:"size:64;not null;index" json:"actor_id"`
	EventType string    `gorm:"size:50;not null;index" json:"event_type"`
	IPAddress string    `gorm:"size:45" json:"ip_address"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	Details   JSONB     `gorm:"type:json" json:"details"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "security_audit_log"
}
