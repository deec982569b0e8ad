package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem ActorType = "system"
	ActorTypeAdmin  ActorType = "admin"
	ActorTypeUser   ActorType = "user"
)

// AuditLog records who changed what in the catalog or on an account.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"column:actor_type;type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"column:actor_id;type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"column:action;type:text;not null" json:"action"`
	TargetType string            `gorm:"column:target_type;type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"column:target_id;type:text" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"column:ip_address;type:text" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"column:user_agent;type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
