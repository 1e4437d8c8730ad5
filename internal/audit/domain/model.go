package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem    ActorType = "system"
	ActorTypeAdmin     ActorType = "admin"
	ActorTypeScheduler ActorType = "scheduler"
)

const (
	ActionSettlementCreated       = "settlement.created"
	ActionSettlementStatusChanged = "settlement.status_changed"
	ActionSellerTierChanged       = "seller_tier.changed"
	ActionInvoiceGenerated        = "invoice.generated"
	ActionRateConfigUpdated       = "rate_config.updated"
)

const (
	TargetSettlement = "settlement"
	TargetSeller     = "seller"
	TargetInvoice    = "invoice"
	TargetRateConfig = "rate_config"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"column:actor_type;type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"column:actor_id;type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"column:target_type;type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"column:target_id;type:text;index" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	RequestID  *string           `gorm:"column:request_id;type:text" json:"request_id,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
	Offset     int
	Limit      int
}
