package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	AudienceTeacher = "teacher"
	AudienceSchool  = "school"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionTrialing  SubscriptionStatus = "trialing"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type BillingPeriod string

const (
	BillingMonthly BillingPeriod = "monthly"
	BillingAnnual  BillingPeriod = "annual"
)

// Subscription is the recurring plan record kept by the subscription service.
// The aggregator only reads it.
type Subscription struct {
	ID                snowflake.ID       `gorm:"primaryKey" json:"id"`
	AccountID         snowflake.ID       `gorm:"column:account_id;not null;index" json:"account_id"`
	SchoolID          *snowflake.ID      `gorm:"column:school_id" json:"school_id,omitempty"`
	Audience          string             `gorm:"type:text;not null" json:"audience"`
	Status            SubscriptionStatus `gorm:"type:text;not null;index" json:"status"`
	BillingPeriod     BillingPeriod      `gorm:"column:billing_period;type:text;not null" json:"billing_period"`
	PriceAmount       int64              `gorm:"column:price_amount;not null" json:"price_amount"`
	Currency          string             `gorm:"type:char(3);not null" json:"currency"`
	CancelAtPeriodEnd bool               `gorm:"column:cancel_at_period_end;not null;default:false" json:"cancel_at_period_end"`
	StartedAt         time.Time          `gorm:"column:started_at;not null" json:"started_at"`
	CancelledAt       *time.Time         `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt         time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time          `gorm:"not null" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }
