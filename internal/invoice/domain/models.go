// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusIssued InvoiceStatus = "ISSUED"
	InvoiceStatusVoid   InvoiceStatus = "VOID"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

// Party is the buyer or seller as printed on the invoice.
type Party struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	IsBusiness  bool   `json:"is_business"`
	CompanyName string `json:"company_name,omitempty"`
	VATNumber   string `json:"vat_number,omitempty"`
}

// PricingBreakdown is the settlement split frozen onto the invoice.
type PricingBreakdown struct {
	Currency      string `json:"currency"`
	PricingType   string `json:"pricing_type"`
	GrossAmount   int64  `json:"gross_amount"`
	NetAmount     int64  `json:"net_amount"`
	VATAmount     int64  `json:"vat_amount"`
	VATRate       string `json:"vat_rate"`
	ReverseCharge bool   `json:"reverse_charge"`
	Description   string `json:"description"`
}

// Invoice is generated at most once per settlement.
type Invoice struct {
	ID              snowflake.ID                         `gorm:"primaryKey" json:"id"`
	InvoiceNumber   string                               `gorm:"column:invoice_number;type:text;not null;uniqueIndex" json:"invoice_number"`
	Prefix          string                               `gorm:"type:text;not null;uniqueIndex:ux_invoice_prefix_sequence" json:"prefix"`
	Sequence        int64                                `gorm:"not null;uniqueIndex:ux_invoice_prefix_sequence" json:"sequence"`
	SettlementID    snowflake.ID                         `gorm:"column:settlement_id;not null;uniqueIndex" json:"settlement_id"`
	Status          InvoiceStatus                        `gorm:"type:text;not null" json:"status"`
	Currency        string                               `gorm:"type:text;not null" json:"currency"`
	Buyer           datatypes.JSONType[Party]            `gorm:"type:jsonb;not null" json:"buyer"`
	Seller          datatypes.JSONType[Party]            `gorm:"type:jsonb;not null" json:"seller"`
	Pricing         datatypes.JSONType[PricingBreakdown] `gorm:"type:jsonb;not null" json:"pricing"`
	VATExemptReason string                               `gorm:"column:vat_exempt_reason;type:text" json:"vat_exempt_reason,omitempty"`
	DeliveryStatus  DeliveryStatus                       `gorm:"column:delivery_status;type:text;not null;index" json:"delivery_status"`
	IssueDate       time.Time                            `gorm:"column:issue_date;not null" json:"issue_date"`
	CreatedAt       time.Time                            `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time                            `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Sequence is the per-prefix counter. LastValue is the highest number issued.
type Sequence struct {
	Prefix    string    `gorm:"primaryKey;type:text"`
	LastValue int64     `gorm:"column:last_value;not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Sequence) TableName() string { return "invoice_sequences" }

// Delivery records one notification attempt.
type Delivery struct {
	ID                snowflake.ID   `gorm:"primaryKey" json:"id"`
	InvoiceID         snowflake.ID   `gorm:"column:invoice_id;not null;index" json:"invoice_id"`
	Provider          string         `gorm:"type:text;not null" json:"provider"`
	Status            DeliveryStatus `gorm:"type:text;not null" json:"status"`
	Attempt           int            `gorm:"not null" json:"attempt"`
	ProviderMessageID *string        `gorm:"column:provider_message_id;type:text" json:"provider_message_id,omitempty"`
	Error             *string        `gorm:"type:text" json:"error,omitempty"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Delivery) TableName() string { return "invoice_deliveries" }

// BuyerOverrides replace the buyer details taken from the account at generation time.
type BuyerOverrides struct {
	Name        *string `json:"name,omitempty"`
	Email       *string `json:"email,omitempty"`
	IsBusiness  *bool   `json:"is_business,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
	VATNumber   *string `json:"vat_number,omitempty"`
}

// DeliveryOutcome is what a Notifier reports for one send.
type DeliveryOutcome struct {
	Success   bool   `json:"success"`
	Provider  string `json:"provider"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type GetResult struct {
	Invoice  Invoice          `json:"invoice"`
	Created  bool             `json:"created"`
	Delivery *DeliveryOutcome `json:"delivery,omitempty"`
}

type DeliveryRetryReport struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
}
