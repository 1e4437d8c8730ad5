package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindBySettlementID(ctx context.Context, db *gorm.DB, settlementID snowflake.ID) (*Invoice, error)
	// NextSequence increments the prefix counter inside db's transaction and returns the new value.
	NextSequence(ctx context.Context, db *gorm.DB, prefix string, at time.Time) (int64, error)
	// Insert reports false when the settlement already has an invoice.
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) (bool, error)
	UpdateDeliveryStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status DeliveryStatus, at time.Time) error
	InsertDelivery(ctx context.Context, db *gorm.DB, delivery *Delivery) error
	CountDeliveries(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (int, error)
	ListDeliveries(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]Delivery, error)
	// ListUndelivered returns invoices whose last delivery failed, oldest first.
	ListUndelivered(ctx context.Context, db *gorm.DB, limit int) ([]Invoice, error)
}
