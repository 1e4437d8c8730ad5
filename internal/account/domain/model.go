package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrNotFound = errors.New("account_not_found")

type Kind string

const (
	KindSeller Kind = "seller"
	KindBuyer  Kind = "buyer"
	KindSchool Kind = "school"
)

// Account is the minimal party record settlement and invoicing read. Profile
// management lives elsewhere.
type Account struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	Kind        Kind          `gorm:"type:text;not null;index" json:"kind"`
	Name        string        `gorm:"type:text;not null" json:"name"`
	Email       string        `gorm:"type:text" json:"email,omitempty"`
	CountryCode string        `gorm:"column:country_code;type:text" json:"country_code,omitempty"`
	IsBusiness  bool          `gorm:"column:is_business;not null;default:false" json:"is_business"`
	CompanyName *string       `gorm:"column:company_name;type:text" json:"company_name,omitempty"`
	VATNumber   *string       `gorm:"column:vat_number;type:text" json:"-"`
	SchoolID    *snowflake.ID `gorm:"column:school_id" json:"school_id,omitempty"`
	CreatedAt   time.Time     `gorm:"not null" json:"created_at"`
}

func (Account) TableName() string { return "accounts" }

type Repository interface {
	FindByID(ctx context.Context, id snowflake.ID) (*Account, error)
	Exists(ctx context.Context, id snowflake.ID, kind Kind) (bool, error)
	// ListIDs pages through accounts of kind in id order, starting after afterID.
	ListIDs(ctx context.Context, kind Kind, afterID snowflake.ID, limit int) ([]snowflake.ID, error)
	FindByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]Account, error)
}
