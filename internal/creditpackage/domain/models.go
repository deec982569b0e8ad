package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
)

// Package is a one-off bundle of purchasable credits.
type Package struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	PackageName  string          `gorm:"column:package_name;type:text;not null;uniqueIndex" json:"package_name"`
	Credits      decimal.Decimal `gorm:"column:credits;type:numeric(20,2);not null" json:"credits"`
	BonusCredits decimal.Decimal `gorm:"column:bonus_credits;type:numeric(20,2);not null" json:"bonus_credits"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(20,2);not null" json:"price"`
	Description  string          `gorm:"column:description;type:text" json:"description,omitempty"`
	Enabled      bool            `gorm:"column:enabled;not null" json:"enabled"`
	SortOrder    int             `gorm:"column:sort_order;not null;default:0" json:"sort_order"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Package) TableName() string { return "credit_packages" }

// TotalCredits is what the buyer ends up with.
func (p Package) TotalCredits() decimal.Decimal {
	return p.Credits.Add(p.BonusCredits)
}

type PurchaseRequest struct {
	UserID           int64        `json:"user_id,string"`
	PackageID        snowflake.ID `json:"package_id"`
	PaymentReference string       `json:"payment_reference"`
}

type PurchaseResult struct {
	Package  Package                         `json:"package"`
	Purchase creditledgerdomain.Transaction  `json:"purchase"`
	Bonus    *creditledgerdomain.Transaction `json:"bonus,omitempty"`
}
