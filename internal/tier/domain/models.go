package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Tier is a subscription level in the catalog. Tiers are disabled, never deleted.
type Tier struct {
	ID             snowflake.ID        `gorm:"primaryKey" json:"id"`
	TierName       string              `gorm:"column:tier_name;type:text;not null;uniqueIndex" json:"tier_name"`
	DisplayName    string              `gorm:"column:display_name;type:text;not null" json:"display_name"`
	MonthlyCredits decimal.Decimal     `gorm:"column:monthly_credits;type:numeric(20,2);not null" json:"monthly_credits"`
	MonthlyPrice   decimal.Decimal     `gorm:"column:monthly_price;type:numeric(20,2);not null" json:"monthly_price"`
	YearlyPrice    decimal.NullDecimal `gorm:"column:yearly_price;type:numeric(20,2)" json:"yearly_price"`
	YearlyDiscount decimal.NullDecimal `gorm:"column:yearly_discount;type:numeric(5,2)" json:"yearly_discount"`
	Features       Features            `gorm:"column:features;type:jsonb" json:"features"`
	Enabled        bool                `gorm:"column:enabled;not null" json:"enabled"`
	SortOrder      int                 `gorm:"column:sort_order;not null;default:0" json:"sort_order"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Tier) TableName() string { return "subscription_tiers" }

// HasYearlyPlan reports whether the tier can be bought yearly.
func (t Tier) HasYearlyPlan() bool {
	return t.YearlyPrice.Valid && t.YearlyPrice.Decimal.IsPositive()
}
