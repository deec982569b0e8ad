package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type Service interface {
	GetTier(ctx context.Context, tierName string) (*Tier, error)
	ListEnabledTiers(ctx context.Context) ([]Tier, error)
	ListTiers(ctx context.Context) ([]Tier, error)
	UpsertTier(ctx context.Context, req UpsertRequest) (*Tier, error)
	SetTierEnabled(ctx context.Context, tierName string, enabled bool) (*Tier, error)
}

type UpsertRequest struct {
	TierName       string           `json:"tier_name"`
	DisplayName    string           `json:"display_name"`
	MonthlyCredits decimal.Decimal  `json:"monthly_credits"`
	MonthlyPrice   decimal.Decimal  `json:"monthly_price"`
	YearlyPrice    *decimal.Decimal `json:"yearly_price,omitempty"`
	YearlyDiscount *decimal.Decimal `json:"yearly_discount,omitempty"`
	Features       Features         `json:"features"`
	Enabled        *bool            `json:"enabled,omitempty"`
	SortOrder      int              `json:"sort_order"`
}

var (
	ErrInvalidTierName       = errors.New("invalid_tier_name")
	ErrInvalidDisplayName    = errors.New("invalid_display_name")
	ErrInvalidMonthlyCredits = errors.New("invalid_monthly_credits")
	ErrInvalidPrice          = errors.New("invalid_price")
	ErrNotFound              = errors.New("tier_not_found")
)
