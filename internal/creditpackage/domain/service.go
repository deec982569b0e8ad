package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	List(ctx context.Context, includeDisabled bool) ([]Package, error)
	Get(ctx context.Context, id snowflake.ID) (*Package, error)
	Upsert(ctx context.Context, req UpsertRequest) (*Package, error)
	SetEnabled(ctx context.Context, id snowflake.ID, enabled bool) (*Package, error)
	Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error)
}

type UpsertRequest struct {
	PackageName  string          `json:"package_name"`
	Credits      decimal.Decimal `json:"credits"`
	BonusCredits decimal.Decimal `json:"bonus_credits"`
	Price        decimal.Decimal `json:"price"`
	Description  string          `json:"description"`
	Enabled      *bool           `json:"enabled,omitempty"`
	SortOrder    int             `json:"sort_order"`
}

var (
	ErrNotFound                = errors.New("package_not_found")
	ErrPackageUnavailable      = errors.New("package_unavailable")
	ErrInvalidPackageName      = errors.New("invalid_package_name")
	ErrInvalidCredits          = errors.New("invalid_package_credits")
	ErrInvalidPrice            = errors.New("invalid_package_price")
	ErrInvalidPaymentReference = errors.New("invalid_payment_reference")
)
