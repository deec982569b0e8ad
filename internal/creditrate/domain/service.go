package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditledger/internal/cache"
)

type Service interface {
	// GetRate resolves the rate for modelID. Unknown and disabled models fall
	// back to the configured default rate.
	GetRate(ctx context.Context, modelID string) (*Rate, error)
	Calculate(ctx context.Context, modelID string, inputTokens, outputTokens int64) (*Calculation, error)
	ListRates(ctx context.Context) ([]Rate, error)
	UpsertRate(ctx context.Context, req UpsertRequest) (*Rate, error)

	Invalidate(modelID string)
	InvalidateAll()
	Stats() cache.Stats
}

type UpsertRequest struct {
	ModelID               string          `json:"model_id"`
	BaseCreditPer1KTokens decimal.Decimal `json:"base_credit_per_1k_tokens"`
	InputMultiplier       decimal.Decimal `json:"input_multiplier"`
	OutputMultiplier      decimal.Decimal `json:"output_multiplier"`
	Enabled               *bool           `json:"enabled,omitempty"`
}

var (
	ErrInvalidModelID    = errors.New("invalid_model_id")
	ErrInvalidRate       = errors.New("invalid_rate")
	ErrInvalidTokenCount = errors.New("invalid_token_count")
)
