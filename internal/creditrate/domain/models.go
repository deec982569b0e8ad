package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const (
	RateSourceModel   = "model"
	RateSourceDefault = "default"
)

var tokensPerUnit = decimal.NewFromInt(1000)

// Rate prices model usage in credits per 1k tokens.
type Rate struct {
	ID                    snowflake.ID    `gorm:"primaryKey" json:"id"`
	ModelID               string          `gorm:"column:model_id;type:text;not null;uniqueIndex" json:"model_id"`
	BaseCreditPer1KTokens decimal.Decimal `gorm:"column:base_credit_per_1k_tokens;type:numeric(12,4);not null" json:"base_credit_per_1k_tokens"`
	InputMultiplier       decimal.Decimal `gorm:"column:input_multiplier;type:numeric(8,4);not null" json:"input_multiplier"`
	OutputMultiplier      decimal.Decimal `gorm:"column:output_multiplier;type:numeric(8,4);not null" json:"output_multiplier"`
	Enabled               bool            `gorm:"column:enabled;not null" json:"enabled"`

	// Source tells whether the rate came from the table or the configured fallback.
	Source string `gorm:"-" json:"source"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Rate) TableName() string { return "model_credit_rates" }

// CalculateCredits prices a call:
// in/1000 * base * input_mult + out/1000 * base * output_mult, rounded to cents.
func CalculateCredits(rate Rate, inputTokens, outputTokens int64) decimal.Decimal {
	in := decimal.NewFromInt(inputTokens).Div(tokensPerUnit).
		Mul(rate.BaseCreditPer1KTokens).
		Mul(rate.InputMultiplier)
	out := decimal.NewFromInt(outputTokens).Div(tokensPerUnit).
		Mul(rate.BaseCreditPer1KTokens).
		Mul(rate.OutputMultiplier)
	return in.Add(out).Round(2)
}

// Calculation is the priced result of one model call.
type Calculation struct {
	ModelID      string          `json:"model_id"`
	InputTokens  int64           `json:"input_tokens"`
	OutputTokens int64           `json:"output_tokens"`
	Credits      decimal.Decimal `json:"credits"`
	Rate         Rate            `json:"rate"`
}
