package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type SubscriptionType string

const (
	SubscriptionTypeMonthly SubscriptionType = "monthly"
	SubscriptionTypeYearly  SubscriptionType = "yearly"
)

func (t SubscriptionType) Valid() bool {
	return t == SubscriptionTypeMonthly || t == SubscriptionTypeYearly
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

type TransactionType string

const (
	TransactionTypeUsage        TransactionType = "usage"
	TransactionTypePurchase     TransactionType = "purchase"
	TransactionTypeRefund       TransactionType = "refund"
	TransactionTypeMonthlyGrant TransactionType = "monthly_grant"
	TransactionTypeBonus        TransactionType = "bonus"
	TransactionTypeAdjustment   TransactionType = "adjustment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeUsage,
		TransactionTypePurchase,
		TransactionTypeRefund,
		TransactionTypeMonthlyGrant,
		TransactionTypeBonus,
		TransactionTypeAdjustment:
		return true
	default:
		return false
	}
}

// Reference types written by the service itself.
const (
	ReferenceTypeBillingCycle = "billing_cycle"
	ReferenceTypeCycleExpiry  = "cycle_expiry"
	ReferenceTypeEnrollment   = "enrollment"
	ReferenceTypeLLMUsage     = "llm_usage"
	ReferenceTypePayment      = "payment"
	ReferenceTypeUpgrade      = "upgrade"
)

// Subscription is the per-user balance projection. The three buckets always
// satisfy CurrentCredits = MonthlyCredits - UsedCredits + PurchasedCredits.
type Subscription struct {
	ID               snowflake.ID       `gorm:"primaryKey" json:"id"`
	UserID           int64              `gorm:"column:user_id;not null;uniqueIndex" json:"user_id,string"`
	Tier             string             `gorm:"column:tier;type:text;not null" json:"tier"`
	SubscriptionType SubscriptionType   `gorm:"column:subscription_type;type:text;not null" json:"subscription_type"`
	MonthlyCredits   decimal.Decimal    `gorm:"column:monthly_credits;type:numeric(20,2);not null" json:"monthly_credits"`
	CurrentCredits   decimal.Decimal    `gorm:"column:current_credits;type:numeric(20,2);not null" json:"current_credits"`
	UsedCredits      decimal.Decimal    `gorm:"column:used_credits;type:numeric(20,2);not null" json:"used_credits"`
	PurchasedCredits decimal.Decimal    `gorm:"column:purchased_credits;type:numeric(20,2);not null" json:"purchased_credits"`
	Status           SubscriptionStatus `gorm:"column:status;type:text;not null" json:"status"`
	AutoRenew        bool               `gorm:"column:auto_renew;not null" json:"auto_renew"`
	Version          int64              `gorm:"column:version;not null;default:1" json:"version"`

	SubscriptionStartDate time.Time  `gorm:"column:subscription_start_date;not null" json:"subscription_start_date"`
	BillingCycleStart     time.Time  `gorm:"column:billing_cycle_start;not null" json:"billing_cycle_start"`
	BillingCycleEnd       time.Time  `gorm:"column:billing_cycle_end;not null;index" json:"billing_cycle_end"`
	NextGrantDate         *time.Time `gorm:"column:next_grant_date" json:"next_grant_date,omitempty"`
	CancelledAt           *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Subscription) TableName() string { return "user_subscriptions" }

// Balance recomputes the spendable balance from the buckets.
func (s Subscription) Balance() decimal.Decimal {
	return s.MonthlyCredits.Sub(s.UsedCredits).Add(s.PurchasedCredits)
}

// MonthlyRemaining is the unspent part of the current cycle's allowance.
func (s Subscription) MonthlyRemaining() decimal.Decimal {
	return s.MonthlyCredits.Sub(s.UsedCredits)
}

func (s Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// Validate checks the bucket invariants.
func (s Subscription) Validate() error {
	if s.UsedCredits.IsNegative() || s.UsedCredits.GreaterThan(s.MonthlyCredits) {
		return fmt.Errorf("%w: used_credits %s outside [0, %s]", ErrInvariantViolation, s.UsedCredits, s.MonthlyCredits)
	}
	if s.PurchasedCredits.IsNegative() {
		return fmt.Errorf("%w: purchased_credits %s is negative", ErrInvariantViolation, s.PurchasedCredits)
	}
	if !s.CurrentCredits.Equal(s.Balance()) {
		return fmt.Errorf("%w: current_credits %s != %s", ErrInvariantViolation, s.CurrentCredits, s.Balance())
	}
	if !s.BillingCycleStart.Before(s.BillingCycleEnd) {
		return fmt.Errorf("%w: empty billing cycle", ErrInvariantViolation)
	}
	return nil
}

// Transaction is one immutable ledger row.
type Transaction struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID          int64             `gorm:"column:user_id;not null;uniqueIndex:ux_credit_transactions_reference,priority:1" json:"user_id,string"`
	SubscriptionID  snowflake.ID      `gorm:"column:subscription_id;not null" json:"subscription_id"`
	TransactionType TransactionType   `gorm:"column:transaction_type;type:text;not null;uniqueIndex:ux_credit_transactions_reference,priority:3" json:"transaction_type"`
	Credits         decimal.Decimal   `gorm:"column:credits;type:numeric(20,2);not null" json:"credits"`
	BalanceBefore   decimal.Decimal   `gorm:"column:balance_before;type:numeric(20,2);not null" json:"balance_before"`
	BalanceAfter    decimal.Decimal   `gorm:"column:balance_after;type:numeric(20,2);not null" json:"balance_after"`
	ReferenceID     *string           `gorm:"column:reference_id;type:text;uniqueIndex:ux_credit_transactions_reference,priority:2" json:"reference_id,omitempty"`
	ReferenceType   *string           `gorm:"column:reference_type;type:text" json:"reference_type,omitempty"`
	Description     *string           `gorm:"column:description;type:text" json:"description,omitempty"`
	ExtraData       datatypes.JSONMap `gorm:"column:extra_data;type:jsonb" json:"extra_data,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Transaction) TableName() string { return "credit_transactions" }
