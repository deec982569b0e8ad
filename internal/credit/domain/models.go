package domain

import (
	"time"

	"github.com/shopspring/decimal"
	billingcycledomain "github.com/smallbiznis/creditledger/internal/billingcycle/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
)

type ApplyRequest struct {
	UserID        int64                              `json:"user_id,string"`
	Type          creditledgerdomain.TransactionType `json:"transaction_type"`
	Amount        decimal.Decimal                    `json:"amount"`
	ReferenceID   string                             `json:"reference_id,omitempty"`
	ReferenceType string                             `json:"reference_type,omitempty"`
	Description   string                             `json:"description,omitempty"`
	ExtraData     map[string]any                     `json:"extra_data,omitempty"`
}

type SubscribeRequest struct {
	UserID           int64                               `json:"user_id,string"`
	TierName         string                              `json:"tier_name"`
	SubscriptionType creditledgerdomain.SubscriptionType `json:"subscription_type"`
	AutoRenew        *bool                               `json:"auto_renew,omitempty"`
	PaymentReference string                              `json:"payment_reference,omitempty"`
}

type UpgradeQuote struct {
	OrderID              string                              `json:"order_id"`
	UserID               int64                               `json:"user_id,string"`
	CurrentTier          string                              `json:"current_tier"`
	CurrentType          creditledgerdomain.SubscriptionType `json:"current_subscription_type"`
	TargetTier           string                              `json:"target_tier"`
	TargetType           creditledgerdomain.SubscriptionType `json:"target_subscription_type"`
	TargetPrice          decimal.Decimal                     `json:"target_price"`
	RemainingDays        int                                 `json:"remaining_days"`
	RemainingValue       decimal.Decimal                     `json:"remaining_value"`
	FinalPrice           decimal.Decimal                     `json:"final_price"`
	TargetMonthlyCredits decimal.Decimal                     `json:"target_monthly_credits"`
	QuotedAt             time.Time                           `json:"quoted_at"`
}

type UpgradeRequest struct {
	UserID           int64                               `json:"user_id,string"`
	TierName         string                              `json:"tier_name"`
	SubscriptionType creditledgerdomain.SubscriptionType `json:"subscription_type"`
	OrderID          string                              `json:"order_id,omitempty"`
	PaymentReference string                              `json:"payment_reference,omitempty"`
}

type UpgradeResult struct {
	Quote        UpgradeQuote                    `json:"quote"`
	Subscription creditledgerdomain.Subscription `json:"subscription"`
}

// AdvanceResult reports what a scheduler pass did to one subscription.
type AdvanceResult struct {
	UserID     int64                                 `json:"user_id,string"`
	Advanced   bool                                  `json:"advanced"`
	Kind       billingcycledomain.CycleKind          `json:"kind,omitempty"`
	FromStatus creditledgerdomain.SubscriptionStatus `json:"from_status"`
	Status     creditledgerdomain.SubscriptionStatus `json:"status"`
	Granted    decimal.Decimal                       `json:"granted"`
	Expired    decimal.Decimal                       `json:"expired"`
	Window     billingcycledomain.CycleWindow        `json:"window"`
}

type UsageRequest struct {
	UserID       int64  `json:"user_id,string"`
	ModelID      string `json:"model_id"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	ReferenceID  string `json:"reference_id"`
}

type UsageResult struct {
	Credits     decimal.Decimal                 `json:"credits"`
	Transaction *creditledgerdomain.Transaction `json:"transaction,omitempty"`
	RateSource  string                          `json:"rate_source"`
}

type CheckResult struct {
	Allowed   bool            `json:"allowed"`
	Balance   decimal.Decimal `json:"balance"`
	Required  decimal.Decimal `json:"required"`
	Shortfall decimal.Decimal `json:"shortfall"`
	Reason    string          `json:"reason,omitempty"`
}

type CreditsInfo struct {
	UserID            int64                                 `json:"user_id,string"`
	Tier              string                                `json:"tier"`
	TierDisplayName   string                                `json:"tier_display_name"`
	SubscriptionType  creditledgerdomain.SubscriptionType   `json:"subscription_type"`
	Status            creditledgerdomain.SubscriptionStatus `json:"status"`
	AutoRenew         bool                                  `json:"auto_renew"`
	CurrentCredits    decimal.Decimal                       `json:"current_credits"`
	MonthlyCredits    decimal.Decimal                       `json:"monthly_credits"`
	UsedCredits       decimal.Decimal                       `json:"used_credits"`
	PurchasedCredits  decimal.Decimal                       `json:"purchased_credits"`
	MonthlyRemaining  decimal.Decimal                       `json:"monthly_remaining"`
	BillingCycleStart time.Time                             `json:"billing_cycle_start"`
	BillingCycleEnd   time.Time                             `json:"billing_cycle_end"`
	NextGrantDate     *time.Time                            `json:"next_grant_date,omitempty"`
	CancelledAt       *time.Time                            `json:"cancelled_at,omitempty"`
}

type ListTransactionsRequest struct {
	UserID          int64
	TransactionType string
	ReferenceType   string
	Descending      bool
	pagination.Pagination
}

type ListTransactionsResponse struct {
	Transactions []creditledgerdomain.Transaction `json:"transactions"`
	PageInfo     pagination.PageInfo              `json:"page_info"`
}

// ChainBreak is a ledger row whose balance_before does not match the
// previous row's balance_after, or whose delta does not add up.
type ChainBreak struct {
	TransactionID string          `json:"transaction_id"`
	Expected      decimal.Decimal `json:"expected"`
	Actual        decimal.Decimal `json:"actual"`
	Reason        string          `json:"reason"`
}

type LedgerReport struct {
	UserID          int64           `json:"user_id,string"`
	Transactions    int             `json:"transactions"`
	ReplayedBalance decimal.Decimal `json:"replayed_balance"`
	StoredBalance   decimal.Decimal `json:"stored_balance"`
	Drift           decimal.Decimal `json:"drift"`
	Breaks          []ChainBreak    `json:"breaks"`
	Consistent      bool            `json:"consistent"`
}
