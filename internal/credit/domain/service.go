package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	billingcycledomain "github.com/smallbiznis/creditledger/internal/billingcycle/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
)

type Service interface {
	ApplyTransaction(ctx context.Context, req ApplyRequest) (*creditledgerdomain.Transaction, error)
	FindByReference(ctx context.Context, userID int64, referenceID string, txnType creditledgerdomain.TransactionType) (*creditledgerdomain.Transaction, error)

	EnsureSubscription(ctx context.Context, userID int64) (*creditledgerdomain.Subscription, error)
	Subscribe(ctx context.Context, req SubscribeRequest) (*creditledgerdomain.Subscription, error)
	QuoteUpgrade(ctx context.Context, userID int64, tierName string, subscriptionType creditledgerdomain.SubscriptionType) (*UpgradeQuote, error)
	Upgrade(ctx context.Context, req UpgradeRequest) (*UpgradeResult, error)
	Cancel(ctx context.Context, userID int64, immediately bool) (*creditledgerdomain.Subscription, error)
	SetAutoRenew(ctx context.Context, userID int64, autoRenew bool) (*creditledgerdomain.Subscription, error)
	AdvanceCycle(ctx context.Context, userID int64) (*AdvanceResult, error)

	ChargeUsage(ctx context.Context, req UsageRequest) (*UsageResult, error)
	CheckCredits(ctx context.Context, userID int64, estimated decimal.Decimal) (*CheckResult, error)

	GetCreditsInfo(ctx context.Context, userID int64) (*CreditsInfo, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
	VerifyLedger(ctx context.Context, userID int64) (*LedgerReport, error)
}

var (
	ErrInsufficientCredits    = errors.New("insufficient_credits")
	ErrSubscriptionExpired    = errors.New("subscription_expired")
	ErrTierUnavailable        = billingcycledomain.ErrTierUnavailable
	ErrDuplicateReference     = creditledgerdomain.ErrDuplicateReference
	ErrConcurrentModification = errors.New("concurrent_modification")
	ErrSubscriptionNotFound   = errors.New("subscription_not_found")
	ErrUpgradeNotAllowed      = errors.New("upgrade_not_allowed")
	ErrSubscriptionActive     = errors.New("subscription_active")
	ErrYearlyPlanUnavailable  = errors.New("yearly_plan_unavailable")
	ErrTransactionNotFound    = errors.New("transaction_not_found")

	ErrInvalidUserID           = errors.New("invalid_user_id")
	ErrInvalidTransactionType  = errors.New("invalid_transaction_type")
	ErrInvalidAmount           = errors.New("invalid_amount")
	ErrInvalidSubscriptionType = billingcycledomain.ErrInvalidSubscriptionType
	ErrInvalidReference        = errors.New("invalid_reference")
	ErrInvalidTokenCount       = errors.New("invalid_token_count")
)

// InsufficientCreditsError reports a debit larger than the spendable balance.
type InsufficientCreditsError struct {
	Balance  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient_credits: balance %s, required %s", e.Balance.StringFixed(2), e.Required.StringFixed(2))
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}
