package service

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditledger/internal/credit/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
)

// validateAmount enforces the sign each transaction type may carry and the
// two-decimal precision of credit amounts.
func validateAmount(txnType creditledgerdomain.TransactionType, amount decimal.Decimal) error {
	if !txnType.Valid() {
		return domain.ErrInvalidTransactionType
	}
	if !amount.Equal(amount.Round(2)) {
		return domain.ErrInvalidAmount
	}

	switch txnType {
	case creditledgerdomain.TransactionTypeUsage:
		if !amount.IsNegative() {
			return domain.ErrInvalidAmount
		}
	case creditledgerdomain.TransactionTypeAdjustment:
		if amount.IsZero() {
			return domain.ErrInvalidAmount
		}
	case creditledgerdomain.TransactionTypeMonthlyGrant:
		if amount.IsNegative() {
			return domain.ErrInvalidAmount
		}
	default:
		if !amount.IsPositive() {
			return domain.ErrInvalidAmount
		}
	}
	return nil
}

// applyDelta routes amount into the subscription buckets. Debits spend the
// monthly allowance before purchased credits; refunds give back used
// allowance before topping up purchased credits. CurrentCredits is left to
// the caller.
func applyDelta(sub *creditledgerdomain.Subscription, txnType creditledgerdomain.TransactionType, amount decimal.Decimal) error {
	switch {
	case amount.IsNegative():
		debit := amount.Neg()
		balance := sub.Balance()
		if debit.GreaterThan(balance) {
			return &domain.InsufficientCreditsError{Balance: balance, Required: debit}
		}
		fromMonthly := decimal.Min(debit, decimal.Max(sub.MonthlyRemaining(), decimal.Zero))
		sub.UsedCredits = sub.UsedCredits.Add(fromMonthly)
		sub.PurchasedCredits = sub.PurchasedCredits.Sub(debit.Sub(fromMonthly))

	case txnType == creditledgerdomain.TransactionTypeMonthlyGrant:
		sub.MonthlyCredits = sub.MonthlyCredits.Add(amount)

	case txnType == creditledgerdomain.TransactionTypeRefund:
		restored := decimal.Min(amount, sub.UsedCredits)
		sub.UsedCredits = sub.UsedCredits.Sub(restored)
		sub.PurchasedCredits = sub.PurchasedCredits.Add(amount.Sub(restored))

	default:
		sub.PurchasedCredits = sub.PurchasedCredits.Add(amount)
	}
	return nil
}
