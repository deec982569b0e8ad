package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditledger/internal/credit/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	creditratedomain "github.com/smallbiznis/creditledger/internal/creditrate/domain"
)

// ChargeUsage prices a model call and debits it as a usage transaction.
// Calls that round to zero credits are not recorded.
func (s *Service) ChargeUsage(ctx context.Context, req domain.UsageRequest) (*domain.UsageResult, error) {
	if req.UserID <= 0 {
		return nil, domain.ErrInvalidUserID
	}
	if req.InputTokens < 0 || req.OutputTokens < 0 {
		return nil, domain.ErrInvalidTokenCount
	}
	referenceID := strings.TrimSpace(req.ReferenceID)
	if referenceID == "" {
		return nil, domain.ErrInvalidReference
	}

	calc, err := s.rates.Calculate(ctx, req.ModelID, req.InputTokens, req.OutputTokens)
	if err != nil {
		if errors.Is(err, creditratedomain.ErrInvalidTokenCount) {
			return nil, domain.ErrInvalidTokenCount
		}
		return nil, err
	}
	result := &domain.UsageResult{Credits: calc.Credits, RateSource: calc.Rate.Source}
	if calc.Credits.IsZero() {
		return result, nil
	}

	txn, err := s.ApplyTransaction(ctx, domain.ApplyRequest{
		UserID:        req.UserID,
		Type:          creditledgerdomain.TransactionTypeUsage,
		Amount:        calc.Credits.Neg(),
		ReferenceID:   referenceID,
		ReferenceType: creditledgerdomain.ReferenceTypeLLMUsage,
		Description:   "Model usage: " + calc.ModelID,
		ExtraData: map[string]any{
			"model_id":      calc.ModelID,
			"input_tokens":  req.InputTokens,
			"output_tokens": req.OutputTokens,
			"rate_source":   calc.Rate.Source,
		},
	})
	if err != nil {
		return nil, err
	}
	result.Transaction = txn
	return result, nil
}

// CheckCredits reports whether estimated credits could be spent right now.
// Pending cycle transitions are evaluated in memory; nothing is written.
func (s *Service) CheckCredits(ctx context.Context, userID int64, estimated decimal.Decimal) (*domain.CheckResult, error) {
	if estimated.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	sub, err := s.projectSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	balance := sub.Balance()
	res := &domain.CheckResult{
		Allowed:   true,
		Balance:   balance,
		Required:  estimated,
		Shortfall: decimal.Zero,
	}
	switch {
	case !sub.IsActive():
		res.Allowed = false
		res.Reason = domain.ErrSubscriptionExpired.Error()
	case estimated.GreaterThan(balance):
		res.Allowed = false
		res.Shortfall = estimated.Sub(balance)
		res.Reason = domain.ErrInsufficientCredits.Error()
	}
	return res, nil
}

// projectSubscription returns the subscription as it would look after lazy
// cycle handling at the current time.
func (s *Service) projectSubscription(ctx context.Context, userID int64) (*creditledgerdomain.Subscription, error) {
	sub, err := s.EnsureSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	tier, err := s.lookupTier(ctx, sub.Tier)
	if err != nil {
		return nil, err
	}
	projected := *sub
	m := newMutation(&projected, tier, s.clock.Now())
	if err := s.settle(m, triggerLazy); err != nil {
		return nil, err
	}
	projected.CurrentCredits = projected.Balance()
	return &projected, nil
}
