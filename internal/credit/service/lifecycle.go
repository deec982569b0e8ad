package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	billingcycledomain "github.com/smallbiznis/creditledger/internal/billingcycle/domain"
	"github.com/smallbiznis/creditledger/internal/credit/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	tierdomain "github.com/smallbiznis/creditledger/internal/tier/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	orderIDPrefix     = "SUB-"
	monthlyPeriodDays = 30
	yearlyPeriodDays  = 365
)

// EnsureSubscription returns the user's subscription, enrolling the user on
// the default tier when none exists yet.
func (s *Service) EnsureSubscription(ctx context.Context, userID int64) (*creditledgerdomain.Subscription, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidUserID
	}
	existing, err := s.ledger.FindSubscriptionByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	tier, err := s.lookupTier(ctx, s.config.Get().DefaultTier)
	if err != nil {
		return nil, err
	}
	if tier == nil || !tier.Enabled {
		return nil, domain.ErrTierUnavailable
	}

	now := s.clock.Now().UTC()
	sub, err := s.createSubscription(ctx, userID, tier, creditledgerdomain.SubscriptionTypeMonthly, true, now, entry{
		referenceID:   "cycle:" + now.Format(time.RFC3339),
		referenceType: creditledgerdomain.ReferenceTypeEnrollment,
		description:   "Default tier enrollment",
		extra:         map[string]any{"tier": tier.TierName},
	})
	if errors.Is(err, creditledgerdomain.ErrSubscriptionExists) {
		return s.ledger.FindSubscriptionByUserID(ctx, s.db, userID)
	}
	return sub, err
}

// Subscribe enrolls the user on a tier with a fresh term starting now. Users
// still on the default tier, or whose subscription lapsed, may subscribe;
// moving between paid tiers goes through Upgrade.
func (s *Service) Subscribe(ctx context.Context, req domain.SubscribeRequest) (*creditledgerdomain.Subscription, error) {
	if req.UserID <= 0 {
		return nil, domain.ErrInvalidUserID
	}
	subType := req.SubscriptionType
	if subType == "" {
		subType = creditledgerdomain.SubscriptionTypeMonthly
	}
	if !subType.Valid() {
		return nil, domain.ErrInvalidSubscriptionType
	}

	tier, err := s.tiers.GetTier(ctx, req.TierName)
	if err != nil {
		return nil, err
	}
	if !tier.Enabled {
		return nil, domain.ErrTierUnavailable
	}
	if subType == creditledgerdomain.SubscriptionTypeYearly && !tier.HasYearlyPlan() {
		return nil, domain.ErrYearlyPlanUnavailable
	}

	autoRenew := true
	if req.AutoRenew != nil {
		autoRenew = *req.AutoRenew
	}
	reference := strings.TrimSpace(req.PaymentReference)
	if reference == "" {
		reference = newOrderID()
	}
	grant := entry{
		referenceID:   reference,
		referenceType: creditledgerdomain.ReferenceTypeEnrollment,
		description:   "Subscribed to " + tier.DisplayName,
		extra: map[string]any{
			"tier":              tier.TierName,
			"subscription_type": string(subType),
		},
	}

	existing, err := s.ledger.FindSubscriptionByUserID(ctx, s.db, req.UserID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		sub, err := s.createSubscription(ctx, req.UserID, tier, subType, autoRenew, s.clock.Now().UTC(), grant)
		if !errors.Is(err, creditledgerdomain.ErrSubscriptionExists) {
			return sub, err
		}
	}

	defaultTier := s.config.Get().DefaultTier
	m, err := s.withSubscription(ctx, req.UserID, false, func(_ context.Context, _ *gorm.DB, m *mutation) error {
		if m.sub.IsActive() && !s.cycles.IsCycleExpired(*m.sub, m.now) && m.sub.Tier != defaultTier {
			return domain.ErrSubscriptionActive
		}
		return s.startTerm(m, tier, subType, autoRenew, grant, triggerEnroll)
	})
	if err != nil {
		return nil, err
	}

	s.logger(ctx, req.UserID).Info("subscription started",
		zap.String("tier", tier.TierName),
		zap.String("subscription_type", string(subType)),
	)
	return m.sub, nil
}

func (s *Service) QuoteUpgrade(ctx context.Context, userID int64, tierName string, subscriptionType creditledgerdomain.SubscriptionType) (*domain.UpgradeQuote, error) {
	quote, _, err := s.prepareUpgrade(ctx, userID, tierName, subscriptionType)
	return quote, err
}

// Upgrade moves the user to a higher tier, or from monthly to yearly billing.
// The new term starts now; the unused part of the old allowance expires.
func (s *Service) Upgrade(ctx context.Context, req domain.UpgradeRequest) (*domain.UpgradeResult, error) {
	quote, target, err := s.prepareUpgrade(ctx, req.UserID, req.TierName, req.SubscriptionType)
	if err != nil {
		return nil, err
	}
	if orderID := strings.TrimSpace(req.OrderID); orderID != "" {
		quote.OrderID = orderID
	}

	extra := map[string]any{
		"order_id":        quote.OrderID,
		"from_tier":       quote.CurrentTier,
		"from_type":       string(quote.CurrentType),
		"final_price":     quote.FinalPrice.StringFixed(2),
		"remaining_value": quote.RemainingValue.StringFixed(2),
	}
	if ref := strings.TrimSpace(req.PaymentReference); ref != "" {
		extra["payment_reference"] = ref
	}

	m, err := s.withSubscription(ctx, req.UserID, false, func(_ context.Context, _ *gorm.DB, m *mutation) error {
		if m.sub.Tier != quote.CurrentTier || m.sub.SubscriptionType != quote.CurrentType {
			return domain.ErrConcurrentModification
		}
		return s.startTerm(m, target, quote.TargetType, true, entry{
			referenceID:   quote.OrderID,
			referenceType: creditledgerdomain.ReferenceTypeUpgrade,
			description:   "Upgraded to " + target.DisplayName,
			extra:         extra,
		}, triggerUpgrade)
	})
	if err != nil {
		return nil, err
	}

	s.logger(ctx, req.UserID).Info("subscription upgraded",
		zap.String("order_id", quote.OrderID),
		zap.String("from_tier", quote.CurrentTier),
		zap.String("to_tier", quote.TargetTier),
		zap.String("final_price", quote.FinalPrice.StringFixed(2)),
	)
	return &domain.UpgradeResult{Quote: *quote, Subscription: *m.sub}, nil
}

// Cancel stops auto renewal. The subscription stays usable until the cycle
// ends unless immediately is set. Unknown users are provisioned first.
func (s *Service) Cancel(ctx context.Context, userID int64, immediately bool) (*creditledgerdomain.Subscription, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidUserID
	}
	m, err := s.withSubscription(ctx, userID, true, func(_ context.Context, _ *gorm.DB, m *mutation) error {
		if err := s.settle(m, triggerLazy); err != nil {
			return err
		}
		m.fail = nil

		if m.sub.Status == creditledgerdomain.SubscriptionStatusCancelled {
			return nil
		}
		m.sub.AutoRenew = false
		if m.sub.CancelledAt == nil {
			now := m.now
			m.sub.CancelledAt = &now
		}
		m.dirty = true
		if immediately && m.sub.IsActive() {
			m.transition(creditledgerdomain.SubscriptionStatusCancelled)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger(ctx, userID).Info("subscription cancelled",
		zap.Bool("immediately", immediately),
		zap.String("status", string(m.sub.Status)),
	)
	return m.sub, nil
}

func (s *Service) SetAutoRenew(ctx context.Context, userID int64, autoRenew bool) (*creditledgerdomain.Subscription, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidUserID
	}
	m, err := s.withSubscription(ctx, userID, true, func(_ context.Context, _ *gorm.DB, m *mutation) error {
		if err := s.settle(m, triggerLazy); err != nil {
			return err
		}
		m.fail = nil

		if m.sub.Status == creditledgerdomain.SubscriptionStatusCancelled && autoRenew {
			return domain.ErrSubscriptionExpired
		}
		m.sub.AutoRenew = autoRenew
		if autoRenew {
			m.sub.CancelledAt = nil
		}
		m.dirty = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.sub, nil
}

// createSubscription inserts a new subscription together with its opening grant.
func (s *Service) createSubscription(ctx context.Context, userID int64, tier *tierdomain.Tier, subType creditledgerdomain.SubscriptionType, autoRenew bool, now time.Time, grant entry) (*creditledgerdomain.Subscription, error) {
	window, nextGrant, err := s.cycles.InitialCycle(subType, now)
	if err != nil {
		return nil, err
	}

	sub := &creditledgerdomain.Subscription{
		ID:                    s.genID.Generate(),
		UserID:                userID,
		Tier:                  tier.TierName,
		SubscriptionType:      subType,
		MonthlyCredits:        decimal.Zero,
		CurrentCredits:        decimal.Zero,
		UsedCredits:           decimal.Zero,
		PurchasedCredits:      decimal.Zero,
		Status:                creditledgerdomain.SubscriptionStatusActive,
		AutoRenew:             autoRenew,
		Version:               1,
		SubscriptionStartDate: window.Start,
		BillingCycleStart:     window.Start,
		BillingCycleEnd:       window.End,
		NextGrantDate:         nextGrant,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	m := newMutation(sub, tier, now)
	if _, err := s.rollAllowance(m, tier.MonthlyCredits, grant); err != nil {
		return nil, err
	}
	sub.CurrentCredits = sub.Balance()
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.InsertSubscription(ctx, tx, sub); err != nil {
			return err
		}
		for i := range m.rows {
			if err := s.ledger.AppendTransaction(ctx, tx, &m.rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.renewals = append(m.renewals, renewal{
		subscriptionType: subType,
		kind:             billingcycledomain.CycleKindRenewal,
		trigger:          triggerEnroll,
	})
	s.recordCommitted(ctx, m)
	s.logger(ctx, userID).Info("subscription created",
		zap.String("tier", tier.TierName),
		zap.String("subscription_type", string(subType)),
		zap.String("monthly_credits", tier.MonthlyCredits.String()),
	)
	return sub, nil
}

// startTerm restarts the locked subscription on tier with a term beginning now.
func (s *Service) startTerm(m *mutation, tier *tierdomain.Tier, subType creditledgerdomain.SubscriptionType, autoRenew bool, grant entry, trigger string) error {
	window, nextGrant, err := s.cycles.InitialCycle(subType, m.now)
	if err != nil {
		return err
	}
	if _, err := s.rollAllowance(m, tier.MonthlyCredits, grant); err != nil {
		return err
	}

	sub := m.sub
	sub.Tier = tier.TierName
	sub.SubscriptionType = subType
	sub.SubscriptionStartDate = window.Start
	sub.BillingCycleStart = window.Start
	sub.BillingCycleEnd = window.End
	sub.NextGrantDate = nextGrant
	sub.AutoRenew = autoRenew
	sub.CancelledAt = nil
	m.transition(creditledgerdomain.SubscriptionStatusActive)
	m.dirty = true

	m.renewals = append(m.renewals, renewal{
		subscriptionType: subType,
		kind:             billingcycledomain.CycleKindRenewal,
		trigger:          trigger,
	})
	return nil
}

func (s *Service) prepareUpgrade(ctx context.Context, userID int64, tierName string, subType creditledgerdomain.SubscriptionType) (*domain.UpgradeQuote, *tierdomain.Tier, error) {
	if userID <= 0 {
		return nil, nil, domain.ErrInvalidUserID
	}
	if subType == "" {
		subType = creditledgerdomain.SubscriptionTypeMonthly
	}
	if !subType.Valid() {
		return nil, nil, domain.ErrInvalidSubscriptionType
	}

	sub, err := s.EnsureSubscription(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	target, err := s.tiers.GetTier(ctx, tierName)
	if err != nil {
		return nil, nil, err
	}
	current, err := s.lookupTier(ctx, sub.Tier)
	if err != nil {
		return nil, nil, err
	}

	quote, err := buildQuote(*sub, current, target, subType, s.clock.Now().UTC())
	if err != nil {
		return nil, nil, err
	}
	return quote, target, nil
}

// buildQuote prices an upgrade. The unused share of what the user paid for
// the running term is credited against the target price.
func buildQuote(sub creditledgerdomain.Subscription, current, target *tierdomain.Tier, targetType creditledgerdomain.SubscriptionType, now time.Time) (*domain.UpgradeQuote, error) {
	if target == nil || !target.Enabled {
		return nil, domain.ErrTierUnavailable
	}
	if sub.Tier == target.TierName && sub.SubscriptionType == targetType {
		return nil, domain.ErrUpgradeNotAllowed
	}
	if sub.SubscriptionType == creditledgerdomain.SubscriptionTypeYearly && targetType == creditledgerdomain.SubscriptionTypeMonthly {
		return nil, domain.ErrUpgradeNotAllowed
	}
	if current != nil && target.MonthlyPrice.LessThan(current.MonthlyPrice) {
		return nil, domain.ErrUpgradeNotAllowed
	}
	if targetType == creditledgerdomain.SubscriptionTypeYearly && !target.HasYearlyPlan() {
		return nil, domain.ErrUpgradeNotAllowed
	}

	remainingDays := 0
	remainingValue := decimal.Zero
	if current != nil && sub.IsActive() && now.Before(sub.BillingCycleEnd) {
		remainingDays = int(math.Ceil(sub.BillingCycleEnd.Sub(now).Hours() / 24))
		price, periodDays := current.MonthlyPrice, monthlyPeriodDays
		if sub.SubscriptionType == creditledgerdomain.SubscriptionTypeYearly {
			price, periodDays = current.YearlyPrice.Decimal, yearlyPeriodDays
		}
		remainingValue = price.
			Mul(decimal.NewFromInt(int64(remainingDays))).
			Div(decimal.NewFromInt(int64(periodDays))).
			Round(2)
		remainingValue = decimal.Min(remainingValue, price)
	}

	targetPrice := target.MonthlyPrice
	if targetType == creditledgerdomain.SubscriptionTypeYearly {
		targetPrice = target.YearlyPrice.Decimal
	}

	return &domain.UpgradeQuote{
		OrderID:              newOrderID(),
		UserID:               sub.UserID,
		CurrentTier:          sub.Tier,
		CurrentType:          sub.SubscriptionType,
		TargetTier:           target.TierName,
		TargetType:           targetType,
		TargetPrice:          targetPrice,
		RemainingDays:        remainingDays,
		RemainingValue:       remainingValue,
		FinalPrice:           decimal.Max(targetPrice.Sub(remainingValue), decimal.Zero).Round(2),
		TargetMonthlyCredits: target.MonthlyCredits,
		QuotedAt:             now,
	}, nil
}

func newOrderID() string {
	return orderIDPrefix + ulid.Make().String()
}
