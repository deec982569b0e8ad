package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	billingcycledomain "github.com/smallbiznis/creditledger/internal/billingcycle/domain"
	"github.com/smallbiznis/creditledger/internal/credit/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	"gorm.io/gorm"
)

const (
	triggerLazy      = "lazy"
	triggerScheduler = "scheduler"
	triggerEnroll    = "enrollment"
	triggerUpgrade   = "upgrade"
)

// settle brings the locked subscription up to date with m.now: it closes
// an elapsed cycle (renewing, expiring or cancelling it) and pays out a due
// yearly grant.
func (s *Service) settle(m *mutation, trigger string) error {
	sub := m.sub

	switch sub.Status {
	case creditledgerdomain.SubscriptionStatusActive:
		if s.cycles.IsCycleExpired(*sub, m.now) {
			switch {
			case sub.CancelledAt != nil:
				m.transition(creditledgerdomain.SubscriptionStatusCancelled)
			case !sub.AutoRenew:
				m.transition(creditledgerdomain.SubscriptionStatusExpired)
			default:
				err := s.advance(m, trigger)
				if errors.Is(err, domain.ErrTierUnavailable) {
					m.transition(creditledgerdomain.SubscriptionStatusExpired)
					m.fail = domain.ErrTierUnavailable
					return nil
				}
				return err
			}
			return nil
		}
		if s.cycles.IsGrantDue(*sub, m.now) {
			err := s.advance(m, trigger)
			if errors.Is(err, domain.ErrTierUnavailable) {
				// The paid term stays active; the grant is retried on the next pass.
				if trigger == triggerScheduler {
					m.fail = err
				}
				return nil
			}
			return err
		}

	case creditledgerdomain.SubscriptionStatusExpired:
		if sub.AutoRenew && sub.CancelledAt == nil && s.cycles.IsCycleExpired(*sub, m.now) {
			err := s.advance(m, trigger)
			if errors.Is(err, domain.ErrTierUnavailable) {
				return nil
			}
			return err
		}
	}
	return nil
}

// advance applies the next cycle descriptor: the unused allowance expires,
// the allowance is re-granted at the tier's current size and the window moves.
func (s *Service) advance(m *mutation, trigger string) error {
	desc, err := s.cycles.AdvanceCycle(*m.sub, m.tier, m.now)
	if err != nil {
		return err
	}

	description := "Monthly credit grant"
	if desc.Kind == billingcycledomain.CycleKindRenewal {
		description = "Billing cycle renewal"
	}
	if _, err := s.rollAllowance(m, desc.MonthlyCredits, entry{
		referenceID:   desc.GrantReference(),
		referenceType: creditledgerdomain.ReferenceTypeBillingCycle,
		description:   description,
		extra: map[string]any{
			"cycle_kind":      string(desc.Kind),
			"tier":            desc.TierName,
			"trigger":         trigger,
			"skipped_periods": desc.SkippedPeriods,
		},
	}); err != nil {
		return err
	}

	sub := m.sub
	if desc.Kind == billingcycledomain.CycleKindRenewal {
		sub.BillingCycleStart = desc.Window.Start
		sub.BillingCycleEnd = desc.Window.End
	}
	sub.NextGrantDate = desc.NextGrantDate
	sub.Tier = desc.TierName
	m.transition(creditledgerdomain.SubscriptionStatusActive)

	m.renewals = append(m.renewals, renewal{
		subscriptionType: sub.SubscriptionType,
		kind:             desc.Kind,
		trigger:          trigger,
	})
	return nil
}

// rollAllowance expires what is left of the current monthly allowance and
// grants a fresh one of size grant. Both rows share grantEntry's reference.
func (s *Service) rollAllowance(m *mutation, grant decimal.Decimal, grantEntry entry) (*creditledgerdomain.Transaction, error) {
	expired := decimal.Max(m.sub.MonthlyRemaining(), decimal.Zero)
	if expired.IsPositive() {
		if _, err := s.post(m, entry{
			txnType:       creditledgerdomain.TransactionTypeAdjustment,
			amount:        expired.Neg(),
			referenceID:   grantEntry.referenceID,
			referenceType: creditledgerdomain.ReferenceTypeCycleExpiry,
			description:   "Unused monthly credits expired",
		}); err != nil {
			return nil, err
		}
	}

	// The expiry row consumed the allowance, so the reset leaves the balance unchanged.
	m.sub.MonthlyCredits = decimal.Zero
	m.sub.UsedCredits = decimal.Zero

	grantEntry.txnType = creditledgerdomain.TransactionTypeMonthlyGrant
	grantEntry.amount = grant
	row, err := s.post(m, grantEntry)
	if err != nil {
		return nil, err
	}
	m.expired = m.expired.Add(expired)
	m.granted = m.granted.Add(grant)
	return row, nil
}

// AdvanceCycle settles one subscription on behalf of the scheduler. When the
// tier became unavailable the expiry is committed and returned together with
// ErrTierUnavailable.
func (s *Service) AdvanceCycle(ctx context.Context, userID int64) (*domain.AdvanceResult, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidUserID
	}
	m, err := s.withSubscription(ctx, userID, false, func(_ context.Context, _ *gorm.DB, m *mutation) error {
		return s.settle(m, triggerScheduler)
	})
	if m == nil {
		return nil, err
	}
	return advanceResult(m), err
}

func advanceResult(m *mutation) *domain.AdvanceResult {
	res := &domain.AdvanceResult{
		UserID:     m.sub.UserID,
		Advanced:   len(m.renewals) > 0,
		FromStatus: m.fromStatus,
		Status:     m.sub.Status,
		Granted:    m.granted,
		Expired:    m.expired,
		Window: billingcycledomain.CycleWindow{
			Start: m.sub.BillingCycleStart,
			End:   m.sub.BillingCycleEnd,
		},
	}
	if n := len(m.renewals); n > 0 {
		res.Kind = m.renewals[n-1].kind
	}
	return res
}
