package service

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditledger/internal/billingcycle/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	tierdomain "github.com/smallbiznis/creditledger/internal/tier/domain"
)

const (
	monthStep = 1
	yearStep  = 12
)

type Manager struct{}

func NewManager() domain.Manager {
	return &Manager{}
}

func (m *Manager) IsCycleExpired(sub creditledgerdomain.Subscription, now time.Time) bool {
	return !now.Before(sub.BillingCycleEnd)
}

// IsGrantDue reports a pending in-term monthly grant of an active yearly subscription.
func (m *Manager) IsGrantDue(sub creditledgerdomain.Subscription, now time.Time) bool {
	if sub.SubscriptionType != creditledgerdomain.SubscriptionTypeYearly || !sub.IsActive() {
		return false
	}
	if sub.NextGrantDate == nil {
		return false
	}
	return !now.Before(*sub.NextGrantDate) && now.Before(sub.BillingCycleEnd)
}

func (m *Manager) InitialCycle(subscriptionType creditledgerdomain.SubscriptionType, start time.Time) (domain.CycleWindow, *time.Time, error) {
	start = start.UTC()
	switch subscriptionType {
	case creditledgerdomain.SubscriptionTypeMonthly:
		return domain.CycleWindow{Start: start, End: addMonths(start, monthStep)}, nil, nil
	case creditledgerdomain.SubscriptionTypeYearly:
		next := addMonths(start, monthStep)
		return domain.CycleWindow{Start: start, End: addMonths(start, yearStep)}, &next, nil
	default:
		return domain.CycleWindow{}, nil, domain.ErrInvalidSubscriptionType
	}
}

// AdvanceCycle computes the next cycle for sub. Periods that elapsed entirely
// while nothing touched the subscription collapse into a single descriptor.
func (m *Manager) AdvanceCycle(sub creditledgerdomain.Subscription, tier *tierdomain.Tier, now time.Time) (domain.CycleDescriptor, error) {
	expired := m.IsCycleExpired(sub, now)
	if !expired && !m.IsGrantDue(sub, now) {
		return domain.CycleDescriptor{}, domain.ErrCycleNotDue
	}
	if tier == nil || !tier.Enabled {
		return domain.CycleDescriptor{}, domain.ErrTierUnavailable
	}
	if !sub.BillingCycleStart.Before(sub.BillingCycleEnd) {
		return domain.CycleDescriptor{}, domain.ErrInvalidCyclePeriod
	}

	anchor := sub.SubscriptionStartDate.UTC()
	if anchor.IsZero() {
		anchor = sub.BillingCycleStart.UTC()
	}
	expiredCredits := decimal.Max(sub.MonthlyRemaining(), decimal.Zero)

	switch sub.SubscriptionType {
	case creditledgerdomain.SubscriptionTypeMonthly:
		window, skipped := rollForward(anchor, sub.BillingCycleEnd.UTC(), now, monthStep)
		return domain.CycleDescriptor{
			Kind:           domain.CycleKindRenewal,
			Window:         window,
			GrantStart:     window.Start,
			TierName:       tier.TierName,
			MonthlyCredits: tier.MonthlyCredits,
			ExpiredCredits: expiredCredits,
			SkippedPeriods: skipped,
		}, nil

	case creditledgerdomain.SubscriptionTypeYearly:
		if expired {
			window, skipped := rollForward(anchor, sub.BillingCycleEnd.UTC(), now, yearStep)
			grantStart := window.Start
			if now.After(grantStart) {
				grantStart = lastBoundary(anchor, now, monthStep)
			}
			return domain.CycleDescriptor{
				Kind:           domain.CycleKindRenewal,
				Window:         window,
				GrantStart:     grantStart,
				NextGrantDate:  nextGrant(anchor, now, window.End),
				TierName:       tier.TierName,
				MonthlyCredits: tier.MonthlyCredits,
				ExpiredCredits: expiredCredits,
				SkippedPeriods: skipped,
			}, nil
		}

		grantStart := lastBoundary(anchor, now, monthStep)
		skipped := monthsBetween(*sub.NextGrantDate, grantStart)
		if skipped < 0 {
			skipped = 0
		}
		return domain.CycleDescriptor{
			Kind:           domain.CycleKindGrant,
			Window:         domain.CycleWindow{Start: sub.BillingCycleStart.UTC(), End: sub.BillingCycleEnd.UTC()},
			GrantStart:     grantStart,
			NextGrantDate:  nextGrant(anchor, now, sub.BillingCycleEnd.UTC()),
			TierName:       tier.TierName,
			MonthlyCredits: tier.MonthlyCredits,
			ExpiredCredits: expiredCredits,
			SkippedPeriods: skipped,
		}, nil

	default:
		return domain.CycleDescriptor{}, domain.ErrInvalidSubscriptionType
	}
}

// rollForward starts a period at oldEnd and keeps stepping until the period
// contains now.
func rollForward(anchor, oldEnd, now time.Time, step int) (domain.CycleWindow, int) {
	start := oldEnd
	end := nextBoundary(anchor, start, step)
	skipped := 0
	for !now.Before(end) {
		start = end
		end = nextBoundary(anchor, start, step)
		skipped++
	}
	return domain.CycleWindow{Start: start, End: end}, skipped
}

// nextGrant is the first monthly boundary after now, or nil once the term
// has no further grants.
func nextGrant(anchor, now, termEnd time.Time) *time.Time {
	next := nextBoundary(anchor, now, monthStep)
	if !next.Before(termEnd) {
		return nil
	}
	return &next
}
