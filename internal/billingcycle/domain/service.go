package domain

import (
	"errors"
	"time"

	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	tierdomain "github.com/smallbiznis/creditledger/internal/tier/domain"
)

// Manager owns billing calendar arithmetic. Implementations perform no I/O.
type Manager interface {
	IsCycleExpired(sub creditledgerdomain.Subscription, now time.Time) bool
	IsGrantDue(sub creditledgerdomain.Subscription, now time.Time) bool
	AdvanceCycle(sub creditledgerdomain.Subscription, tier *tierdomain.Tier, now time.Time) (CycleDescriptor, error)
	InitialCycle(subscriptionType creditledgerdomain.SubscriptionType, start time.Time) (CycleWindow, *time.Time, error)
}

var (
	ErrTierUnavailable         = errors.New("tier_unavailable")
	ErrCycleNotDue             = errors.New("cycle_not_due")
	ErrInvalidSubscriptionType = errors.New("invalid_subscription_type")
	ErrInvalidCyclePeriod      = errors.New("invalid_cycle_period")
)
