package testing

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/creditledger/internal/clock"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	"gorm.io/gorm"
)

var ErrNoPendingGrant = errors.New("subscription has no pending grant")

// TimeAccelerator moves a fake clock onto subscription boundaries so
// scheduler passes find work without waiting out a real cycle.
type TimeAccelerator struct {
	db    *gorm.DB
	clock *clock.FakeClock
}

func NewTimeAccelerator(db *gorm.DB, clk *clock.FakeClock) *TimeAccelerator {
	return &TimeAccelerator{db: db, clock: clk}
}

// AdvanceToCycleEnd jumps to the end of the user's billing cycle plus slack.
func (ta *TimeAccelerator) AdvanceToCycleEnd(ctx context.Context, userID int64, slack time.Duration) error {
	info, err := ta.GetCycleInfo(ctx, userID)
	if err != nil {
		return err
	}
	if info == nil {
		return gorm.ErrRecordNotFound
	}
	ta.clock.Set(info.CycleEnd.Add(slack))
	return nil
}

// AdvanceToNextGrant jumps to the next monthly grant of a yearly subscription.
func (ta *TimeAccelerator) AdvanceToNextGrant(ctx context.Context, userID int64) error {
	info, err := ta.GetCycleInfo(ctx, userID)
	if err != nil {
		return err
	}
	if info == nil {
		return gorm.ErrRecordNotFound
	}
	if info.NextGrantDate == nil {
		return ErrNoPendingGrant
	}
	ta.clock.Set(*info.NextGrantDate)
	return nil
}

// CycleInfo shows the current cycle of a subscription for debugging.
type CycleInfo struct {
	UserID        int64
	Status        creditledgerdomain.SubscriptionStatus
	CycleStart    time.Time
	CycleEnd      time.Time
	NextGrantDate *time.Time
	TimeUntilEnd  time.Duration
	RenewalDue    bool
}

func (ta *TimeAccelerator) GetCycleInfo(ctx context.Context, userID int64) (*CycleInfo, error) {
	var row struct {
		UserID            int64
		Status            creditledgerdomain.SubscriptionStatus
		BillingCycleStart time.Time
		BillingCycleEnd   time.Time
		NextGrantDate     *time.Time
	}
	err := ta.db.WithContext(ctx).Raw(
		`SELECT user_id, status, billing_cycle_start, billing_cycle_end, next_grant_date
		 FROM user_subscriptions
		 WHERE user_id = ?`,
		userID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.UserID == 0 {
		return nil, nil
	}

	now := ta.clock.Now()
	return &CycleInfo{
		UserID:        row.UserID,
		Status:        row.Status,
		CycleStart:    row.BillingCycleStart.UTC(),
		CycleEnd:      row.BillingCycleEnd.UTC(),
		NextGrantDate: row.NextGrantDate,
		TimeUntilEnd:  row.BillingCycleEnd.Sub(now),
		RenewalDue:    !now.Before(row.BillingCycleEnd) && row.Status == creditledgerdomain.SubscriptionStatusActive,
	}, nil
}
