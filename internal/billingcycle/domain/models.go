package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CycleWindow is a half-open billing interval [Start, End).
type CycleWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w CycleWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

type CycleKind string

const (
	// CycleKindRenewal opens a new monthly cycle or a new yearly term.
	CycleKindRenewal CycleKind = "renewal"
	// CycleKindGrant tops up the monthly allowance inside a yearly term.
	CycleKindGrant CycleKind = "grant"
)

// CycleDescriptor describes the state a subscription moves to when its cycle
// advances. It carries no side effects; the caller persists it together with
// the matching ledger rows.
type CycleDescriptor struct {
	Kind   CycleKind   `json:"kind"`
	Window CycleWindow `json:"window"`
	// GrantStart is the instant the new allowance becomes valid. It equals
	// Window.Start for renewals and the grant boundary for yearly top-ups.
	GrantStart     time.Time       `json:"grant_start"`
	NextGrantDate  *time.Time      `json:"next_grant_date,omitempty"`
	TierName       string          `json:"tier_name"`
	MonthlyCredits decimal.Decimal `json:"monthly_credits"`
	// ExpiredCredits is the unused allowance of the period being closed.
	ExpiredCredits decimal.Decimal `json:"expired_credits"`
	// SkippedPeriods counts whole periods that elapsed without activity.
	SkippedPeriods int `json:"skipped_periods"`
}

// GrantReference is the idempotency key of the grant ledger row.
func (d CycleDescriptor) GrantReference() string {
	return "cycle:" + d.GrantStart.UTC().Format(time.RFC3339)
}
