package service

import (
	"time"

	"github.com/shopspring/decimal"
	billingcycledomain "github.com/smallbiznis/creditledger/internal/billingcycle/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	tierdomain "github.com/smallbiznis/creditledger/internal/tier/domain"
)

type renewal struct {
	subscriptionType creditledgerdomain.SubscriptionType
	kind             billingcycledomain.CycleKind
	trigger          string
}

// mutation stages changes to one locked subscription. Nothing reaches the
// database until persist runs inside the same transaction.
type mutation struct {
	sub        *creditledgerdomain.Subscription
	tier       *tierdomain.Tier
	now        time.Time
	version    int64
	fromStatus creditledgerdomain.SubscriptionStatus

	dirty    bool
	rows     []creditledgerdomain.Transaction
	renewals []renewal
	granted  decimal.Decimal
	expired  decimal.Decimal

	result *creditledgerdomain.Transaction
	// fail is returned to the caller after the staged changes commit.
	fail error
}

func newMutation(sub *creditledgerdomain.Subscription, tier *tierdomain.Tier, now time.Time) *mutation {
	return &mutation{
		sub:        sub,
		tier:       tier,
		now:        now.UTC(),
		version:    sub.Version,
		fromStatus: sub.Status,
		granted:    decimal.Zero,
		expired:    decimal.Zero,
	}
}

func (m *mutation) transition(to creditledgerdomain.SubscriptionStatus) {
	if m.sub.Status == to {
		return
	}
	m.sub.Status = to
	m.dirty = true
}

// post applies e to the buckets and stages the matching ledger row.
func (s *Service) post(m *mutation, e entry) (*creditledgerdomain.Transaction, error) {
	before := m.sub.Balance()
	if err := applyDelta(m.sub, e.txnType, e.amount); err != nil {
		return nil, err
	}
	after := m.sub.Balance()
	m.sub.CurrentCredits = after

	row := creditledgerdomain.Transaction{
		ID:              s.genID.Generate(),
		UserID:          m.sub.UserID,
		SubscriptionID:  m.sub.ID,
		TransactionType: e.txnType,
		Credits:         e.amount,
		BalanceBefore:   before,
		BalanceAfter:    after,
		ReferenceID:     optionalString(e.referenceID),
		ReferenceType:   optionalString(e.referenceType),
		Description:     optionalString(e.description),
		ExtraData:       extraData(e.extra),
		CreatedAt:       m.now,
	}
	m.rows = append(m.rows, row)
	m.dirty = true
	return &row, nil
}
