package repository

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditledger/internal/creditledger/domain"
	"github.com/smallbiznis/creditledger/internal/testutil/dbtest"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
	"github.com/stretchr/testify/require"
)

func newSubscription(node *snowflake.Node, userID int64, start time.Time) *domain.Subscription {
	monthly := decimal.NewFromInt(1000)
	return &domain.Subscription{
		ID:                    node.Generate(),
		UserID:                userID,
		Tier:                  "pro",
		SubscriptionType:      domain.SubscriptionTypeMonthly,
		MonthlyCredits:        monthly,
		CurrentCredits:        monthly,
		UsedCredits:           decimal.Zero,
		PurchasedCredits:      decimal.Zero,
		SubscriptionStartDate: start,
		BillingCycleStart:     start,
		BillingCycleEnd:       start.AddDate(0, 1, 0),
		Status:                domain.SubscriptionStatusActive,
		AutoRenew:             true,
		Version:               1,
		CreatedAt:             start,
		UpdatedAt:             start,
	}
}

func ref(s string) *string { return &s }

func TestSubscriptionRoundTripAndVersionCheck(t *testing.T) {
	db := dbtest.Open(t)
	node, _ := snowflake.NewNode(1)
	r := Provide()
	ctx := context.Background()
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	sub := newSubscription(node, 42, start)
	require.NoError(t, r.InsertSubscription(ctx, db, sub))
	require.ErrorIs(t, r.InsertSubscription(ctx, db, newSubscription(node, 42, start)), domain.ErrSubscriptionExists)

	got, err := r.FindSubscriptionByUserIDForUpdate(ctx, db, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.MonthlyCredits.Equal(decimal.NewFromInt(1000)))
	require.True(t, got.BillingCycleEnd.Equal(start.AddDate(0, 1, 0)))
	require.Nil(t, got.NextGrantDate)

	got.UsedCredits = decimal.NewFromInt(300)
	got.CurrentCredits = got.Balance()
	require.NoError(t, r.UpdateSubscription(ctx, db, got, 1))
	require.Equal(t, int64(2), got.Version)

	stale := *got
	stale.UsedCredits = decimal.NewFromInt(400)
	err = r.UpdateSubscription(ctx, db, &stale, 1)
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	reloaded, err := r.FindSubscriptionByUserID(ctx, db, 42)
	require.NoError(t, err)
	require.True(t, reloaded.CurrentCredits.Equal(decimal.NewFromInt(700)))

	missing, err := r.FindSubscriptionByUserID(ctx, db, 7)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestSecondWriterLosesVersionRace(t *testing.T) {
	db := dbtest.Open(t)
	node, _ := snowflake.NewNode(1)
	r := Provide()
	ctx := context.Background()
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.InsertSubscription(ctx, db, newSubscription(node, 77, start)))

	first, err := r.FindSubscriptionByUserID(ctx, db, 77)
	require.NoError(t, err)
	second, err := r.FindSubscriptionByUserID(ctx, db, 77)
	require.NoError(t, err)
	require.Equal(t, first.Version, second.Version)
	readVersion := first.Version

	first.UsedCredits = first.UsedCredits.Add(decimal.NewFromInt(800))
	first.CurrentCredits = first.Balance()
	require.NoError(t, r.UpdateSubscription(ctx, db, first, readVersion))

	second.UsedCredits = second.UsedCredits.Add(decimal.NewFromInt(500))
	second.CurrentCredits = second.Balance()
	require.ErrorIs(t, r.UpdateSubscription(ctx, db, second, readVersion), domain.ErrVersionConflict)
	require.Equal(t, readVersion, second.Version)

	fresh, err := r.FindSubscriptionByUserID(ctx, db, 77)
	require.NoError(t, err)
	require.Equal(t, readVersion+1, fresh.Version)
	require.True(t, fresh.Balance().Equal(decimal.NewFromInt(200)), "balance %s", fresh.Balance())
	require.True(t, fresh.Balance().LessThan(decimal.NewFromInt(500)))
}

func TestAppendTransactionRejectsDuplicateReference(t *testing.T) {
	db := dbtest.Open(t)
	node, _ := snowflake.NewNode(1)
	r := Provide()
	ctx := context.Background()
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	row := func(refID *string) *domain.Transaction {
		return &domain.Transaction{
			ID:              node.Generate(),
			UserID:          42,
			SubscriptionID:  1,
			TransactionType: domain.TransactionTypeUsage,
			Credits:         decimal.NewFromInt(-10),
			BalanceBefore:   decimal.NewFromInt(100),
			BalanceAfter:    decimal.NewFromInt(90),
			ReferenceID:     refID,
			ReferenceType:   ref(domain.ReferenceTypeLLMUsage),
			CreatedAt:       now,
		}
	}

	require.NoError(t, r.AppendTransaction(ctx, db, row(ref("req-1"))))
	err := r.AppendTransaction(ctx, db, row(ref("req-1")))
	require.True(t, errors.Is(err, domain.ErrDuplicateReference), "got %v", err)

	// Rows without a reference never collide.
	require.NoError(t, r.AppendTransaction(ctx, db, row(nil)))
	require.NoError(t, r.AppendTransaction(ctx, db, row(nil)))

	found, err := r.FindTransactionByReference(ctx, db, 42, "req-1", domain.TransactionTypeUsage)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.True(t, found.Credits.Equal(decimal.NewFromInt(-10)))

	all, err := r.ListAllTransactions(ctx, db, 42)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestLedgerRowsAreAppendOnly(t *testing.T) {
	db := dbtest.Open(t)
	node, _ := snowflake.NewNode(1)
	r := Provide()
	ctx := context.Background()

	require.NoError(t, r.AppendTransaction(ctx, db, &domain.Transaction{
		ID:              node.Generate(),
		UserID:          1,
		SubscriptionID:  1,
		TransactionType: domain.TransactionTypeBonus,
		Credits:         decimal.NewFromInt(5),
		BalanceBefore:   decimal.Zero,
		BalanceAfter:    decimal.NewFromInt(5),
		CreatedAt:       time.Now().UTC(),
	}))

	require.Error(t, db.Exec(`UPDATE credit_transactions SET credits = '50'`).Error)
	require.Error(t, db.Exec(`DELETE FROM credit_transactions`).Error)
}

func TestListTransactionsPaginates(t *testing.T) {
	db := dbtest.Open(t)
	node, _ := snowflake.NewNode(1)
	r := Provide()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	balance := decimal.Zero
	for i := 0; i < 5; i++ {
		next := balance.Add(decimal.NewFromInt(10))
		require.NoError(t, r.AppendTransaction(ctx, db, &domain.Transaction{
			ID:              node.Generate(),
			UserID:          9,
			SubscriptionID:  1,
			TransactionType: domain.TransactionTypePurchase,
			Credits:         decimal.NewFromInt(10),
			BalanceBefore:   balance,
			BalanceAfter:    next,
			ReferenceID:     ref("pay-" + strconv.Itoa(i)),
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}))
		balance = next
	}

	first, err := r.ListTransactions(ctx, db, domain.ListFilter{UserID: 9, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, "pay-0", *first[0].ReferenceID)

	last := first[len(first)-1]
	cursor := &pagination.Cursor{ID: last.ID.String(), CreatedAt: last.CreatedAt.UTC().Format(time.RFC3339Nano)}
	second, err := r.ListTransactions(ctx, db, domain.ListFilter{UserID: 9, Limit: 10, After: cursor})
	require.NoError(t, err)
	require.Len(t, second, 3)
	require.Equal(t, "pay-2", *second[0].ReferenceID)

	desc, err := r.ListTransactions(ctx, db, domain.ListFilter{UserID: 9, Limit: 1, Descending: true})
	require.NoError(t, err)
	require.Equal(t, "pay-4", *desc[0].ReferenceID)

	_, err = r.ListTransactions(ctx, db, domain.ListFilter{UserID: 9, After: &pagination.Cursor{ID: "x", CreatedAt: "y"}})
	require.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}

func TestListDueSubscriptions(t *testing.T) {
	db := dbtest.Open(t)
	node, _ := snowflake.NewNode(1)
	r := Provide()
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	due := newSubscription(node, 1, start)
	require.NoError(t, r.InsertSubscription(ctx, db, due))

	notDue := newSubscription(node, 2, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, r.InsertSubscription(ctx, db, notDue))

	expired := newSubscription(node, 3, start)
	expired.Status = domain.SubscriptionStatusExpired
	require.NoError(t, r.InsertSubscription(ctx, db, expired))

	grant := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	yearly := newSubscription(node, 4, start)
	yearly.SubscriptionType = domain.SubscriptionTypeYearly
	yearly.BillingCycleEnd = start.AddDate(1, 0, 0)
	yearly.NextGrantDate = &grant
	require.NoError(t, r.InsertSubscription(ctx, db, yearly))

	renewals, err := r.ListRenewalDue(ctx, db, now, 10)
	require.NoError(t, err)
	require.Len(t, renewals, 1)
	require.Equal(t, int64(1), renewals[0].UserID)

	grants, err := r.ListYearlyGrantDue(ctx, db, now, 10)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.Equal(t, int64(4), grants[0].UserID)
	require.NotNil(t, grants[0].NextGrantDate)
	require.True(t, grants[0].NextGrantDate.Equal(grant))
}
