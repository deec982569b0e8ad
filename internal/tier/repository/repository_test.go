package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditledger/internal/testutil/dbtest"
	"github.com/smallbiznis/creditledger/internal/tier/domain"
	"github.com/stretchr/testify/require"
)

func TestUpsertAndList(t *testing.T) {
	db := dbtest.Open(t)
	node, _ := snowflake.NewNode(1)
	r := Provide()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	pro := &domain.Tier{
		ID:             node.Generate(),
		TierName:       "pro",
		DisplayName:    "Pro",
		MonthlyCredits: decimal.NewFromInt(1000),
		MonthlyPrice:   decimal.RequireFromString("19.99"),
		YearlyPrice:    decimal.NewNullDecimal(decimal.RequireFromString("199.90")),
		Features:       domain.Features{APIAccess: true, MaxConcurrentTasks: 4},
		Enabled:        true,
		SortOrder:      2,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	free := &domain.Tier{
		ID:             node.Generate(),
		TierName:       "free",
		DisplayName:    "Free",
		MonthlyCredits: decimal.NewFromInt(500),
		MonthlyPrice:   decimal.Zero,
		Enabled:        true,
		SortOrder:      1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, r.Upsert(ctx, db, pro))
	require.NoError(t, r.Upsert(ctx, db, free))

	got, err := r.FindByName(ctx, db, "pro")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.MonthlyPrice.Equal(decimal.RequireFromString("19.99")))
	require.True(t, got.HasYearlyPlan())
	require.False(t, got.YearlyDiscount.Valid)
	require.True(t, got.Features.APIAccess)
	require.Equal(t, 4, got.Features.MaxConcurrentTasks)

	updated := *pro
	updated.ID = node.Generate()
	updated.MonthlyCredits = decimal.NewFromInt(1500)
	require.NoError(t, r.Upsert(ctx, db, &updated))

	got, err = r.FindByName(ctx, db, "pro")
	require.NoError(t, err)
	require.Equal(t, pro.ID, got.ID)
	require.True(t, got.MonthlyCredits.Equal(decimal.NewFromInt(1500)))

	affected, err := r.SetEnabled(ctx, db, "pro", false)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	enabled, err := r.List(ctx, db, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	require.Equal(t, "free", enabled[0].TierName)

	all, err := r.List(ctx, db, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "free", all[0].TierName)

	missing, err := r.FindByName(ctx, db, "enterprise")
	require.NoError(t, err)
	require.Nil(t, missing)

	affected, err = r.SetEnabled(ctx, db, "enterprise", true)
	require.NoError(t, err)
	require.Zero(t, affected)
}

func TestUpsertWritesDisabledFlag(t *testing.T) {
	db := dbtest.Open(t)
	node, _ := snowflake.NewNode(1)
	r := Provide()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	basic := &domain.Tier{
		ID:             node.Generate(),
		TierName:       "basic",
		DisplayName:    "Basic",
		MonthlyCredits: decimal.NewFromInt(2000),
		MonthlyPrice:   decimal.RequireFromString("9.99"),
		Enabled:        false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, r.Upsert(ctx, db, basic))

	got, err := r.FindByName(ctx, db, "basic")
	require.NoError(t, err)
	require.False(t, got.Enabled)

	basic.Enabled = true
	require.NoError(t, r.Upsert(ctx, db, basic))
	got, err = r.FindByName(ctx, db, "basic")
	require.NoError(t, err)
	require.True(t, got.Enabled)

	basic.Enabled = false
	require.NoError(t, r.Upsert(ctx, db, basic))
	got, err = r.FindByName(ctx, db, "basic")
	require.NoError(t, err)
	require.False(t, got.Enabled)

	enabled, err := r.List(ctx, db, true)
	require.NoError(t, err)
	require.Empty(t, enabled)
}
