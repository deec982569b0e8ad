package seed

import (
	"testing"

	"github.com/shopspring/decimal"
	creditpackagedomain "github.com/smallbiznis/creditledger/internal/creditpackage/domain"
	"github.com/smallbiznis/creditledger/internal/testutil/dbtest"
	tierdomain "github.com/smallbiznis/creditledger/internal/tier/domain"
	"github.com/stretchr/testify/require"
)

func TestEnsureCatalogIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)

	require.NoError(t, EnsureCatalog(db))
	require.NoError(t, db.Model(&tierdomain.Tier{}).Where("tier_name = ?", "free").
		Update("monthly_credits", decimal.NewFromInt(750)).Error)
	require.NoError(t, EnsureCatalog(db))

	var tiers []tierdomain.Tier
	require.NoError(t, db.Order("sort_order ASC").Find(&tiers).Error)
	require.Len(t, tiers, len(defaultTiers))
	require.Equal(t, "free", tiers[0].TierName)
	require.True(t, tiers[0].MonthlyCredits.Equal(decimal.NewFromInt(750)), "existing tier must not be overwritten")
	require.False(t, tiers[0].HasYearlyPlan())
	require.True(t, tiers[2].HasYearlyPlan())

	var packages []creditpackagedomain.Package
	require.NoError(t, db.Find(&packages).Error)
	require.Len(t, packages, len(defaultPackages))
}

func TestYearlyDiscount(t *testing.T) {
	got := yearlyDiscount(decimal.RequireFromString("10"), decimal.RequireFromString("96"))
	require.True(t, got.Equal(decimal.NewFromInt(20)), "got %s", got)
	require.True(t, yearlyDiscount(decimal.Zero, decimal.Zero).IsZero())
}
