package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	creditpackagedomain "github.com/smallbiznis/creditledger/internal/creditpackage/domain"
	tierdomain "github.com/smallbiznis/creditledger/internal/tier/domain"
	"gorm.io/gorm"
)

type tierSeed struct {
	name        string
	display     string
	credits     string
	monthly     string
	yearly      string
	concurrency int
	priority    bool
	api         bool
}

var defaultTiers = []tierSeed{
	{name: "free", display: "Free", credits: "500", monthly: "0", concurrency: 1},
	{name: "basic", display: "Basic", credits: "2000", monthly: "9.99", yearly: "99.90", concurrency: 2, api: true},
	{name: "pro", display: "Pro", credits: "5000", monthly: "29.99", yearly: "299.90", concurrency: 5, priority: true, api: true},
	{name: "enterprise", display: "Enterprise", credits: "20000", monthly: "99.99", yearly: "999.90", concurrency: 20, priority: true, api: true},
}

type packageSeed struct {
	name        string
	credits     string
	bonus       string
	price       string
	description string
}

var defaultPackages = []packageSeed{
	{name: "starter", credits: "1000", bonus: "0", price: "4.99", description: "1,000 credits"},
	{name: "standard", credits: "5000", bonus: "500", price: "19.99", description: "5,000 credits plus 500 bonus"},
	{name: "bulk", credits: "20000", bonus: "4000", price: "69.99", description: "20,000 credits plus 4,000 bonus"},
}

// EnsureCatalog seeds the default tiers and credit packages. Rows that
// already exist are left as they are.
func EnsureCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, item := range defaultTiers {
			if _, err := ensureTierTx(ctx, tx, node, item, i); err != nil {
				return err
			}
		}
		for i, item := range defaultPackages {
			if _, err := ensurePackageTx(ctx, tx, node, item, i); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensureTierTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, item tierSeed, order int) (tierdomain.Tier, error) {
	var tier tierdomain.Tier
	err := tx.WithContext(ctx).Where("tier_name = ?", item.name).First(&tier).Error
	if err == nil {
		return tier, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return tier, err
	}

	now := time.Now().UTC()
	tier = tierdomain.Tier{
		ID:             node.Generate(),
		TierName:       item.name,
		DisplayName:    item.display,
		MonthlyCredits: decimal.RequireFromString(item.credits),
		MonthlyPrice:   decimal.RequireFromString(item.monthly),
		Features: tierdomain.Features{
			MaxConcurrentTasks: item.concurrency,
			PrioritySupport:    item.priority,
			APIAccess:          item.api,
		},
		Enabled:   true,
		SortOrder: order,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if item.yearly != "" {
		yearly := decimal.RequireFromString(item.yearly)
		tier.YearlyPrice = decimal.NewNullDecimal(yearly)
		tier.YearlyDiscount = decimal.NewNullDecimal(yearlyDiscount(tier.MonthlyPrice, yearly))
	}
	if err := tx.WithContext(ctx).Create(&tier).Error; err != nil {
		return tier, err
	}
	return tier, nil
}

func ensurePackageTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, item packageSeed, order int) (creditpackagedomain.Package, error) {
	var pkg creditpackagedomain.Package
	err := tx.WithContext(ctx).Where("package_name = ?", item.name).First(&pkg).Error
	if err == nil {
		return pkg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkg, err
	}

	now := time.Now().UTC()
	pkg = creditpackagedomain.Package{
		ID:           node.Generate(),
		PackageName:  item.name,
		Credits:      decimal.RequireFromString(item.credits),
		BonusCredits: decimal.RequireFromString(item.bonus),
		Price:        decimal.RequireFromString(item.price),
		Description:  item.description,
		Enabled:      true,
		SortOrder:    order,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(&pkg).Error; err != nil {
		return pkg, err
	}
	return pkg, nil
}

// yearlyDiscount is the percentage saved against twelve monthly payments.
func yearlyDiscount(monthly, yearly decimal.Decimal) decimal.Decimal {
	full := monthly.Mul(decimal.NewFromInt(12))
	if !full.IsPositive() {
		return decimal.Zero
	}
	return full.Sub(yearly).Div(full).Mul(decimal.NewFromInt(100)).Round(2)
}
