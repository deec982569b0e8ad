package migration

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	creditledgerrepository "github.com/smallbiznis/creditledger/internal/creditledger/repository"
	"github.com/smallbiznis/creditledger/internal/seed"
	tierdomain "github.com/smallbiznis/creditledger/internal/tier/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func TestMigrateSQLiteIsIdempotent(t *testing.T) {
	conn := openSQLite(t)

	require.NoError(t, Migrate(conn, "sqlite"))
	require.NoError(t, Migrate(conn, "sqlite"))

	for _, table := range []string{"subscription_tiers", "user_subscriptions", "credit_transactions", "model_credit_rates", "credit_packages"} {
		require.True(t, conn.Migrator().HasTable(table), table)
	}

	require.NoError(t, seed.EnsureCatalog(conn))
	var count int64
	require.NoError(t, conn.Model(&tierdomain.Tier{}).Count(&count).Error)
	require.EqualValues(t, 4, count)
}

func TestMigrateSQLiteGuardsLedgerRows(t *testing.T) {
	conn := openSQLite(t)
	require.NoError(t, Migrate(conn, "sqlite"))

	ledger := creditledgerrepository.Provide()
	ctx := context.Background()
	ref := "req-1"
	row := func(id int64) *creditledgerdomain.Transaction {
		return &creditledgerdomain.Transaction{
			ID:              snowflake.ID(1000 + id),
			UserID:          7,
			SubscriptionID:  1,
			TransactionType: creditledgerdomain.TransactionTypeUsage,
			Credits:         decimal.NewFromInt(-1),
			BalanceBefore:   decimal.NewFromInt(10),
			BalanceAfter:    decimal.NewFromInt(9),
			ReferenceID:     &ref,
			CreatedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}
	}

	require.NoError(t, ledger.AppendTransaction(ctx, conn, row(1)))
	require.ErrorIs(t, ledger.AppendTransaction(ctx, conn, row(2)), creditledgerdomain.ErrDuplicateReference)

	require.Error(t, conn.Exec(`UPDATE credit_transactions SET credits = '5'`).Error)
	require.Error(t, conn.Exec(`DELETE FROM credit_transactions`).Error)

	var count int64
	require.NoError(t, conn.Model(&creditledgerdomain.Transaction{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestMigrateRejectsUnknownDialect(t *testing.T) {
	require.Error(t, Migrate(openSQLite(t), "oracle"))
}

func TestMigrateRequiresConnection(t *testing.T) {
	require.Error(t, Migrate(nil, "sqlite"))
	require.Error(t, RunMigrations(nil))
}
