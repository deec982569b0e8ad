// Package credittest wires the credit services over a throwaway sqlite
// database with a fake clock.
package credittest

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/creditledger/internal/audit/domain"
	auditrepository "github.com/smallbiznis/creditledger/internal/audit/repository"
	auditservice "github.com/smallbiznis/creditledger/internal/audit/service"
	billingcycleservice "github.com/smallbiznis/creditledger/internal/billingcycle/service"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/config"
	creditdomain "github.com/smallbiznis/creditledger/internal/credit/domain"
	creditservice "github.com/smallbiznis/creditledger/internal/credit/service"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	creditledgerrepository "github.com/smallbiznis/creditledger/internal/creditledger/repository"
	creditpackagedomain "github.com/smallbiznis/creditledger/internal/creditpackage/domain"
	creditpackagerepository "github.com/smallbiznis/creditledger/internal/creditpackage/repository"
	creditpackageservice "github.com/smallbiznis/creditledger/internal/creditpackage/service"
	creditratedomain "github.com/smallbiznis/creditledger/internal/creditrate/domain"
	creditraterepository "github.com/smallbiznis/creditledger/internal/creditrate/repository"
	creditrateservice "github.com/smallbiznis/creditledger/internal/creditrate/service"
	"github.com/smallbiznis/creditledger/internal/testutil/dbtest"
	tierdomain "github.com/smallbiznis/creditledger/internal/tier/domain"
	tierrepository "github.com/smallbiznis/creditledger/internal/tier/repository"
	tierservice "github.com/smallbiznis/creditledger/internal/tier/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Start is the fake clock's initial instant.
var Start = time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

type Stack struct {
	DB       *gorm.DB
	Clock    *clock.FakeClock
	Node     *snowflake.Node
	Config   *config.CreditConfigHolder
	Ledger   creditledgerdomain.Repository
	Tiers    tierdomain.Service
	Rates    creditratedomain.Service
	Credits  creditdomain.Service
	Packages creditpackagedomain.Service
	Audit    auditdomain.Service
}

// New builds the stack with tiers free (500), pro (1000, yearly available)
// and enterprise (5000). The default tier is free.
func New(t *testing.T) *Stack {
	t.Helper()

	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(Start)
	log := zap.NewNop()
	holder := config.NewStaticCreditConfigHolder(config.DefaultCreditConfig())

	tiers := tierservice.NewService(tierservice.Params{
		DB: db, Log: log, GenID: node, Repo: tierrepository.Provide(), Clock: clk, Config: holder,
	})
	rates := creditrateservice.NewService(creditrateservice.Params{
		DB: db, Log: log, GenID: node, Repo: creditraterepository.Provide(), Clock: clk, Config: holder,
	})
	ledger := creditledgerrepository.Provide()
	credits := creditservice.NewService(creditservice.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Ledger: ledger,
		Tiers:  tiers,
		Cycles: billingcycleservice.NewManager(),
		Rates:  rates,
		Clock:  clk,
		Config: holder,
	})
	audit := auditservice.NewService(auditservice.Params{
		DB: db, Log: log, GenID: node, Repo: auditrepository.Provide(), Clock: clk,
	})
	packages := creditpackageservice.NewService(creditpackageservice.Params{
		DB: db, Log: log, GenID: node, Repo: creditpackagerepository.Provide(), Credits: credits, Clock: clk, Audit: audit,
	})

	s := &Stack{
		DB:       db,
		Clock:    clk,
		Node:     node,
		Config:   holder,
		Ledger:   ledger,
		Tiers:    tiers,
		Rates:    rates,
		Credits:  credits,
		Packages: packages,
		Audit:    audit,
	}
	s.SeedTier(t, "free", "500", "0", "")
	s.SeedTier(t, "pro", "1000", "20", "200")
	s.SeedTier(t, "enterprise", "5000", "100", "")
	return s
}

func (s *Stack) SeedTier(t *testing.T, name, credits, monthly, yearly string) {
	t.Helper()
	req := tierdomain.UpsertRequest{
		TierName:       name,
		DisplayName:    name,
		MonthlyCredits: decimal.RequireFromString(credits),
		MonthlyPrice:   decimal.RequireFromString(monthly),
	}
	if yearly != "" {
		y := decimal.RequireFromString(yearly)
		req.YearlyPrice = &y
	}
	_, err := s.Tiers.UpsertTier(context.Background(), req)
	require.NoError(t, err)
}

func (s *Stack) Subscription(t *testing.T, userID int64) *creditledgerdomain.Subscription {
	t.Helper()
	sub, err := s.Ledger.FindSubscriptionByUserID(context.Background(), s.DB, userID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	return sub
}

func (s *Stack) Transactions(t *testing.T, userID int64) []creditledgerdomain.Transaction {
	t.Helper()
	rows, err := s.Ledger.ListAllTransactions(context.Background(), s.DB, userID)
	require.NoError(t, err)
	return rows
}

func RequireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got)
}
