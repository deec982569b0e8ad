package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditledger/internal/credit/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	"github.com/stretchr/testify/require"
)

func TestChargeUsageUsesDefaultRate(t *testing.T) {
	h := newHarness(t, "pro")
	ctx := context.Background()

	res, err := h.svc.ChargeUsage(ctx, domain.UsageRequest{
		UserID:       20,
		ModelID:      "some-model",
		InputTokens:  1000,
		OutputTokens: 1000,
		ReferenceID:  "llm-1",
	})
	require.NoError(t, err)
	requireDecimal(t, "2", res.Credits)
	require.Equal(t, "default", res.RateSource)
	require.NotNil(t, res.Transaction)
	requireDecimal(t, "-2", res.Transaction.Credits)
	require.Equal(t, creditledgerdomain.ReferenceTypeLLMUsage, *res.Transaction.ReferenceType)
	require.Equal(t, "some-model", res.Transaction.ExtraData["model_id"])

	_, err = h.svc.ChargeUsage(ctx, domain.UsageRequest{
		UserID: 20, ModelID: "some-model", InputTokens: 1000, OutputTokens: 1000, ReferenceID: "llm-1",
	})
	require.ErrorIs(t, err, domain.ErrDuplicateReference)

	res, err = h.svc.ChargeUsage(ctx, domain.UsageRequest{UserID: 20, ModelID: "some-model", ReferenceID: "llm-empty"})
	require.NoError(t, err)
	require.Nil(t, res.Transaction)
	requireDecimal(t, "998", h.subscription(t, 20).CurrentCredits)

	_, err = h.svc.ChargeUsage(ctx, domain.UsageRequest{UserID: 20, ModelID: "m", InputTokens: -1, ReferenceID: "x"})
	require.ErrorIs(t, err, domain.ErrInvalidTokenCount)
	_, err = h.svc.ChargeUsage(ctx, domain.UsageRequest{UserID: 20, ModelID: "m", InputTokens: 1})
	require.ErrorIs(t, err, domain.ErrInvalidReference)
}

func TestCheckCredits(t *testing.T) {
	h := newHarness(t, "pro")
	ctx := context.Background()

	res, err := h.svc.CheckCredits(ctx, 21, decimal.NewFromInt(900))
	require.NoError(t, err)
	require.True(t, res.Allowed)
	requireDecimal(t, "1000", res.Balance)

	res, err = h.svc.CheckCredits(ctx, 21, decimal.NewFromInt(1200))
	require.NoError(t, err)
	require.False(t, res.Allowed)
	requireDecimal(t, "200", res.Shortfall)
	require.Equal(t, "insufficient_credits", res.Reason)

	_, err = h.svc.CheckCredits(ctx, 21, decimal.NewFromInt(-1))
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestCheckCreditsProjectsPendingRenewal(t *testing.T) {
	h := newHarness(t, "pro")
	ctx := context.Background()

	_, err := h.svc.ApplyTransaction(ctx, usage(22, "-1000", "drain"))
	require.NoError(t, err)

	h.clock.Set(time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC))
	res, err := h.svc.CheckCredits(ctx, 22, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.True(t, res.Allowed)
	requireDecimal(t, "1000", res.Balance)

	// The projection writes nothing.
	requireDecimal(t, "0", h.subscription(t, 22).CurrentCredits)
	require.Len(t, h.rows(t, 22), 2)
}
