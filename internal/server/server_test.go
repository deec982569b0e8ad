package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/creditledger/internal/audit/domain"
	"github.com/smallbiznis/creditledger/internal/config"
	creditdomain "github.com/smallbiznis/creditledger/internal/credit/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	"github.com/smallbiznis/creditledger/internal/ratelimit"
	"github.com/smallbiznis/creditledger/internal/testutil/credittest"
	tierdomain "github.com/smallbiznis/creditledger/internal/tier/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	stack  *credittest.Stack
	engine *gin.Engine
}

func newTestServer(t *testing.T, limiter *ratelimit.UsageLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stack := credittest.New(t)
	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	s := NewServer(ServerParams{
		Gin:          engine,
		Cfg:          config.Config{},
		Log:          zap.NewNop(),
		CreditSvc:    stack.Credits,
		TierSvc:      stack.Tiers,
		RateSvc:      stack.Rates,
		PackageSvc:   stack.Packages,
		AuditSvc:     stack.Audit,
		UsageLimiter: limiter,
	})
	s.RegisterAPIRoutes()
	s.RegisterAdminRoutes()

	return &testServer{stack: stack, engine: engine}
}

type apiResponse struct {
	Data     json.RawMessage `json:"data"`
	PageInfo json.RawMessage `json:"page_info"`
	Error    errorPayload    `json:"error"`
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	return ts.doWithHeaders(t, method, path, body, nil)
}

func (ts *testServer) doWithHeaders(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return out
}

func TestGetCreditsProvisionsDefaultTier(t *testing.T) {
	ts := newTestServer(t, nil)

	w, resp := ts.do(t, http.MethodGet, "/api/users/7/credits", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	info := decodeData[creditdomain.CreditsInfo](t, resp)
	require.Equal(t, int64(7), info.UserID)
	require.Equal(t, "free", info.Tier)
	require.Equal(t, creditledgerdomain.SubscriptionStatusActive, info.Status)
	credittest.RequireDecimal(t, "500", info.CurrentCredits)
}

func TestUserIDValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/api/users/abc/credits", "/api/users/0/credits", "/api/users/-4/credits"} {
		w, resp := ts.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusBadRequest, w.Code, path)
		require.Equal(t, "validation_error", resp.Error.Type)
	}
}

func TestChargeUsageDebitsBalance(t *testing.T) {
	ts := newTestServer(t, nil)

	w, resp := ts.do(t, http.MethodPost, "/api/users/9/usage", map[string]any{
		"model_id":      "unknown-model",
		"input_tokens":  1000,
		"output_tokens": 1000,
		"reference_id":  "req-1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decodeData[creditdomain.UsageResult](t, resp)
	credittest.RequireDecimal(t, "2", res.Credits)
	require.NotNil(t, res.Transaction)
	credittest.RequireDecimal(t, "498", res.Transaction.BalanceAfter)

	// Same reference is rejected as a duplicate.
	w, resp = ts.do(t, http.MethodPost, "/api/users/9/usage", map[string]any{
		"model_id":      "unknown-model",
		"input_tokens":  1000,
		"output_tokens": 1000,
		"reference_id":  "req-1",
	})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	require.Equal(t, creditdomain.ErrDuplicateReference.Error(), resp.Error.Type)
}

func TestApplyTransactionInsufficientCredits(t *testing.T) {
	ts := newTestServer(t, nil)

	w, resp := ts.do(t, http.MethodPost, "/api/users/11/transactions", map[string]any{
		"transaction_type": "adjustment",
		"amount":           "-600",
		"reference_id":     "adj-1",
	})
	require.Equal(t, http.StatusPaymentRequired, w.Code, w.Body.String())
	require.Equal(t, "insufficient_credits", resp.Error.Type)
	require.Equal(t, "500.00", resp.Error.Details["balance"])
	require.Equal(t, "600.00", resp.Error.Details["required"])
}

func TestApplyTransactionRejectsUnknownType(t *testing.T) {
	ts := newTestServer(t, nil)

	w, resp := ts.do(t, http.MethodPost, "/api/users/11/transactions", map[string]any{
		"transaction_type": "gift",
		"amount":           "10",
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Equal(t, "validation_error", resp.Error.Type)
}

func TestCheckCredits(t *testing.T) {
	ts := newTestServer(t, nil)

	w, resp := ts.do(t, http.MethodPost, "/api/users/12/check", map[string]any{"estimated_credits": "450"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeData[creditdomain.CheckResult](t, resp)
	require.True(t, res.Allowed)

	w, resp = ts.do(t, http.MethodPost, "/api/users/12/check", map[string]any{"estimated_credits": "501"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res = decodeData[creditdomain.CheckResult](t, resp)
	require.False(t, res.Allowed)
	credittest.RequireDecimal(t, "1", res.Shortfall)

	w, _ = ts.do(t, http.MethodPost, "/api/users/12/check", map[string]any{"estimated_credits": "-1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTransactionsAndVerifyLedger(t *testing.T) {
	ts := newTestServer(t, nil)

	for i := 1; i <= 3; i++ {
		w, _ := ts.do(t, http.MethodPost, "/api/users/13/transactions", map[string]any{
			"transaction_type": "bonus",
			"amount":           "5",
			"reference_id":     fmt.Sprintf("bonus-%d", i),
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w, resp := ts.do(t, http.MethodGet, "/api/users/13/transactions?transaction_type=bonus&page_size=2&order=desc", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rows := decodeData[[]creditledgerdomain.Transaction](t, resp)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].ReferenceID)
	require.Equal(t, "bonus-3", *rows[0].ReferenceID)

	w, _ = ts.do(t, http.MethodGet, "/api/users/13/transactions?order=sideways", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = ts.do(t, http.MethodGet, "/api/users/13/ledger/verify", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decodeData[creditdomain.LedgerReport](t, resp)
	require.True(t, report.Consistent)
	credittest.RequireDecimal(t, "515", report.StoredBalance)
}

func TestTierCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	w, resp := ts.do(t, http.MethodGet, "/api/tiers/pro", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tier := decodeData[tierdomain.Tier](t, resp)
	require.Equal(t, "pro", tier.TierName)

	w, _ = ts.do(t, http.MethodPost, "/admin/tiers/pro/disable", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = ts.do(t, http.MethodGet, "/api/tiers/pro", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, resp = ts.do(t, http.MethodGet, "/api/tiers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeData[[]tierdomain.Tier](t, resp), 2)

	w, resp = ts.do(t, http.MethodGet, "/admin/tiers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeData[[]tierdomain.Tier](t, resp), 3)

	w, _ = ts.do(t, http.MethodGet, "/api/tiers/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, resp = ts.do(t, http.MethodPut, "/admin/tiers/basic", map[string]any{
		"display_name":    "Basic",
		"monthly_credits": "2000",
		"monthly_price":   "9.99",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tier = decodeData[tierdomain.Tier](t, resp)
	require.Equal(t, "basic", tier.TierName)
	credittest.RequireDecimal(t, "2000", tier.MonthlyCredits)
}

func TestSubscribeToDisabledTierConflicts(t *testing.T) {
	ts := newTestServer(t, nil)

	w, _ := ts.do(t, http.MethodPost, "/admin/tiers/enterprise/disable", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := ts.do(t, http.MethodPost, "/api/users/14/subscribe", map[string]any{
		"tier_name":         "enterprise",
		"subscription_type": "monthly",
	})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	require.Equal(t, creditdomain.ErrTierUnavailable.Error(), resp.Error.Type)
}

func TestSubscribeQuoteAndUpgrade(t *testing.T) {
	ts := newTestServer(t, nil)

	w, resp := ts.do(t, http.MethodPost, "/api/users/15/subscribe", map[string]any{
		"tier_name":         "pro",
		"subscription_type": "monthly",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sub := decodeData[creditledgerdomain.Subscription](t, resp)
	require.Equal(t, "pro", sub.Tier)

	w, resp = ts.do(t, http.MethodPost, "/api/users/15/upgrade/quote", map[string]any{
		"tier_name":         "enterprise",
		"subscription_type": "monthly",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	quote := decodeData[creditdomain.UpgradeQuote](t, resp)
	require.Equal(t, "pro", quote.CurrentTier)
	require.Equal(t, "enterprise", quote.TargetTier)
	require.True(t, quote.FinalPrice.LessThanOrEqual(quote.TargetPrice))

	w, resp = ts.do(t, http.MethodPost, "/api/users/15/upgrade", map[string]any{
		"tier_name":         "enterprise",
		"subscription_type": "monthly",
		"order_id":          quote.OrderID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	upgraded := decodeData[creditdomain.UpgradeResult](t, resp)
	require.Equal(t, "enterprise", upgraded.Subscription.Tier)

	// Downgrades are not upgrades.
	w, resp = ts.do(t, http.MethodPost, "/api/users/15/upgrade/quote", map[string]any{
		"tier_name":         "pro",
		"subscription_type": "monthly",
	})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	require.Equal(t, creditdomain.ErrUpgradeNotAllowed.Error(), resp.Error.Type)
}

func TestCancelAndAutoRenew(t *testing.T) {
	ts := newTestServer(t, nil)

	w, resp := ts.do(t, http.MethodPost, "/api/users/16/auto-renew", map[string]any{"auto_renew": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sub := decodeData[creditledgerdomain.Subscription](t, resp)
	require.False(t, sub.AutoRenew)

	w, _ = ts.do(t, http.MethodPost, "/api/users/16/auto-renew", map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = ts.do(t, http.MethodPost, "/api/users/16/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sub = decodeData[creditledgerdomain.Subscription](t, resp)
	require.NotNil(t, sub.CancelledAt)
}

func TestPackagePurchaseFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	w, resp := ts.do(t, http.MethodPut, "/admin/packages", map[string]any{
		"package_name":  "starter",
		"credits":       "100",
		"bonus_credits": "10",
		"price":         "4.99",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var pkg struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &pkg))

	w, _ = ts.do(t, http.MethodGet, "/api/packages", nil)
	require.Equal(t, http.StatusOK, w.Code)

	path := "/api/users/17/packages/" + pkg.ID + "/purchase"
	w, _ = ts.do(t, http.MethodPost, path, map[string]any{"payment_reference": "pay-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp = ts.do(t, http.MethodGet, "/api/users/17/credits", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decodeData[creditdomain.CreditsInfo](t, resp)
	credittest.RequireDecimal(t, "610", info.CurrentCredits)
	credittest.RequireDecimal(t, "110", info.PurchasedCredits)

	w, _ = ts.do(t, http.MethodPost, "/admin/packages/"+pkg.ID+"/disable", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = ts.do(t, http.MethodPost, path, map[string]any{"payment_reference": "pay-2"})
	require.Equal(t, http.StatusConflict, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/users/17/packages/not-an-id/purchase", map[string]any{"payment_reference": "pay-3"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateAdminEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	w, _ := ts.do(t, http.MethodPut, "/admin/rates/gpt-x", map[string]any{
		"base_credit_per_1k_tokens": "2",
		"input_multiplier":          "1",
		"output_multiplier":         "1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp := ts.do(t, http.MethodPost, "/api/users/18/usage", map[string]any{
		"model_id":      "gpt-x",
		"input_tokens":  500,
		"output_tokens": 500,
		"reference_id":  "r-1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	credittest.RequireDecimal(t, "2", decodeData[creditdomain.UsageResult](t, resp).Credits)

	w, _ = ts.do(t, http.MethodGet, "/admin/rates", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/admin/rates/invalidate", map[string]any{"model_id": "gpt-x"})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = ts.do(t, http.MethodPost, "/admin/rates/invalidate", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAdminAdvanceCycle(t *testing.T) {
	ts := newTestServer(t, nil)

	w, _ := ts.do(t, http.MethodGet, "/api/users/19/credits", nil)
	require.Equal(t, http.StatusOK, w.Code)

	sub := ts.stack.Subscription(t, 19)
	ts.stack.Clock.Set(sub.BillingCycleEnd.AddDate(0, 0, 1))

	w, resp := ts.do(t, http.MethodPost, "/admin/users/19/advance", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeData[creditdomain.AdvanceResult](t, resp)
	require.True(t, res.Advanced)
	require.Equal(t, creditledgerdomain.SubscriptionStatusActive, res.Status)
}

func TestAdminAdvanceReportsExpiryWhenTierUnavailable(t *testing.T) {
	ts := newTestServer(t, nil)

	w, _ := ts.do(t, http.MethodGet, "/api/users/21/credits", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(t, http.MethodPut, "/admin/tiers/free", map[string]any{
		"display_name":    "free",
		"monthly_credits": "500",
		"monthly_price":   "0",
		"enabled":         false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sub := ts.stack.Subscription(t, 21)
	ts.stack.Clock.Set(sub.BillingCycleEnd.AddDate(0, 0, 1))

	w, resp := ts.do(t, http.MethodPost, "/admin/users/21/advance", nil)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	require.Equal(t, creditdomain.ErrTierUnavailable.Error(), resp.Error.Type)
	res := decodeData[creditdomain.AdvanceResult](t, resp)
	require.Equal(t, creditledgerdomain.SubscriptionStatusActive, res.FromStatus)
	require.Equal(t, creditledgerdomain.SubscriptionStatusExpired, res.Status)
	require.Equal(t, creditledgerdomain.SubscriptionStatusExpired, ts.stack.Subscription(t, 21).Status)
}

func TestDisableTierThroughUpsert(t *testing.T) {
	ts := newTestServer(t, nil)

	w, resp := ts.do(t, http.MethodPut, "/admin/tiers/pro", map[string]any{
		"display_name":    "Pro",
		"monthly_credits": "1000",
		"monthly_price":   "20",
		"enabled":         false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.False(t, decodeData[tierdomain.Tier](t, resp).Enabled)

	w, _ = ts.do(t, http.MethodGet, "/api/tiers/pro", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, resp = ts.do(t, http.MethodPost, "/api/users/22/subscribe", map[string]any{
		"tier_name":         "pro",
		"subscription_type": "monthly",
		"payment_reference": "pay-22",
	})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	require.Equal(t, creditdomain.ErrTierUnavailable.Error(), resp.Error.Type)
}

func TestAdminWritesAreAudited(t *testing.T) {
	ts := newTestServer(t, nil)
	operator := map[string]string{"X-Actor-ID": "ops@example.com"}

	w, _ := ts.doWithHeaders(t, http.MethodPut, "/admin/tiers/basic", map[string]any{
		"display_name":    "Basic",
		"monthly_credits": "2000",
		"monthly_price":   "9.99",
	}, operator)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = ts.doWithHeaders(t, http.MethodPost, "/admin/tiers/basic/disable", nil, operator)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = ts.doWithHeaders(t, http.MethodPut, "/admin/rates/gpt-x", map[string]any{
		"base_credit_per_1k_tokens": "2",
		"input_multiplier":          "1",
		"output_multiplier":         "1",
	}, operator)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, resp := ts.doWithHeaders(t, http.MethodPut, "/admin/packages", map[string]any{
		"package_name": "starter",
		"credits":      "100",
		"price":        "1.99",
	}, operator)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var pkg struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &pkg))

	w, _ = ts.do(t, http.MethodPost, "/api/users/23/packages/"+pkg.ID+"/purchase", map[string]any{
		"payment_reference": "pay_1234567890",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp = ts.do(t, http.MethodGet, "/admin/audit-logs", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	logs := decodeData[[]auditdomain.AuditLog](t, resp)
	require.Len(t, logs, 5)

	actions := map[string]auditdomain.AuditLog{}
	for _, entry := range logs {
		actions[entry.Action] = entry
	}
	for _, action := range []string{"tier.upsert", "tier.disable", "rate.upsert", "credit_package.upsert", "credit_package.purchase"} {
		require.Contains(t, actions, action)
	}

	disabled := actions["tier.disable"]
	require.Equal(t, string(auditdomain.ActorTypeAdmin), disabled.ActorType)
	require.Equal(t, "ops@example.com", *disabled.ActorID)
	require.Equal(t, "basic", *disabled.TargetID)

	purchase := actions["credit_package.purchase"]
	require.Equal(t, string(auditdomain.ActorTypeUser), purchase.ActorType)
	require.Equal(t, "23", *purchase.ActorID)
	require.Equal(t, "pay_****7890", purchase.Metadata["payment_reference"])

	w, resp = ts.do(t, http.MethodGet, "/admin/audit-logs?action=tier.disable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decodeData[[]auditdomain.AuditLog](t, resp), 1)

	w, _ = ts.do(t, http.MethodGet, "/admin/audit-logs?start_at=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsageRateLimit(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, UsageRate: 0.01, UsageBurst: 2}}
	limiter, err := ratelimit.NewUsageLimiter(cfg, client)
	require.NoError(t, err)

	ts := newTestServer(t, limiter)
	body := func(ref string) map[string]any {
		return map[string]any{"model_id": "m", "input_tokens": 10, "output_tokens": 10, "reference_id": ref}
	}

	for i := 0; i < 2; i++ {
		w, _ := ts.do(t, http.MethodPost, "/api/users/20/usage", body(fmt.Sprintf("ref-%d", i)))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w, resp := ts.do(t, http.MethodPost, "/api/users/20/usage", body("ref-3"))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "rate_limited", resp.Error.Type)
	require.True(t, resp.Error.Retryable)
	require.Equal(t, rateLimitReasonUserRate, w.Header().Get("X-Rate-Limited-Reason"))
	require.NotEmpty(t, w.Header().Get("Retry-After"))

	// Other users have their own bucket.
	w, _ = ts.do(t, http.MethodPost, "/api/users/21/usage", body("ref-1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		errType   string
		retryable bool
	}{
		{"expired", creditdomain.ErrSubscriptionExpired, http.StatusForbidden, "subscription_expired", false},
		{"concurrent", fmt.Errorf("apply: %w", creditdomain.ErrConcurrentModification), http.StatusConflict, "concurrent_modification", true},
		{"insufficient", &creditdomain.InsufficientCreditsError{Balance: decimal.NewFromInt(1), Required: decimal.NewFromInt(2)}, http.StatusPaymentRequired, "insufficient_credits", false},
		{"tier missing", tierdomain.ErrNotFound, http.StatusNotFound, "not_found", false},
		{"subscription missing", creditdomain.ErrSubscriptionNotFound, http.StatusNotFound, "not_found", false},
		{"invalid amount", creditdomain.ErrInvalidAmount, http.StatusBadRequest, "validation_error", false},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited", true},
		{"unavailable", ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable", true},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := mapError(tt.err)
			require.Equal(t, tt.status, status)
			require.Equal(t, tt.errType, payload.Type)
			require.Equal(t, tt.retryable, payload.Retryable)
		})
	}
}
