package service

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditledger/internal/credit/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
	"go.uber.org/zap"
)

const defaultPageSize = 50

func (s *Service) GetCreditsInfo(ctx context.Context, userID int64) (*domain.CreditsInfo, error) {
	sub, err := s.projectSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	info := &domain.CreditsInfo{
		UserID:            sub.UserID,
		Tier:              sub.Tier,
		TierDisplayName:   sub.Tier,
		SubscriptionType:  sub.SubscriptionType,
		Status:            sub.Status,
		AutoRenew:         sub.AutoRenew,
		CurrentCredits:    sub.CurrentCredits,
		MonthlyCredits:    sub.MonthlyCredits,
		UsedCredits:       sub.UsedCredits,
		PurchasedCredits:  sub.PurchasedCredits,
		MonthlyRemaining:  sub.MonthlyRemaining(),
		BillingCycleStart: sub.BillingCycleStart,
		BillingCycleEnd:   sub.BillingCycleEnd,
		NextGrantDate:     sub.NextGrantDate,
		CancelledAt:       sub.CancelledAt,
	}
	tier, err := s.lookupTier(ctx, sub.Tier)
	if err != nil {
		return nil, err
	}
	if tier != nil {
		info.TierDisplayName = tier.DisplayName
	}
	return info, nil
}

func (s *Service) ListTransactions(ctx context.Context, req domain.ListTransactionsRequest) (domain.ListTransactionsResponse, error) {
	if req.UserID <= 0 {
		return domain.ListTransactionsResponse{}, domain.ErrInvalidUserID
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	filter := creditledgerdomain.ListFilter{
		UserID:        req.UserID,
		ReferenceType: req.ReferenceType,
		Limit:         pageSize + 1,
		Descending:    req.Descending,
	}
	if req.TransactionType != "" {
		txnType := creditledgerdomain.TransactionType(req.TransactionType)
		if !txnType.Valid() {
			return domain.ListTransactionsResponse{}, domain.ErrInvalidTransactionType
		}
		filter.TransactionType = &txnType
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListTransactionsResponse{}, err
		}
		filter.After = cursor
	}

	items, err := s.ledger.ListTransactions(ctx, s.db, filter)
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}
	items, pageInfo, err := pagination.BuildCursorPageInfo(items, pageSize, func(t creditledgerdomain.Transaction) pagination.Cursor {
		return pagination.Cursor{
			ID:        strconv.FormatInt(t.ID.Int64(), 10),
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}
	if items == nil {
		items = []creditledgerdomain.Transaction{}
	}
	return domain.ListTransactionsResponse{Transactions: items, PageInfo: pageInfo}, nil
}

// VerifyLedger replays the user's full history from a zero balance and
// compares the result with the stored projection.
func (s *Service) VerifyLedger(ctx context.Context, userID int64) (*domain.LedgerReport, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidUserID
	}
	sub, err := s.ledger.FindSubscriptionByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	rows, err := s.ledger.ListAllTransactions(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	report := replay(rows)
	report.UserID = userID
	report.StoredBalance = sub.CurrentCredits
	report.Drift = sub.CurrentCredits.Sub(report.ReplayedBalance)
	report.Consistent = len(report.Breaks) == 0 && report.Drift.IsZero()

	if !report.Consistent {
		s.logger(ctx, userID).Warn("ledger replay mismatch",
			zap.Int("breaks", len(report.Breaks)),
			zap.String("drift", report.Drift.String()),
		)
	}
	return report, nil
}

func replay(rows []creditledgerdomain.Transaction) *domain.LedgerReport {
	report := &domain.LedgerReport{
		Transactions:    len(rows),
		ReplayedBalance: decimal.Zero,
		Breaks:          []domain.ChainBreak{},
	}
	previous := decimal.Zero
	for _, row := range rows {
		id := strconv.FormatInt(row.ID.Int64(), 10)
		if !row.BalanceBefore.Equal(previous) {
			report.Breaks = append(report.Breaks, domain.ChainBreak{
				TransactionID: id,
				Expected:      previous,
				Actual:        row.BalanceBefore,
				Reason:        "balance_before_mismatch",
			})
		}
		if expected := row.BalanceBefore.Add(row.Credits); !expected.Equal(row.BalanceAfter) {
			report.Breaks = append(report.Breaks, domain.ChainBreak{
				TransactionID: id,
				Expected:      expected,
				Actual:        row.BalanceAfter,
				Reason:        "delta_mismatch",
			})
		}
		report.ReplayedBalance = report.ReplayedBalance.Add(row.Credits)
		previous = row.BalanceAfter
	}
	return report
}
