package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/smallbiznis/creditledger/internal/creditledger/domain"
	"github.com/smallbiznis/creditledger/pkg/db"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, user_id, tier, subscription_type, monthly_credits, current_credits, used_credits,
	purchased_credits, subscription_start_date, billing_cycle_start, billing_cycle_end, next_grant_date,
	status, auto_renew, cancelled_at, version, created_at, updated_at`

const transactionColumns = `id, user_id, subscription_id, transaction_type, credits, balance_before, balance_after,
	reference_id, reference_type, description, extra_data, created_at`

func (r *repo) InsertSubscription(ctx context.Context, conn *gorm.DB, sub *domain.Subscription) error {
	if sub == nil {
		return gorm.ErrInvalidData
	}
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO user_subscriptions (`+subscriptionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.UserID,
		sub.Tier,
		sub.SubscriptionType,
		sub.MonthlyCredits,
		sub.CurrentCredits,
		sub.UsedCredits,
		sub.PurchasedCredits,
		sub.SubscriptionStartDate,
		sub.BillingCycleStart,
		sub.BillingCycleEnd,
		sub.NextGrantDate,
		sub.Status,
		sub.AutoRenew,
		sub.CancelledAt,
		sub.Version,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrSubscriptionExists
	}
	return err
}

func (r *repo) FindSubscriptionByUserID(ctx context.Context, conn *gorm.DB, userID int64) (*domain.Subscription, error) {
	return r.findSubscription(ctx, conn, userID, "")
}

func (r *repo) FindSubscriptionByUserIDForUpdate(ctx context.Context, conn *gorm.DB, userID int64) (*domain.Subscription, error) {
	return r.findSubscription(ctx, conn, userID, " FOR UPDATE")
}

func (r *repo) findSubscription(ctx context.Context, conn *gorm.DB, userID int64, lock string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := conn.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM user_subscriptions WHERE user_id = ?`+lock,
		userID,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}

func (r *repo) UpdateSubscription(ctx context.Context, conn *gorm.DB, sub *domain.Subscription, expectedVersion int64) error {
	if sub == nil {
		return gorm.ErrInvalidData
	}
	res := conn.WithContext(ctx).Exec(
		`UPDATE user_subscriptions
		 SET tier = ?, subscription_type = ?, monthly_credits = ?, current_credits = ?, used_credits = ?,
		     purchased_credits = ?, subscription_start_date = ?, billing_cycle_start = ?, billing_cycle_end = ?,
		     next_grant_date = ?, status = ?, auto_renew = ?, cancelled_at = ?, version = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		sub.Tier,
		sub.SubscriptionType,
		sub.MonthlyCredits,
		sub.CurrentCredits,
		sub.UsedCredits,
		sub.PurchasedCredits,
		sub.SubscriptionStartDate,
		sub.BillingCycleStart,
		sub.BillingCycleEnd,
		sub.NextGrantDate,
		sub.Status,
		sub.AutoRenew,
		sub.CancelledAt,
		expectedVersion+1,
		sub.UpdatedAt,
		sub.ID,
		expectedVersion,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrVersionConflict
	}
	sub.Version = expectedVersion + 1
	return nil
}

func (r *repo) AppendTransaction(ctx context.Context, conn *gorm.DB, txn *domain.Transaction) error {
	if txn == nil {
		return gorm.ErrInvalidData
	}
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO credit_transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.UserID,
		txn.SubscriptionID,
		txn.TransactionType,
		txn.Credits,
		txn.BalanceBefore,
		txn.BalanceAfter,
		txn.ReferenceID,
		txn.ReferenceType,
		txn.Description,
		txn.ExtraData,
		txn.CreatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateReference
	}
	return err
}

func (r *repo) FindTransactionByReference(ctx context.Context, conn *gorm.DB, userID int64, referenceID string, txnType domain.TransactionType) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := conn.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+` FROM credit_transactions
		 WHERE user_id = ? AND reference_id = ? AND transaction_type = ?`,
		userID,
		referenceID,
		txnType,
	).Scan(&txn).Error
	if err != nil {
		return nil, err
	}
	if txn.ID == 0 {
		return nil, nil
	}
	return &txn, nil
}

func (r *repo) ListTransactions(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]domain.Transaction, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.Transaction{}).
		Select(transactionColumns).
		Where("user_id = ?", filter.UserID)

	if filter.TransactionType != nil {
		stmt = stmt.Where("transaction_type = ?", *filter.TransactionType)
	}
	if filter.ReferenceType != "" {
		stmt = stmt.Where("reference_type = ?", filter.ReferenceType)
	}
	if filter.After != nil {
		createdAt, id, err := parseCursor(filter.After)
		if err != nil {
			return nil, err
		}
		if filter.Descending {
			stmt = stmt.Where("(created_at < ? OR (created_at = ? AND id < ?))", createdAt, createdAt, id)
		} else {
			stmt = stmt.Where("(created_at > ? OR (created_at = ? AND id > ?))", createdAt, createdAt, id)
		}
	}

	if filter.Descending {
		stmt = stmt.Order("created_at DESC").Order("id DESC")
	} else {
		stmt = stmt.Order("created_at ASC").Order("id ASC")
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var items []domain.Transaction
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListAllTransactions returns the whole history in replay order.
func (r *repo) ListAllTransactions(ctx context.Context, conn *gorm.DB, userID int64) ([]domain.Transaction, error) {
	var items []domain.Transaction
	err := conn.WithContext(ctx).Raw(
		`SELECT `+transactionColumns+` FROM credit_transactions
		 WHERE user_id = ? ORDER BY created_at ASC, id ASC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListRenewalDue(ctx context.Context, conn *gorm.DB, now time.Time, limit int) ([]domain.Subscription, error) {
	var items []domain.Subscription
	err := conn.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM user_subscriptions
		 WHERE status = ? AND billing_cycle_end <= ?
		 ORDER BY billing_cycle_end ASC, id ASC
		 LIMIT ?`,
		domain.SubscriptionStatusActive,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListYearlyGrantDue(ctx context.Context, conn *gorm.DB, now time.Time, limit int) ([]domain.Subscription, error) {
	var items []domain.Subscription
	err := conn.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM user_subscriptions
		 WHERE status = ? AND subscription_type = ?
		   AND next_grant_date IS NOT NULL AND next_grant_date <= ? AND billing_cycle_end > ?
		 ORDER BY next_grant_date ASC, id ASC
		 LIMIT ?`,
		domain.SubscriptionStatusActive,
		domain.SubscriptionTypeYearly,
		now,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func parseCursor(c *pagination.Cursor) (time.Time, int64, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, c.CreatedAt)
	if err != nil {
		return time.Time{}, 0, pagination.ErrInvalidPageToken
	}
	id, err := strconv.ParseInt(c.ID, 10, 64)
	if err != nil {
		return time.Time{}, 0, pagination.ErrInvalidPageToken
	}
	return createdAt.UTC(), id, nil
}
