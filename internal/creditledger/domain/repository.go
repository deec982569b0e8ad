package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/creditledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	InsertSubscription(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindSubscriptionByUserID(ctx context.Context, db *gorm.DB, userID int64) (*Subscription, error)
	FindSubscriptionByUserIDForUpdate(ctx context.Context, db *gorm.DB, userID int64) (*Subscription, error)
	// UpdateSubscription writes every mutable column and bumps version when the
	// stored version still equals expectedVersion.
	UpdateSubscription(ctx context.Context, db *gorm.DB, sub *Subscription, expectedVersion int64) error

	AppendTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) error
	FindTransactionByReference(ctx context.Context, db *gorm.DB, userID int64, referenceID string, txnType TransactionType) (*Transaction, error)
	ListTransactions(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Transaction, error)
	ListAllTransactions(ctx context.Context, db *gorm.DB, userID int64) ([]Transaction, error)

	ListRenewalDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Subscription, error)
	ListYearlyGrantDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Subscription, error)
}

type ListFilter struct {
	UserID          int64
	TransactionType *TransactionType
	ReferenceType   string
	Limit           int
	After           *pagination.Cursor
	Descending      bool
}

var (
	ErrVersionConflict    = errors.New("version_conflict")
	ErrDuplicateReference = errors.New("duplicate_reference")
	ErrSubscriptionExists = errors.New("subscription_exists")
	ErrInvariantViolation = errors.New("balance_invariant_violation")
)
