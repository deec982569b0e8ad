package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	// List returns up to filter.Limit rows, newest first.
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AuditLog, error)
}
