package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByModelID(ctx context.Context, db *gorm.DB, modelID string) (*Rate, error)
	List(ctx context.Context, db *gorm.DB) ([]Rate, error)
	Upsert(ctx context.Context, db *gorm.DB, rate *Rate) error
}
