package domain

import (
	"context"

	"gorm.io/gorm"
)

//go:generate mockgen -destination=../mock/repository_mock.go -package=mock . Repository

type Repository interface {
	FindByName(ctx context.Context, db *gorm.DB, tierName string) (*Tier, error)
	List(ctx context.Context, db *gorm.DB, enabledOnly bool) ([]Tier, error)
	Upsert(ctx context.Context, db *gorm.DB, tier *Tier) error
	SetEnabled(ctx context.Context, db *gorm.DB, tierName string, enabled bool) (int64, error)
}
