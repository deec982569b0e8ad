package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Package, error)
	FindByName(ctx context.Context, db *gorm.DB, name string) (*Package, error)
	List(ctx context.Context, db *gorm.DB, enabledOnly bool) ([]Package, error)
	Upsert(ctx context.Context, db *gorm.DB, pkg *Package) error
	SetEnabled(ctx context.Context, db *gorm.DB, id snowflake.ID, enabled bool) (int64, error)
}
