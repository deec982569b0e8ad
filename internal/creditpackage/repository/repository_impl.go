package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/internal/creditpackage/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const packageColumns = `id, package_name, credits, bonus_credits, price, description, enabled, sort_order,
	created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Package, error) {
	return r.findOne(ctx, db, `id = ?`, id)
}

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, name string) (*domain.Package, error) {
	return r.findOne(ctx, db, `package_name = ?`, name)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.Package, error) {
	var pkg domain.Package
	err := db.WithContext(ctx).Raw(
		`SELECT `+packageColumns+` FROM credit_packages WHERE `+where,
		arg,
	).Scan(&pkg).Error
	if err != nil {
		return nil, err
	}
	if pkg.ID == 0 {
		return nil, nil
	}
	return &pkg, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, enabledOnly bool) ([]domain.Package, error) {
	var items []domain.Package
	query := `SELECT ` + packageColumns + ` FROM credit_packages`
	if enabledOnly {
		query += ` WHERE enabled = TRUE`
	}
	query += ` ORDER BY sort_order ASC, price ASC, id ASC`
	if err := db.WithContext(ctx).Raw(query).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, pkg *domain.Package) error {
	if pkg == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "package_name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"credits",
				"bonus_credits",
				"price",
				"description",
				"enabled",
				"sort_order",
				"updated_at",
			}),
		}).
		Create(pkg).Error
}

func (r *repo) SetEnabled(ctx context.Context, db *gorm.DB, id snowflake.ID, enabled bool) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE credit_packages SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		enabled,
		id,
	)
	return res.RowsAffected, res.Error
}
