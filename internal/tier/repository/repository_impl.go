package repository

import (
	"context"

	"github.com/smallbiznis/creditledger/internal/tier/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const tierColumns = `id, tier_name, display_name, monthly_credits, monthly_price, yearly_price, yearly_discount,
	features, enabled, sort_order, created_at, updated_at`

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, tierName string) (*domain.Tier, error) {
	var tier domain.Tier
	err := db.WithContext(ctx).Raw(
		`SELECT `+tierColumns+` FROM subscription_tiers WHERE tier_name = ?`,
		tierName,
	).Scan(&tier).Error
	if err != nil {
		return nil, err
	}
	if tier.ID == 0 {
		return nil, nil
	}
	return &tier, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, enabledOnly bool) ([]domain.Tier, error) {
	var items []domain.Tier
	query := `SELECT ` + tierColumns + ` FROM subscription_tiers`
	if enabledOnly {
		query += ` WHERE enabled = TRUE`
	}
	query += ` ORDER BY sort_order ASC, tier_name ASC`
	if err := db.WithContext(ctx).Raw(query).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Upsert inserts the tier or refreshes every mutable column of the existing row.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, tier *domain.Tier) error {
	if tier == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tier_name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"display_name",
				"monthly_credits",
				"monthly_price",
				"yearly_price",
				"yearly_discount",
				"features",
				"enabled",
				"sort_order",
				"updated_at",
			}),
		}).
		Create(tier).Error
}

func (r *repo) SetEnabled(ctx context.Context, db *gorm.DB, tierName string, enabled bool) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscription_tiers SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE tier_name = ?`,
		enabled,
		tierName,
	)
	return res.RowsAffected, res.Error
}
