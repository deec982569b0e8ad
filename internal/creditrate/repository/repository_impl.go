package repository

import (
	"context"

	"github.com/smallbiznis/creditledger/internal/creditrate/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const rateColumns = `id, model_id, base_credit_per_1k_tokens, input_multiplier, output_multiplier,
	enabled, created_at, updated_at`

func (r *repo) FindByModelID(ctx context.Context, db *gorm.DB, modelID string) (*domain.Rate, error) {
	var rate domain.Rate
	err := db.WithContext(ctx).Raw(
		`SELECT `+rateColumns+` FROM model_credit_rates WHERE model_id = ?`,
		modelID,
	).Scan(&rate).Error
	if err != nil {
		return nil, err
	}
	if rate.ID == 0 {
		return nil, nil
	}
	return &rate, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Rate, error) {
	var items []domain.Rate
	err := db.WithContext(ctx).Raw(
		`SELECT ` + rateColumns + ` FROM model_credit_rates ORDER BY model_id ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, rate *domain.Rate) error {
	if rate == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "model_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"base_credit_per_1k_tokens",
				"input_multiplier",
				"output_multiplier",
				"enabled",
				"updated_at",
			}),
		}).
		Create(rate).Error
}
