package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditledger/internal/cache"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/smallbiznis/creditledger/internal/creditrate/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Clock  clock.Clock                `optional:"true"`
	Config *config.CreditConfigHolder `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   domain.Repository
	genID  *snowflake.Node
	clock  clock.Clock
	config *config.CreditConfigHolder
	rates  cache.Cache[string, domain.Rate]
}

func NewService(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.NewSystemClock()
	}
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("creditrate.service"),
		repo:   p.Repo,
		genID:  p.GenID,
		clock:  c,
		config: p.Config,
		rates:  cache.NewTTLCache[string, domain.Rate](p.Config.Get().RateCacheTTL),
	}
}

func (s *Service) GetRate(ctx context.Context, modelID string) (*domain.Rate, error) {
	modelID = normalizeModelID(modelID)
	if modelID == "" {
		return nil, domain.ErrInvalidModelID
	}
	if rate, ok := s.rates.Get(modelID); ok {
		return &rate, nil
	}

	rate, err := s.repo.FindByModelID(ctx, s.db, modelID)
	if err != nil {
		return nil, err
	}
	if rate == nil || !rate.Enabled {
		fallback := s.defaultRate(modelID)
		rate = &fallback
	} else {
		rate.Source = domain.RateSourceModel
	}

	s.rates.Set(modelID, *rate, s.config.Get().RateCacheTTL)
	return rate, nil
}

func (s *Service) Calculate(ctx context.Context, modelID string, inputTokens, outputTokens int64) (*domain.Calculation, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return nil, domain.ErrInvalidTokenCount
	}
	rate, err := s.GetRate(ctx, modelID)
	if err != nil {
		return nil, err
	}
	return &domain.Calculation{
		ModelID:      rate.ModelID,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Credits:      domain.CalculateCredits(*rate, inputTokens, outputTokens),
		Rate:         *rate,
	}, nil
}

func (s *Service) ListRates(ctx context.Context) ([]domain.Rate, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Source = domain.RateSourceModel
	}
	return items, nil
}

func (s *Service) UpsertRate(ctx context.Context, req domain.UpsertRequest) (*domain.Rate, error) {
	modelID := normalizeModelID(req.ModelID)
	if modelID == "" {
		return nil, domain.ErrInvalidModelID
	}
	if req.BaseCreditPer1KTokens.IsNegative() || req.InputMultiplier.IsNegative() || req.OutputMultiplier.IsNegative() {
		return nil, domain.ErrInvalidRate
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	now := s.clock.Now()
	record := &domain.Rate{
		ID:                    s.genID.Generate(),
		ModelID:               modelID,
		BaseCreditPer1KTokens: req.BaseCreditPer1KTokens,
		InputMultiplier:       req.InputMultiplier,
		OutputMultiplier:      req.OutputMultiplier,
		Enabled:               enabled,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repo.Upsert(ctx, s.db, record); err != nil {
		return nil, err
	}
	s.Invalidate(modelID)

	s.log.Info("model credit rate upserted",
		zap.String("model_id", modelID),
		zap.String("base_credit_per_1k_tokens", record.BaseCreditPer1KTokens.String()),
		zap.Bool("enabled", enabled),
	)
	return s.GetRate(ctx, modelID)
}

func (s *Service) Invalidate(modelID string) {
	s.rates.Delete(normalizeModelID(modelID))
}

func (s *Service) InvalidateAll() {
	s.rates.Flush()
	s.log.Info("model credit rate cache cleared")
}

func (s *Service) Stats() cache.Stats {
	return s.rates.Stats()
}

func (s *Service) defaultRate(modelID string) domain.Rate {
	def := s.config.Get().DefaultRate
	return domain.Rate{
		ModelID:               modelID,
		BaseCreditPer1KTokens: decimal.NewFromFloat(def.BaseCreditPer1K),
		InputMultiplier:       decimal.NewFromFloat(def.InputMultiplier),
		OutputMultiplier:      decimal.NewFromFloat(def.OutputMultiplier),
		Enabled:               true,
		Source:                domain.RateSourceDefault,
	}
}

func normalizeModelID(modelID string) string {
	return strings.ToLower(strings.TrimSpace(modelID))
}
