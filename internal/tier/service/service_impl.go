package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditledger/internal/cache"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/smallbiznis/creditledger/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const enabledListKey = "\x00enabled"

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

	tiers   cache.Cache[string, domain.Tier]
	enabled cache.Cache[string, []domain.Tier]
}

func NewService(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.NewSystemClock()
	}
	ttl := p.Config.Get().TierCacheTTL
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("tier.service"),
		repo:    p.Repo,
		genID:   p.GenID,
		clock:   c,
		config:  p.Config,
		tiers:   cache.NewTTLCache[string, domain.Tier](ttl),
		enabled: cache.NewTTLCache[string, []domain.Tier](ttl),
	}
}

func (s *Service) GetTier(ctx context.Context, tierName string) (*domain.Tier, error) {
	name := normalizeName(tierName)
	if name == "" {
		return nil, domain.ErrInvalidTierName
	}
	if tier, ok := s.tiers.Get(name); ok {
		return &tier, nil
	}

	tier, err := s.repo.FindByName(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, domain.ErrNotFound
	}
	s.tiers.Set(name, *tier, s.cacheTTL())
	return tier, nil
}

func (s *Service) ListEnabledTiers(ctx context.Context) ([]domain.Tier, error) {
	if items, ok := s.enabled.Get(enabledListKey); ok {
		return cloneTiers(items), nil
	}
	items, err := s.repo.List(ctx, s.db, true)
	if err != nil {
		return nil, err
	}
	s.enabled.Set(enabledListKey, cloneTiers(items), s.cacheTTL())
	return items, nil
}

// ListTiers returns the full catalog, disabled tiers included. Never cached.
func (s *Service) ListTiers(ctx context.Context) ([]domain.Tier, error) {
	return s.repo.List(ctx, s.db, false)
}

func (s *Service) UpsertTier(ctx context.Context, req domain.UpsertRequest) (*domain.Tier, error) {
	name := normalizeName(req.TierName)
	if name == "" {
		return nil, domain.ErrInvalidTierName
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return nil, domain.ErrInvalidDisplayName
	}
	if req.MonthlyCredits.IsNegative() || !req.MonthlyCredits.Equal(req.MonthlyCredits.Round(2)) {
		return nil, domain.ErrInvalidMonthlyCredits
	}
	if req.MonthlyPrice.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}

	var yearlyPrice, yearlyDiscount decimal.NullDecimal
	if req.YearlyPrice != nil {
		if req.YearlyPrice.IsNegative() {
			return nil, domain.ErrInvalidPrice
		}
		yearlyPrice = decimal.NewNullDecimal(req.YearlyPrice.Round(2))
	}
	if req.YearlyDiscount != nil {
		yearlyDiscount = decimal.NewNullDecimal(*req.YearlyDiscount)
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	now := s.clock.Now()
	record := &domain.Tier{
		ID:             s.genID.Generate(),
		TierName:       name,
		DisplayName:    displayName,
		MonthlyCredits: req.MonthlyCredits,
		MonthlyPrice:   req.MonthlyPrice.Round(2),
		YearlyPrice:    yearlyPrice,
		YearlyDiscount: yearlyDiscount,
		Features:       req.Features,
		Enabled:        enabled,
		SortOrder:      req.SortOrder,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Upsert(ctx, s.db, record); err != nil {
		return nil, err
	}
	s.invalidate(name)

	s.log.Info("tier upserted",
		zap.String("tier_name", name),
		zap.String("monthly_credits", record.MonthlyCredits.String()),
		zap.Bool("enabled", enabled),
	)
	return s.GetTier(ctx, name)
}

func (s *Service) SetTierEnabled(ctx context.Context, tierName string, enabled bool) (*domain.Tier, error) {
	name := normalizeName(tierName)
	if name == "" {
		return nil, domain.ErrInvalidTierName
	}
	affected, err := s.repo.SetEnabled(ctx, s.db, name, enabled)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrNotFound
	}
	s.invalidate(name)

	s.log.Info("tier availability changed", zap.String("tier_name", name), zap.Bool("enabled", enabled))
	return s.GetTier(ctx, name)
}

func (s *Service) invalidate(name string) {
	s.tiers.Delete(name)
	s.enabled.Flush()
}

func (s *Service) cacheTTL() time.Duration {
	return s.config.Get().TierCacheTTL
}

func normalizeName(name string) string {
	return slug.Make(strings.TrimSpace(name))
}

func cloneTiers(items []domain.Tier) []domain.Tier {
	if items == nil {
		return nil
	}
	out := make([]domain.Tier, len(items))
	copy(out, items)
	return out
}
