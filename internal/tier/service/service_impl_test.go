package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/smallbiznis/creditledger/internal/tier/domain"
	"github.com/smallbiznis/creditledger/internal/tier/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, repo domain.Repository) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	cfg := config.DefaultCreditConfig()
	cfg.TierCacheTTL = time.Hour
	return NewService(Params{
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   repo,
		Clock:  clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Config: config.NewStaticCreditConfigHolder(cfg),
	})
}

func TestGetTierIsCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock.NewMockRepository(ctrl)
	svc := newTestService(t, repo)
	ctx := context.Background()

	repo.EXPECT().
		FindByName(gomock.Any(), gomock.Any(), "pro").
		Return(&domain.Tier{ID: 1, TierName: "pro", MonthlyCredits: decimal.NewFromInt(1000), Enabled: true}, nil).
		Times(1)

	for i := 0; i < 3; i++ {
		tier, err := svc.GetTier(ctx, " Pro ")
		require.NoError(t, err)
		require.Equal(t, "pro", tier.TierName)
	}
}

func TestGetTierNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock.NewMockRepository(ctrl)
	svc := newTestService(t, repo)

	repo.EXPECT().FindByName(gomock.Any(), gomock.Any(), "ghost").Return(nil, nil)

	_, err := svc.GetTier(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetTier(context.Background(), "   ")
	require.ErrorIs(t, err, domain.ErrInvalidTierName)
}

func TestSetTierEnabledInvalidatesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock.NewMockRepository(ctrl)
	svc := newTestService(t, repo)
	ctx := context.Background()

	gomock.InOrder(
		repo.EXPECT().FindByName(gomock.Any(), gomock.Any(), "pro").
			Return(&domain.Tier{ID: 1, TierName: "pro", Enabled: true}, nil),
		repo.EXPECT().SetEnabled(gomock.Any(), gomock.Any(), "pro", false).Return(int64(1), nil),
		repo.EXPECT().FindByName(gomock.Any(), gomock.Any(), "pro").
			Return(&domain.Tier{ID: 1, TierName: "pro", Enabled: false}, nil),
	)

	tier, err := svc.GetTier(ctx, "pro")
	require.NoError(t, err)
	require.True(t, tier.Enabled)

	tier, err = svc.SetTierEnabled(ctx, "pro", false)
	require.NoError(t, err)
	require.False(t, tier.Enabled)

	repo.EXPECT().SetEnabled(gomock.Any(), gomock.Any(), "ghost", true).Return(int64(0), nil)
	_, err = svc.SetTierEnabled(ctx, "ghost", true)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListEnabledTiersIsCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock.NewMockRepository(ctrl)
	svc := newTestService(t, repo)
	ctx := context.Background()

	repo.EXPECT().List(gomock.Any(), gomock.Any(), true).
		Return([]domain.Tier{{TierName: "free"}, {TierName: "pro"}}, nil).
		Times(1)

	first, err := svc.ListEnabledTiers(ctx)
	require.NoError(t, err)
	first[0].TierName = "mutated"

	second, err := svc.ListEnabledTiers(ctx)
	require.NoError(t, err)
	require.Equal(t, "free", second[0].TierName)
}

func TestUpsertTierValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock.NewMockRepository(ctrl)
	svc := newTestService(t, repo)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.UpsertRequest
		err  error
	}{
		{"blank name", domain.UpsertRequest{DisplayName: "X"}, domain.ErrInvalidTierName},
		{"blank display", domain.UpsertRequest{TierName: "pro"}, domain.ErrInvalidDisplayName},
		{"negative credits", domain.UpsertRequest{TierName: "pro", DisplayName: "Pro", MonthlyCredits: decimal.NewFromInt(-1)}, domain.ErrInvalidMonthlyCredits},
		{"fractional credits", domain.UpsertRequest{TierName: "pro", DisplayName: "Pro", MonthlyCredits: decimal.RequireFromString("1.005")}, domain.ErrInvalidMonthlyCredits},
		{"negative price", domain.UpsertRequest{TierName: "pro", DisplayName: "Pro", MonthlyPrice: decimal.NewFromInt(-5)}, domain.ErrInvalidPrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpsertTier(ctx, tc.req)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestUpsertTierNormalizesAndRereads(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock.NewMockRepository(ctrl)
	svc := newTestService(t, repo)
	ctx := context.Background()
	yearly := decimal.RequireFromString("199.9")

	repo.EXPECT().Upsert(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *gorm.DB, tier *domain.Tier) error {
			require.Equal(t, "pro-plus", tier.TierName)
			require.True(t, tier.YearlyPrice.Valid)
			require.True(t, tier.Enabled)
			return nil
		})
	repo.EXPECT().FindByName(gomock.Any(), gomock.Any(), "pro-plus").
		Return(&domain.Tier{ID: 9, TierName: "pro-plus", Enabled: true}, nil)

	tier, err := svc.UpsertTier(ctx, domain.UpsertRequest{
		TierName:       "Pro Plus",
		DisplayName:    "Pro Plus",
		MonthlyCredits: decimal.NewFromInt(2500),
		MonthlyPrice:   decimal.NewFromInt(29),
		YearlyPrice:    &yearly,
	})
	require.NoError(t, err)
	require.Equal(t, snowflake.ID(9), tier.ID)
}
