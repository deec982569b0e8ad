package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/creditledger/internal/audit/domain"
	"github.com/smallbiznis/creditledger/internal/audit/masking"
	"github.com/smallbiznis/creditledger/internal/clock"
	creditdomain "github.com/smallbiznis/creditledger/internal/credit/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	"github.com/smallbiznis/creditledger/internal/creditpackage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Credits creditdomain.Service
	Clock   clock.Clock         `optional:"true"`
	Audit   auditdomain.Service `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	credits creditdomain.Service
	clock   clock.Clock
	audit   auditdomain.Service
}

func NewService(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.NewSystemClock()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("creditpackage.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		credits: p.Credits,
		clock:   c,
		audit:   p.Audit,
	}
}

func (s *Service) List(ctx context.Context, includeDisabled bool) ([]domain.Package, error) {
	items, err := s.repo.List(ctx, s.db, !includeDisabled)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Package{}
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Package, error) {
	pkg, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, domain.ErrNotFound
	}
	return pkg, nil
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (*domain.Package, error) {
	name := slug.Make(strings.TrimSpace(req.PackageName))
	if name == "" {
		return nil, domain.ErrInvalidPackageName
	}
	if !req.Credits.IsPositive() || !validAmount(req.Credits) {
		return nil, domain.ErrInvalidCredits
	}
	if req.BonusCredits.IsNegative() || !validAmount(req.BonusCredits) {
		return nil, domain.ErrInvalidCredits
	}
	if req.Price.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	now := s.clock.Now()
	record := &domain.Package{
		ID:           s.genID.Generate(),
		PackageName:  name,
		Credits:      req.Credits,
		BonusCredits: req.BonusCredits,
		Price:        req.Price.Round(2),
		Description:  strings.TrimSpace(req.Description),
		Enabled:      enabled,
		SortOrder:    req.SortOrder,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Upsert(ctx, s.db, record); err != nil {
		return nil, err
	}

	pkg, err := s.repo.FindByName(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, domain.ErrNotFound
	}
	s.log.Info("credit package upserted",
		zap.String("package_name", name),
		zap.String("credits", pkg.Credits.String()),
		zap.String("bonus_credits", pkg.BonusCredits.String()),
	)
	return pkg, nil
}

func (s *Service) SetEnabled(ctx context.Context, id snowflake.ID, enabled bool) (*domain.Package, error) {
	affected, err := s.repo.SetEnabled(ctx, s.db, id, enabled)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrNotFound
	}
	return s.Get(ctx, id)
}

// Purchase credits the package to the user: one purchase row, plus a bonus
// row when the package carries bonus credits. Both rows are keyed on the
// payment reference, so a retried purchase completes instead of double
// crediting.
func (s *Service) Purchase(ctx context.Context, req domain.PurchaseRequest) (*domain.PurchaseResult, error) {
	if req.UserID <= 0 {
		return nil, creditdomain.ErrInvalidUserID
	}
	reference := strings.TrimSpace(req.PaymentReference)
	if reference == "" {
		return nil, domain.ErrInvalidPaymentReference
	}
	pkg, err := s.Get(ctx, req.PackageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Enabled {
		return nil, domain.ErrPackageUnavailable
	}

	extra := map[string]any{
		"package_id":   strconv.FormatInt(pkg.ID.Int64(), 10),
		"package_name": pkg.PackageName,
		"price":        pkg.Price.StringFixed(2),
	}
	purchase, err := s.applyOnce(ctx, creditdomain.ApplyRequest{
		UserID:        req.UserID,
		Type:          creditledgerdomain.TransactionTypePurchase,
		Amount:        pkg.Credits,
		ReferenceID:   reference,
		ReferenceType: creditledgerdomain.ReferenceTypePayment,
		Description:   "Credit package: " + pkg.PackageName,
		ExtraData:     extra,
	})
	if err != nil {
		return nil, err
	}
	result := &domain.PurchaseResult{Package: *pkg, Purchase: *purchase}

	if pkg.BonusCredits.IsPositive() {
		bonus, err := s.applyOnce(ctx, creditdomain.ApplyRequest{
			UserID:        req.UserID,
			Type:          creditledgerdomain.TransactionTypeBonus,
			Amount:        pkg.BonusCredits,
			ReferenceID:   reference,
			ReferenceType: creditledgerdomain.ReferenceTypePayment,
			Description:   "Bonus for credit package: " + pkg.PackageName,
			ExtraData:     extra,
		})
		if err != nil {
			return nil, err
		}
		result.Bonus = bonus
	}

	s.log.Info("credit package purchased",
		zap.Int64("user_id", req.UserID),
		zap.String("package_name", pkg.PackageName),
		zap.String("payment_reference", masking.MaskSecret(reference)),
	)

	if s.audit != nil {
		actorID := strconv.FormatInt(req.UserID, 10)
		targetID := strconv.FormatInt(pkg.ID.Int64(), 10)
		metadata := masking.MaskFields(map[string]any{
			"payment_reference": reference,
			"package_name":      pkg.PackageName,
			"total_credits":     pkg.TotalCredits().String(),
			"purchase_id":       strconv.FormatInt(purchase.ID.Int64(), 10),
		}, "payment_reference")
		_ = s.audit.AuditLog(ctx, string(auditdomain.ActorTypeUser), &actorID, "credit_package.purchase", "credit_package", &targetID, metadata)
	}
	return result, nil
}

// applyOnce applies req, returning the original row when the reference was
// already used for the same transaction type.
func (s *Service) applyOnce(ctx context.Context, req creditdomain.ApplyRequest) (*creditledgerdomain.Transaction, error) {
	txn, err := s.credits.ApplyTransaction(ctx, req)
	if errors.Is(err, creditdomain.ErrDuplicateReference) {
		return s.credits.FindByReference(ctx, req.UserID, req.ReferenceID, req.Type)
	}
	return txn, err
}

func validAmount(v decimal.Decimal) bool {
	return v.Equal(v.Round(2))
}
