package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billingcycledomain "github.com/smallbiznis/creditledger/internal/billingcycle/domain"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/smallbiznis/creditledger/internal/credit/domain"
	creditledgerdomain "github.com/smallbiznis/creditledger/internal/creditledger/domain"
	creditratedomain "github.com/smallbiznis/creditledger/internal/creditrate/domain"
	"github.com/smallbiznis/creditledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/creditledger/internal/observability/metrics"
	tierdomain "github.com/smallbiznis/creditledger/internal/tier/domain"
	"github.com/smallbiznis/creditledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var errTierChanged = errors.New("tier_changed")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Ledger  creditledgerdomain.Repository
	Tiers   tierdomain.Service
	Cycles  billingcycledomain.Manager
	Rates   creditratedomain.Service
	Metrics *obsmetrics.Metrics        `optional:"true"`
	Clock   clock.Clock                `optional:"true"`
	Config  *config.CreditConfigHolder `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	ledger  creditledgerdomain.Repository
	tiers   tierdomain.Service
	cycles  billingcycledomain.Manager
	rates   creditratedomain.Service
	metrics *obsmetrics.Metrics
	clock   clock.Clock
	config  *config.CreditConfigHolder
}

func NewService(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.NewSystemClock()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("credit.service"),
		genID:   p.GenID,
		ledger:  p.Ledger,
		tiers:   p.Tiers,
		cycles:  p.Cycles,
		rates:   p.Rates,
		metrics: p.Metrics,
		clock:   c,
		config:  p.Config,
	}
}

func (s *Service) ApplyTransaction(ctx context.Context, req domain.ApplyRequest) (*creditledgerdomain.Transaction, error) {
	if req.UserID <= 0 {
		return nil, domain.ErrInvalidUserID
	}
	if err := validateAmount(req.Type, req.Amount); err != nil {
		s.metrics.RecordCreditRejection(ctx, string(req.Type), errorCode(err))
		return nil, err
	}
	referenceID := strings.TrimSpace(req.ReferenceID)

	m, err := s.withSubscription(ctx, req.UserID, true, func(ctx context.Context, tx *gorm.DB, m *mutation) error {
		if referenceID != "" {
			existing, err := s.ledger.FindTransactionByReference(ctx, tx, req.UserID, referenceID, req.Type)
			if err != nil {
				return err
			}
			if existing != nil {
				return domain.ErrDuplicateReference
			}
		}

		if err := s.settle(m, triggerLazy); err != nil {
			return err
		}
		if m.fail != nil {
			return nil
		}
		if req.Type == creditledgerdomain.TransactionTypeUsage && !m.sub.IsActive() {
			m.fail = domain.ErrSubscriptionExpired
			return nil
		}

		row, err := s.post(m, entry{
			txnType:       req.Type,
			amount:        req.Amount,
			referenceID:   referenceID,
			referenceType: req.ReferenceType,
			description:   req.Description,
			extra:         req.ExtraData,
		})
		if err != nil {
			var insufficient *domain.InsufficientCreditsError
			if errors.As(err, &insufficient) {
				m.fail = err
				return nil
			}
			return err
		}
		m.result = row
		return nil
	})
	if err != nil {
		s.metrics.RecordCreditRejection(ctx, string(req.Type), errorCode(err))
		return nil, err
	}

	s.logger(ctx, req.UserID).Debug("credit transaction applied",
		zap.String("transaction_type", string(req.Type)),
		zap.String("credits", req.Amount.String()),
		zap.String("balance_after", m.result.BalanceAfter.String()),
	)
	return m.result, nil
}

func (s *Service) FindByReference(ctx context.Context, userID int64, referenceID string, txnType creditledgerdomain.TransactionType) (*creditledgerdomain.Transaction, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidUserID
	}
	referenceID = strings.TrimSpace(referenceID)
	if referenceID == "" {
		return nil, domain.ErrInvalidReference
	}
	if !txnType.Valid() {
		return nil, domain.ErrInvalidTransactionType
	}
	txn, err := s.ledger.FindTransactionByReference(ctx, s.db, userID, referenceID, txnType)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, domain.ErrTransactionNotFound
	}
	return txn, nil
}

type lockedFunc func(ctx context.Context, tx *gorm.DB, m *mutation) error

// withSubscription runs fn against the row-locked subscription of userID in a
// single DB transaction and persists whatever fn staged on the mutation.
// The tier is resolved before the lock is taken; when the locked row turns
// out to be on another tier, or the version check loses a race, the whole
// attempt is retried.
func (s *Service) withSubscription(ctx context.Context, userID int64, provision bool, fn lockedFunc) (*mutation, error) {
	attempts := s.config.Get().MaxApplyAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		peek, err := s.ledger.FindSubscriptionByUserID(ctx, s.db, userID)
		if err != nil {
			return nil, err
		}
		if peek == nil {
			if !provision {
				return nil, domain.ErrSubscriptionNotFound
			}
			if peek, err = s.EnsureSubscription(ctx, userID); err != nil {
				return nil, err
			}
		}
		tier, err := s.lookupTier(ctx, peek.Tier)
		if err != nil {
			return nil, err
		}

		var m *mutation
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			sub, err := s.ledger.FindSubscriptionByUserIDForUpdate(ctx, tx, userID)
			if err != nil {
				return err
			}
			if sub == nil {
				return domain.ErrSubscriptionNotFound
			}
			if sub.Tier != peek.Tier {
				return errTierChanged
			}

			m = newMutation(sub, tier, s.clock.Now())
			if err := fn(ctx, tx, m); err != nil {
				return err
			}
			return s.persist(ctx, tx, m)
		})

		switch {
		case err == nil:
			s.recordCommitted(ctx, m)
			if m.fail != nil {
				return m, m.fail
			}
			return m, nil
		case errors.Is(err, errTierChanged),
			errors.Is(err, creditledgerdomain.ErrVersionConflict),
			db.IsSerializationFailure(err):
			lastErr = err
			s.logger(ctx, userID).Debug("retrying subscription mutation",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		default:
			return nil, err
		}
	}

	s.logger(ctx, userID).Warn("subscription mutation gave up after retries",
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return nil, domain.ErrConcurrentModification
}

// persist writes the staged subscription and ledger rows. The subscription
// update is version checked so a writer that slipped past the row lock
// forces a retry.
func (s *Service) persist(ctx context.Context, tx *gorm.DB, m *mutation) error {
	if !m.dirty {
		return nil
	}
	m.sub.CurrentCredits = m.sub.Balance()
	if err := m.sub.Validate(); err != nil {
		return err
	}
	m.sub.UpdatedAt = m.now
	if err := s.ledger.UpdateSubscription(ctx, tx, m.sub, m.version); err != nil {
		return err
	}
	for i := range m.rows {
		if err := s.ledger.AppendTransaction(ctx, tx, &m.rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// entry is a ledger row waiting to be posted against a mutation.
type entry struct {
	txnType       creditledgerdomain.TransactionType
	amount        decimal.Decimal
	referenceID   string
	referenceType string
	description   string
	extra         map[string]any
}

func (s *Service) lookupTier(ctx context.Context, tierName string) (*tierdomain.Tier, error) {
	tier, err := s.tiers.GetTier(ctx, tierName)
	if errors.Is(err, tierdomain.ErrNotFound) || errors.Is(err, tierdomain.ErrInvalidTierName) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tier, nil
}

func (s *Service) recordCommitted(ctx context.Context, m *mutation) {
	for _, row := range m.rows {
		s.metrics.RecordCreditTransaction(ctx, string(row.TransactionType))
	}
	for _, r := range m.renewals {
		s.metrics.RecordCycleRenewal(ctx, string(r.subscriptionType), r.trigger)
	}
	if m.fromStatus != m.sub.Status {
		s.logger(ctx, m.sub.UserID).Info("subscription status changed",
			zap.String("from", string(m.fromStatus)),
			zap.String("to", string(m.sub.Status)),
		)
	}
}

func (s *Service) logger(ctx context.Context, userID int64) *zap.Logger {
	return logger.ForAccount(ctx, s.log, userID)
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func extraData(extra map[string]any) datatypes.JSONMap {
	if len(extra) == 0 {
		return nil
	}
	return datatypes.JSONMap(extra)
}

func errorCode(err error) string {
	var insufficient *domain.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		return domain.ErrInsufficientCredits.Error()
	}
	msg := err.Error()
	if i := strings.IndexAny(msg, ": "); i > 0 {
		return msg[:i]
	}
	return msg
}
