package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/creditledger/internal/audit/domain"
	"github.com/smallbiznis/creditledger/internal/config"
	creditdomain "github.com/smallbiznis/creditledger/internal/credit/domain"
	creditpackagedomain "github.com/smallbiznis/creditledger/internal/creditpackage/domain"
	creditratedomain "github.com/smallbiznis/creditledger/internal/creditrate/domain"
	"github.com/smallbiznis/creditledger/internal/observability"
	obsmiddleware "github.com/smallbiznis/creditledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/creditledger/internal/observability/metrics"
	obstracing "github.com/smallbiznis/creditledger/internal/observability/tracing"
	"github.com/smallbiznis/creditledger/internal/ratelimit"
	tierdomain "github.com/smallbiznis/creditledger/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module serves the public and admin API on one engine.
var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterAPIRoutes()
		s.RegisterAdminRoutes()
	}),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	creditSvc    creditdomain.Service
	tierSvc      tierdomain.Service
	rateSvc      creditratedomain.Service
	packageSvc   creditpackagedomain.Service
	auditSvc     auditdomain.Service
	obsMetrics   *obsmetrics.Metrics
	usageLimiter *ratelimit.UsageLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	CreditSvc    creditdomain.Service
	TierSvc      tierdomain.Service
	RateSvc      creditratedomain.Service
	PackageSvc   creditpackagedomain.Service
	AuditSvc     auditdomain.Service     `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics     `optional:"true"`
	UsageLimiter *ratelimit.UsageLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		creditSvc:    p.CreditSvc,
		tierSvc:      p.TierSvc,
		rateSvc:      p.RateSvc,
		packageSvc:   p.PackageSvc,
		auditSvc:     p.AuditSvc,
		obsMetrics:   p.ObsMetrics,
		usageLimiter: p.UsageLimiter,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Catalog --------
	api.GET("/tiers", s.ListTiers)
	api.GET("/tiers/:name", s.GetTier)
	api.GET("/packages", s.ListPackages)

	// -------- Credit accounts --------
	user := api.Group("/users/:user_id", s.UserRequired())
	{
		user.GET("/credits", s.GetCredits)
		user.GET("/transactions", s.ListTransactions)
		user.POST("/transactions", s.ApplyTransaction)
		user.POST("/usage", s.UsageRateLimit(), s.ChargeUsage)
		user.POST("/check", s.CheckCredits)
		user.GET("/ledger/verify", s.VerifyLedger)

		// -------- Subscription --------
		user.POST("/subscribe", s.Subscribe)
		user.POST("/upgrade/quote", s.QuoteUpgrade)
		user.POST("/upgrade", s.Upgrade)
		user.POST("/cancel", s.CancelSubscription)
		user.POST("/auto-renew", s.SetAutoRenew)

		user.POST("/packages/:id/purchase", s.PurchasePackage)
	}
}

func (s *Server) RegisterAdminRoutes() {
	admin := s.engine.Group("/admin", s.AdminActor())

	admin.GET("/tiers", s.AdminListTiers)
	admin.PUT("/tiers/:name", s.UpsertTier)
	admin.POST("/tiers/:name/enable", s.EnableTier)
	admin.POST("/tiers/:name/disable", s.DisableTier)

	admin.GET("/packages", s.AdminListPackages)
	admin.PUT("/packages", s.UpsertPackage)
	admin.POST("/packages/:id/enable", s.EnablePackage)
	admin.POST("/packages/:id/disable", s.DisablePackage)

	admin.GET("/rates", s.ListRates)
	admin.PUT("/rates/:model_id", s.UpsertRate)
	admin.POST("/rates/invalidate", s.InvalidateRates)

	admin.POST("/users/:user_id/advance", s.UserRequired(), s.AdvanceCycle)

	if s.auditSvc != nil {
		admin.GET("/audit-logs", s.ListAuditLogs)
	}
}
