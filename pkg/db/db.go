package db

import (
	"context"
	"time"

	"github.com/smallbiznis/creditledger/internal/config"
	obslogger "github.com/smallbiznis/creditledger/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(NewConfig),
	fx.Provide(Open),
)

// Open connects to the configured database and installs metrics and tracing plugins.
func Open(lc fx.Lifecycle, cfg Config, appCfg config.Config, gormLogCfg obslogger.GormLoggerConfig, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         obslogger.NewGormLogger(gormLogCfg),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          cfg.Name,
		RefreshInterval: 15,
		StartServer:     false,
		Labels: map[string]string{
			"service": appCfg.AppName,
		},
	})); err != nil {
		return nil, err
	}
	if err := conn.Use(otelgorm.NewPlugin()); err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	if cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Second)
	}

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				log.Info("closing database connection")
				return sqlDB.Close()
			},
		})
	}

	log.Info("database connected",
		zap.String("type", cfg.Type),
		zap.String("host", cfg.Host),
		zap.String("name", cfg.Name),
	)
	return conn, nil
}
