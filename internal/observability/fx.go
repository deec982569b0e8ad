package observability

import (
	"github.com/smallbiznis/creditledger/internal/observability/logger"
	"github.com/smallbiznis/creditledger/internal/observability/metrics"
	"github.com/smallbiznis/creditledger/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	gormlogger "gorm.io/gorm/logger"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		provideGormLoggerConfig,
		logger.New,
		provideTracingConfig,
		tracing.NewProvider,
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(ensureTracingProvider),
	fx.Invoke(ensureSchedulerMetrics),
)

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}

func provideLoggerConfig(cfg Config) logger.Config {
	debug := cfg.Debug()
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.Log.Level,
		Format:              cfg.Log.Format,
		Debug:               debug,
		SamplingInitial:     cfg.Log.SampleInitial,
		SamplingThereafter:  cfg.Log.SampleThereafter,
		IncludeCaller:       true,
		IncludeStackOnError: debug,
	}
}

func provideGormLoggerConfig(cfg Config) logger.GormLoggerConfig {
	gormCfg := logger.DefaultGormLoggerConfig()
	gormCfg.SlowThreshold = cfg.Log.SlowQuery
	if cfg.Debug() {
		gormCfg.Level = gormlogger.Info
	}
	return gormCfg
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:                  cfg.Telemetry.Enabled,
		ServiceName:              cfg.ServiceName,
		ServiceVersion:           cfg.Version,
		Environment:              cfg.Environment,
		ExporterEndpoint:         cfg.Telemetry.Endpoint,
		ExporterProtocol:         cfg.Telemetry.Protocol,
		SamplingRatio:            cfg.Telemetry.SamplingRatio,
		LedgerWriteSamplingRatio: cfg.Telemetry.LedgerWriteSamplingRatio,
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.Telemetry.Enabled,
		ExporterEndpoint: cfg.Telemetry.Endpoint,
		ExporterProtocol: cfg.Telemetry.Protocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
	}
}

func ensureSchedulerMetrics(cfg metrics.Config) {
	metrics.SchedulerWithConfig(cfg)
}
