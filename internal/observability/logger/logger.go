package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/creditledger/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the zap logger.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string
	Debug       bool

	SamplingInitial     int
	SamplingThereafter  int
	SamplingWindow      time.Duration
	IncludeCaller       bool
	IncludeStackOnError bool
}

// New builds a structured zap.Logger and registers lifecycle hooks.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Encoding = normalizeFormat(cfg.Format)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	if err := zapCfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	options := []zap.Option{}
	if cfg.IncludeCaller {
		options = append(options, zap.AddCaller())
	}
	if cfg.IncludeStackOnError {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	options = append(options, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return sampleBelowWarn(core, cfg)
	}))

	logger, err := zapCfg.Build(options...)
	if err != nil {
		return nil, err
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "creditledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	version := strings.TrimSpace(cfg.Version)

	logger = logger.With(
		zap.String("service", serviceName),
		zap.String("env", environment),
		zap.String("version", version),
	)
	zap.ReplaceGlobals(logger)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				_ = ctx
				_ = logger.Sync()
				return nil
			},
		})
	}

	return logger, nil
}

// warnBypassCore samples debug and info entries while warn and above, such as
// rejected usage or failed renewals, always reach the sink.
type warnBypassCore struct {
	zapcore.Core
	raw zapcore.Core
}

func sampleBelowWarn(core zapcore.Core, cfg Config) zapcore.Core {
	initial := cfg.SamplingInitial
	if initial <= 0 {
		initial = 100
	}
	thereafter := cfg.SamplingThereafter
	if thereafter <= 0 {
		thereafter = 100
	}
	window := cfg.SamplingWindow
	if window <= 0 {
		window = time.Second
	}
	return warnBypassCore{
		Core: zapcore.NewSamplerWithOptions(core, window, initial, thereafter),
		raw:  core,
	}
}

func (c warnBypassCore) With(fields []zapcore.Field) zapcore.Core {
	return warnBypassCore{Core: c.Core.With(fields), raw: c.raw.With(fields)}
}

func (c warnBypassCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if entry.Level >= zapcore.WarnLevel {
		return c.raw.Check(entry, ce)
	}
	return c.Core.Check(entry, ce)
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "console" {
		return "console"
	}
	return "json"
}

// FromContext returns a logger enriched with request-scoped fields.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext enriches the provided logger with correlation fields.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil {
		return base
	}

	actorType, actorID := obscontext.ActorFromContext(ctx)

	fields := []zap.Field{
		zap.String("request_id", obscontext.RequestIDFromContext(ctx)),
		zap.String("actor_type", actorType),
		zap.String("actor_id", actorID),
	}
	if userID := obscontext.UserIDFromContext(ctx); userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	fields = append(fields, traceFieldsFromContext(ctx)...)

	return base.With(fields...)
}

// ForAccount enriches base with correlation fields and the credit account id.
// A user id already carried by ctx wins.
func ForAccount(ctx context.Context, base *zap.Logger, userID int64) *zap.Logger {
	log := WithContext(ctx, base)
	if log == nil || userID <= 0 || obscontext.UserIDFromContext(ctx) != "" {
		return log
	}
	return log.With(zap.Int64("user_id", userID))
}

func traceFieldsFromContext(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	sc := span.SpanContext()
	if !sc.IsValid() {
		return []zap.Field{
			zap.String("trace_id", ""),
			zap.String("span_id", ""),
		}
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
