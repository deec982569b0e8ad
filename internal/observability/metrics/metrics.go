package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	creditTransactions metric.Int64Counter
	creditRejections   metric.Int64Counter
	cycleRenewals      metric.Int64Counter
	rateLimitAllowed   metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "creditledger"
	}
	meter := provider.Meter(name)

	creditTransactions, err := meter.Int64Counter("creditledger_transactions_total")
	if err != nil {
		return nil, err
	}
	creditRejections, err := meter.Int64Counter("creditledger_transaction_rejections_total")
	if err != nil {
		return nil, err
	}
	cycleRenewals, err := meter.Int64Counter("creditledger_cycle_renewals_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("creditledger_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("creditledger_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		creditTransactions: creditTransactions,
		creditRejections:   creditRejections,
		cycleRenewals:      cycleRenewals,
		rateLimitAllowed:   rateLimitAllowed,
		rateLimitDenied:    rateLimitDenied,
	}, nil
}

// RecordCreditTransaction counts committed ledger rows by type.
func (m *Metrics) RecordCreditTransaction(ctx context.Context, transactionType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("transaction_type", strings.TrimSpace(transactionType)))
	m.creditTransactions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCreditRejection counts transactions refused by the engine.
func (m *Metrics) RecordCreditRejection(ctx context.Context, transactionType, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("transaction_type", strings.TrimSpace(transactionType)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.creditRejections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCycleRenewal counts billing cycle renewals and yearly grants.
func (m *Metrics) RecordCycleRenewal(ctx context.Context, subscriptionType, trigger string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("subscription_type", strings.TrimSpace(subscriptionType)),
		attribute.String("trigger", strings.TrimSpace(trigger)),
	)
	m.cycleRenewals.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, scope, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("scope", strings.TrimSpace(scope)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, scope, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("scope", strings.TrimSpace(scope)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"scope":             {},
	"endpoint":          {},
	"status_code":       {},
	"transaction_type":  {},
	"subscription_type": {},
	"trigger":           {},
	"reason":            {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
