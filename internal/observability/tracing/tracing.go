package tracing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the tracer provider.
type Config struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	Environment      string
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64

	// LedgerWriteSamplingRatio applies to spans flagged with AttrLedgerWrite.
	LedgerWriteSamplingRatio float64
}

// AttrLedgerWrite marks spans for requests that may append ledger rows.
const AttrLedgerWrite = attribute.Key("credit.ledger_write")

// NewProvider configures the global tracer provider and propagators.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (*sdktrace.TracerProvider, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(serviceName(cfg.ServiceName)),
		semconv.ServiceVersion(strings.TrimSpace(cfg.ServiceVersion)),
		semconv.DeploymentEnvironment(strings.TrimSpace(cfg.Environment)),
	))
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(NewLedgerSampler(cfg.SamplingRatio, cfg.LedgerWriteSamplingRatio))),
	}
	if cfg.Enabled {
		exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	} else {
		opts = append(opts, sdktrace.WithSampler(sdktrace.NeverSample()))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}
	if log != nil {
		log.Info("tracing initialized",
			zap.Bool("enabled", cfg.Enabled),
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

func newExporter(protocol, endpoint string) (*otlptrace.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		return otlptracehttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

func serviceName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "creditledger"
	}
	return name
}

type ledgerSampler struct {
	reads  sdktrace.Sampler
	writes sdktrace.Sampler
}

// NewLedgerSampler samples ledger writes and everything else at separate ratios.
func NewLedgerSampler(ratio, ledgerWriteRatio float64) sdktrace.Sampler {
	return ledgerSampler{
		reads:  sdktrace.TraceIDRatioBased(clampRatio(ratio)),
		writes: sdktrace.TraceIDRatioBased(clampRatio(ledgerWriteRatio)),
	}
}

func (s ledgerSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, attr := range p.Attributes {
		if attr.Key == AttrLedgerWrite && attr.Value.AsBool() {
			return s.writes.ShouldSample(p)
		}
	}
	return s.reads.ShouldSample(p)
}

func (s ledgerSampler) Description() string {
	return fmt.Sprintf("LedgerSampler{reads:%s,writes:%s}", s.reads.Description(), s.writes.Description())
}

func clampRatio(ratio float64) float64 {
	switch {
	case ratio <= 0:
		return 0
	case ratio > 1:
		return 1
	default:
		return ratio
	}
}

// ExtractContext pulls the remote span context from inbound headers.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

var forbiddenAttributeKeys = map[attribute.Key]struct{}{
	"authorization":   {},
	"http.user_agent": {},
	"http.url":        {},
	"db.statement":    {},
	"password":        {},
	"api_key":         {},
}

// SafeAttributes drops attributes that may carry secrets or raw payloads.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := forbiddenAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

const maxErrorLength = 256

// SafeError truncates an error message before it is recorded on a span.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return nil
	}
	if len(msg) > maxErrorLength {
		msg = msg[:maxErrorLength]
	}
	return errors.New(msg)
}
