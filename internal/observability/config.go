package observability

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/creditledger/internal/config"
)

// Config groups the logging and telemetry settings of the credit ledger.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	Log       LogConfig
	Telemetry TelemetryConfig
}

type LogConfig struct {
	Level  string
	Format string

	// Entries at warn and above bypass sampling.
	SampleInitial    int
	SampleThereafter int

	SlowQuery time.Duration
}

type TelemetryConfig struct {
	Enabled  bool
	Endpoint string
	Protocol string

	SamplingRatio            float64
	LedgerWriteSamplingRatio float64
}

// LoadConfig layers OTEL_* and LOG_* overrides on top of the application config.
func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "creditledger"
	}

	protocol := envString("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	if traces := envString("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", ""); traces != "" {
		protocol = traces
	}

	return Config{
		ServiceName: serviceName,
		Environment: envString("DEPLOYMENT_ENV", cfg.Environment),
		Version:     envString("SERVICE_VERSION", cfg.AppVersion),
		Log: LogConfig{
			Level:            strings.ToLower(envString("LOG_LEVEL", "info")),
			Format:           strings.ToLower(envString("LOG_FORMAT", "json")),
			SampleInitial:    envInt("LOG_SAMPLE_INITIAL", 100),
			SampleThereafter: envInt("LOG_SAMPLE_THEREAFTER", 100),
			SlowQuery:        envDuration("LOG_SLOW_QUERY_THRESHOLD", 200*time.Millisecond),
		},
		Telemetry: TelemetryConfig{
			Enabled:                  envBool("OTEL_ENABLED", true),
			Endpoint:                 envString("OTEL_EXPORTER_OTLP_ENDPOINT", strings.TrimSpace(cfg.OTLPEndpoint)),
			Protocol:                 strings.ToLower(protocol),
			SamplingRatio:            envFloat("OTEL_SAMPLING_RATIO", 0.1),
			LedgerWriteSamplingRatio: envFloat("OTEL_LEDGER_WRITE_SAMPLING_RATIO", 1),
		},
	}
}

func (c Config) Debug() bool {
	if c.Log.Level == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func envString(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(def)
}

func envBool(key string, def bool) bool {
	parsed, err := strconv.ParseBool(envString(key, ""))
	if err != nil {
		return def
	}
	return parsed
}

func envInt(key string, def int) int {
	parsed, err := strconv.Atoi(envString(key, ""))
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func envFloat(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(envString(key, ""), 64)
	if err != nil {
		return def
	}
	return parsed
}

func envDuration(key string, def time.Duration) time.Duration {
	parsed, err := time.ParseDuration(envString(key, ""))
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}
