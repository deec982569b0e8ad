package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address has been configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type RateLimitConfig struct {
	Enabled    bool
	UsageRate  float64
	UsageBurst int
}

type SchedulerConfig struct {
	RunInterval   time.Duration
	BatchSize     int
	EnabledJobs   []string
	LeaderLockTTL time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "creditledger"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getenvBool("RATE_LIMIT_ENABLED", false),
			UsageRate:  getenvFloat("RATE_LIMIT_USAGE_RATE", 20),
			UsageBurst: getenvInt("RATE_LIMIT_USAGE_BURST", 40),
		},
		Scheduler: SchedulerConfig{
			RunInterval:   getenvDuration("SCHEDULER_RUN_INTERVAL", time.Hour),
			BatchSize:     getenvInt("SCHEDULER_BATCH_SIZE", 100),
			EnabledJobs:   parseList(getenv("SCHEDULER_ENABLED_JOBS", "")),
			LeaderLockTTL: getenvDuration("SCHEDULER_LEADER_LOCK_TTL", 10*time.Minute),
		},
	}

	return cfg
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewCreditConfigHolder),
)

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
