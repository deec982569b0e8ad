package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CreditConfig holds tunables for credit accounting that may change at runtime.
type CreditConfig struct {
	DefaultTier      string        `mapstructure:"defaultTier"`
	DefaultRate      RateConfig    `mapstructure:"defaultRate"`
	RateCacheTTL     time.Duration `mapstructure:"rateCacheTTL"`
	TierCacheTTL     time.Duration `mapstructure:"tierCacheTTL"`
	MaxApplyAttempts int           `mapstructure:"maxApplyAttempts"`
}

// RateConfig is the fallback model credit rate, per 1k tokens.
type RateConfig struct {
	BaseCreditPer1K  float64 `mapstructure:"baseCreditPer1k"`
	InputMultiplier  float64 `mapstructure:"inputMultiplier"`
	OutputMultiplier float64 `mapstructure:"outputMultiplier"`
}

func DefaultCreditConfig() CreditConfig {
	return CreditConfig{
		DefaultTier: "free",
		DefaultRate: RateConfig{
			BaseCreditPer1K:  1.0,
			InputMultiplier:  0.5,
			OutputMultiplier: 1.5,
		},
		RateCacheTTL:     5 * time.Minute,
		TierCacheTTL:     5 * time.Minute,
		MaxApplyAttempts: 3,
	}
}

type CreditConfigHolder struct {
	current atomic.Value // holds CreditConfig
}

// NewCreditConfigHolder reads credits.yml and keeps it hot-reloaded.
func NewCreditConfigHolder() (*CreditConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("credits")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/creditledger/config")
	v.AddConfigPath("/etc/creditledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CREDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCreditConfig()
	v.SetDefault("credits.defaultTier", defaults.DefaultTier)
	v.SetDefault("credits.defaultRate.baseCreditPer1k", defaults.DefaultRate.BaseCreditPer1K)
	v.SetDefault("credits.defaultRate.inputMultiplier", defaults.DefaultRate.InputMultiplier)
	v.SetDefault("credits.defaultRate.outputMultiplier", defaults.DefaultRate.OutputMultiplier)
	v.SetDefault("credits.rateCacheTTL", defaults.RateCacheTTL)
	v.SetDefault("credits.tierCacheTTL", defaults.TierCacheTTL)
	v.SetDefault("credits.maxApplyAttempts", defaults.MaxApplyAttempts)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg CreditConfig
	if err := v.UnmarshalKey("credits", &cfg); err != nil {
		return nil, err
	}
	if err := validateCreditConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticCreditConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CreditConfig
		if err := v.UnmarshalKey("credits", &updated); err != nil {
			log.Printf("[credit-config] reload failed: %v", err)
			return
		}
		if err := validateCreditConfig(updated); err != nil {
			log.Printf("[credit-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[credit-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticCreditConfigHolder wraps a fixed config, used by tests and tools.
func NewStaticCreditConfigHolder(cfg CreditConfig) *CreditConfigHolder {
	holder := &CreditConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *CreditConfigHolder) Get() CreditConfig {
	if h == nil {
		return DefaultCreditConfig()
	}
	return h.current.Load().(CreditConfig)
}

func validateCreditConfig(cfg CreditConfig) error {
	if strings.TrimSpace(cfg.DefaultTier) == "" {
		return errors.New("credits.defaultTier cannot be empty")
	}
	if cfg.DefaultRate.BaseCreditPer1K < 0 || cfg.DefaultRate.InputMultiplier < 0 || cfg.DefaultRate.OutputMultiplier < 0 {
		return errors.New("credits.defaultRate values cannot be negative")
	}
	if cfg.MaxApplyAttempts <= 0 {
		return errors.New("credits.maxApplyAttempts must be positive")
	}
	return nil
}
