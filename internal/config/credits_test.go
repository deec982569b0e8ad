package config

import (
	"testing"
	"time"
)

func TestValidateCreditConfig(t *testing.T) {
	cfg := DefaultCreditConfig()
	if err := validateCreditConfig(cfg); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}

	cfg.DefaultTier = "  "
	if err := validateCreditConfig(cfg); err == nil {
		t.Fatal("expected empty default tier to be rejected")
	}

	cfg = DefaultCreditConfig()
	cfg.DefaultRate.OutputMultiplier = -1
	if err := validateCreditConfig(cfg); err == nil {
		t.Fatal("expected negative multiplier to be rejected")
	}

	cfg = DefaultCreditConfig()
	cfg.MaxApplyAttempts = 0
	if err := validateCreditConfig(cfg); err == nil {
		t.Fatal("expected zero attempts to be rejected")
	}
}

func TestStaticCreditConfigHolder(t *testing.T) {
	cfg := DefaultCreditConfig()
	cfg.TierCacheTTL = time.Second
	holder := NewStaticCreditConfigHolder(cfg)

	if got := holder.Get().TierCacheTTL; got != time.Second {
		t.Fatalf("expected tier cache ttl 1s, got %s", got)
	}

	var nilHolder *CreditConfigHolder
	if got := nilHolder.Get().DefaultTier; got != "free" {
		t.Fatalf("expected nil holder to fall back to defaults, got %q", got)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("APP_SERVICE", "ledger-test")
	t.Setenv("SCHEDULER_RUN_INTERVAL", "15m")
	t.Setenv("SCHEDULER_ENABLED_JOBS", "cycle_renewal, yearly_grant")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := Load()
	if cfg.AppName != "ledger-test" {
		t.Fatalf("expected app name from env, got %q", cfg.AppName)
	}
	if cfg.Scheduler.RunInterval != 15*time.Minute {
		t.Fatalf("expected 15m run interval, got %s", cfg.Scheduler.RunInterval)
	}
	if len(cfg.Scheduler.EnabledJobs) != 2 || cfg.Scheduler.EnabledJobs[1] != "yearly_grant" {
		t.Fatalf("unexpected enabled jobs %v", cfg.Scheduler.EnabledJobs)
	}
	if !cfg.Redis.Enabled() {
		t.Fatal("expected redis to be enabled")
	}
}
