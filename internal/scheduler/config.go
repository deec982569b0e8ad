package scheduler

import (
	"errors"
	"time"

	"github.com/smallbiznis/creditledger/internal/config"
)

const (
	JobCycleRenewal = "cycle_renewal"
	JobYearlyGrant  = "yearly_grant"

	leaderLockKey = "creditledger:scheduler:leader"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval   time.Duration
	BatchSize     int
	JobTimeout    time.Duration
	EnabledJobs   []string
	LeaderLockTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:   time.Hour,
		BatchSize:     100,
		JobTimeout:    5 * time.Minute,
		LeaderLockTTL: 10 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:   cfg.Scheduler.RunInterval,
		BatchSize:     cfg.Scheduler.BatchSize,
		EnabledJobs:   cfg.Scheduler.EnabledJobs,
		LeaderLockTTL: cfg.Scheduler.LeaderLockTTL,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LeaderLockTTL <= 0 {
		c.LeaderLockTTL = defaults.LeaderLockTTL
	}
	return c
}
