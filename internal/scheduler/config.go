package scheduler

import (
	"time"

	"github.com/smallbiznis/feeledger/internal/config"
)

// Config controls the class fee sync loop.
type Config struct {
	RunInterval    time.Duration
	BatchSize      int
	LockTTL        time.Duration
	ClassTimeout   time.Duration
	RunImmediately bool
}

func DefaultConfig() Config {
	return Config{
		RunInterval:  time.Hour,
		BatchSize:    50,
		LockTTL:      5 * time.Minute,
		ClassTimeout: 2 * time.Minute,
	}
}

// ProvideConfig maps the environment scheduler settings onto Config.
func ProvideConfig(cfg config.Config) Config {
	sc := cfg.Scheduler
	return Config{
		RunInterval:    sc.Interval,
		BatchSize:      sc.BatchSize,
		LockTTL:        sc.LockTTL,
		ClassTimeout:   sc.ClassTimeout,
		RunImmediately: sc.RunImmediately,
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
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.ClassTimeout <= 0 {
		c.ClassTimeout = defaults.ClassTimeout
	}
	// A class lock must outlive the sync it guards.
	if c.LockTTL < c.ClassTimeout {
		c.LockTTL = c.ClassTimeout
	}
	return c
}
