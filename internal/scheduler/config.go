package scheduler

import (
	"time"

	appconfig "github.com/smallbiznis/cobranca/internal/config"
)

// Config controls the reconciliation interval and batch sizing. BankCode
// scopes each cycle to the bank this deployment issues against.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	LockTTL     time.Duration
	BankCode    string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 6 * time.Hour,
		BatchSize:   50,
		LockTTL:     30 * time.Minute,
	}
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
	return c
}

func ProvideConfig(cfg appconfig.Config) Config {
	return Config{
		RunInterval: cfg.ReconcileInterval,
		BatchSize:   cfg.ReconcileBatchSize,
		BankCode:    cfg.BankCode,
	}.withDefaults()
}
