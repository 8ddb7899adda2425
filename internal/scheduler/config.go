package scheduler

import (
	"time"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval       time.Duration
	JobTimeout        time.Duration
	OrderBatchSize    int
	DispatchBatchSize int
	LockTTL           time.Duration
	// ExpireAfterMonths is how many whole months a finalized pending
	// commission survives before the sweep expires it.
	ExpireAfterMonths int
	// EnabledJobs limits which jobs this instance runs; empty means all.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       time.Minute,
		JobTimeout:        30 * time.Second,
		OrderBatchSize:    25,
		DispatchBatchSize: 50,
		LockTTL:           2 * time.Minute,
		ExpireAfterMonths: 3,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.OrderBatchSize <= 0 {
		c.OrderBatchSize = defaults.OrderBatchSize
	}
	if c.DispatchBatchSize <= 0 {
		c.DispatchBatchSize = defaults.DispatchBatchSize
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.ExpireAfterMonths <= 0 {
		c.ExpireAfterMonths = defaults.ExpireAfterMonths
	}
	return c
}
