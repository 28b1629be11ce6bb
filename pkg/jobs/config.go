package jobs

import (
	"os"
	"strconv"
	"time"
)

// JobConfig controls job queue and worker behavior.
type JobConfig struct {
	Concurrency   int           `yaml:"concurrency"`   // Max concurrent workers. Default 3.
	MaxRetries    int           `yaml:"maxRetries"`    // Max retry attempts per job. Default 3.
	PollInterval  time.Duration `yaml:"pollInterval"`  // How often workers poll for new jobs. Default 2s.
	ClaimTimeout  time.Duration `yaml:"claimTimeout"`  // Max time a job can be in "running" before considered stuck. Default 10m.
	RetentionDays int           `yaml:"retentionDays"` // How long to keep finished jobs. Default 7.
	Enabled       bool          `yaml:"enabled"`       // Whether the worker pool runs in this process. Default true.
}

// DefaultJobConfig returns the default job configuration.
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		Concurrency:   3,
		MaxRetries:    3,
		PollInterval:  2 * time.Second,
		ClaimTimeout:  10 * time.Minute,
		RetentionDays: 7,
		Enabled:       true,
	}
}

// JobConfigFromEnv loads config from environment variables.
// LANDREG_JOB_CONCURRENCY, LANDREG_JOB_MAX_RETRIES, LANDREG_JOB_POLL_INTERVAL_SECONDS,
// LANDREG_JOB_CLAIM_TIMEOUT_MINUTES, LANDREG_JOB_RETENTION_DAYS, LANDREG_JOB_ENABLED
func JobConfigFromEnv() *JobConfig {
	cfg := DefaultJobConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides the fields of c whose environment variables are set.
func (c *JobConfig) ApplyEnv() {
	if v := os.Getenv("LANDREG_JOB_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Concurrency = n
		}
	}

	if v := os.Getenv("LANDREG_JOB_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.MaxRetries = n
		}
	}

	if v := os.Getenv("LANDREG_JOB_POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.PollInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("LANDREG_JOB_CLAIM_TIMEOUT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.ClaimTimeout = time.Duration(n) * time.Minute
		}
	}

	if v := os.Getenv("LANDREG_JOB_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RetentionDays = n
		}
	}

	if v := os.Getenv("LANDREG_JOB_ENABLED"); v != "" {
		c.Enabled, _ = strconv.ParseBool(v)
	}
}
