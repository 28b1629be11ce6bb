// Package ha provides the cross-replica locks the registry needs: one around
// schema migration and one per application around conflict detection.
package ha

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// HAConfig holds lock configuration.
type HAConfig struct {
	// MigrationLockEnabled controls whether AutoMigrate runs under a lock.
	MigrationLockEnabled bool `yaml:"migrationLockEnabled"`

	// RetryInterval is how often the table-based lock retries acquisition.
	RetryInterval time.Duration `yaml:"retryInterval"`

	// AcquireTimeout bounds how long a caller waits for a held lock.
	AcquireTimeout time.Duration `yaml:"acquireTimeout"`

	// StaleLockAge is the age after which a table lock row is assumed to
	// belong to a crashed holder and is taken over.
	StaleLockAge time.Duration `yaml:"staleLockAge"`

	// Identity names this instance in lock rows.
	Identity string `yaml:"identity"`
}

// DefaultHAConfig returns an HAConfig with sensible defaults.
func DefaultHAConfig() *HAConfig {
	return &HAConfig{
		MigrationLockEnabled: true,
		RetryInterval:        500 * time.Millisecond,
		AcquireTimeout:       2 * time.Minute,
		StaleLockAge:         10 * time.Minute,
		Identity:             defaultIdentity(),
	}
}

// HAConfigFromEnv reads lock configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - LANDREG_MIGRATION_LOCK_ENABLED: "true" or "false" (default: "true")
//   - LANDREG_LOCK_RETRY_INTERVAL_MS: milliseconds (default: 500)
//   - LANDREG_LOCK_ACQUIRE_TIMEOUT: seconds (default: 120)
//   - LANDREG_LOCK_STALE_AGE: seconds (default: 600)
//   - LANDREG_INSTANCE_ID: instance identity (default: hostname)
func HAConfigFromEnv() *HAConfig {
	cfg := DefaultHAConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides the fields of c whose environment variables are set.
func (c *HAConfig) ApplyEnv() {
	if v := os.Getenv("LANDREG_MIGRATION_LOCK_ENABLED"); v != "" {
		c.MigrationLockEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("LANDREG_LOCK_RETRY_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.RetryInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("LANDREG_LOCK_ACQUIRE_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.AcquireTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("LANDREG_LOCK_STALE_AGE"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.StaleLockAge = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("LANDREG_INSTANCE_ID"); v != "" {
		c.Identity = v
	}
}

func defaultIdentity() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "unknown"
	}
	return hostname
}
