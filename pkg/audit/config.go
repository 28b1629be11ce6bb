package audit

import (
	"os"
	"strconv"
)

// AuditConfig controls audit behavior.
type AuditConfig struct {
	Enabled   bool `yaml:"enabled"`   // Whether the request middleware is active
	LogDenied bool `yaml:"logDenied"` // Whether to log denied (403) requests
}

// DefaultAuditConfig returns the default configuration.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:   true,
		LogDenied: true,
	}
}

// AuditConfigFromEnv loads config from environment variables.
// LANDREG_AUDIT_ENABLED, LANDREG_AUDIT_LOG_DENIED
func AuditConfigFromEnv() *AuditConfig {
	cfg := DefaultAuditConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides the fields of c whose environment variables are set.
func (c *AuditConfig) ApplyEnv() {
	if v := os.Getenv("LANDREG_AUDIT_ENABLED"); v != "" {
		c.Enabled, _ = strconv.ParseBool(v)
	}

	if v := os.Getenv("LANDREG_AUDIT_LOG_DENIED"); v != "" {
		c.LogDenied, _ = strconv.ParseBool(v)
	}
}
