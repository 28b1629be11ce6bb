// Package config assembles the server configuration from defaults, an
// optional YAML file and LANDREG_* environment variables, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/audit"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/authz"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/cache"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/detection"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/extract"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/ha"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/jobs"
)

// Database types accepted in DatabaseConfig.Type.
const (
	DatabasePostgres = "postgres"
	DatabaseMySQL    = "mysql"
	DatabaseSQLite   = "sqlite"
)

// DatabaseConfig selects the GORM dialect and connection.
type DatabaseConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
}

// Config is the complete server configuration.
type Config struct {
	Listen    string          `yaml:"listen"`
	Database  DatabaseConfig  `yaml:"database"`
	AuthzMode authz.AuthzMode `yaml:"authzMode"`

	Detection detection.Config  `yaml:"detection"`
	Extract   extract.Config    `yaml:"extract"`
	Cache     cache.CacheConfig `yaml:"cache"`
	Jobs      jobs.JobConfig    `yaml:"jobs"`
	Audit     audit.AuditConfig `yaml:"audit"`
	HA        ha.HAConfig       `yaml:"ha"`
}

// Default returns the configuration used when neither file nor environment
// set anything.
func Default() *Config {
	return &Config{
		Listen:    ":8080",
		Database:  DatabaseConfig{Type: DatabasePostgres},
		AuthzMode: authz.AuthzModeNone,
		Detection: *detection.DefaultConfig(),
		Extract:   *extract.DefaultConfig(),
		Cache:     *cache.DefaultCacheConfig(),
		Jobs:      *jobs.DefaultJobConfig(),
		Audit:     *audit.DefaultAuditConfig(),
		HA:        *ha.DefaultHAConfig(),
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path or a missing file yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides every section from its environment variables.
//
// Server-level variables:
//   - LANDREG_LISTEN: listen address
//   - LANDREG_DATABASE_TYPE: postgres, mysql or sqlite
//   - LANDREG_DATABASE_DSN: connection string
//   - LANDREG_AUTHZ_MODE: none or groups
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LANDREG_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("LANDREG_DATABASE_TYPE"); v != "" {
		c.Database.Type = strings.ToLower(v)
	}
	if v := os.Getenv("LANDREG_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if os.Getenv("LANDREG_AUTHZ_MODE") != "" {
		c.AuthzMode = authz.ModeFromEnv()
	}

	c.Detection.ApplyEnv()
	c.Extract.ApplyEnv()
	c.Cache.ApplyEnv()
	c.Jobs.ApplyEnv()
	c.Audit.ApplyEnv()
	c.HA.ApplyEnv()
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case DatabasePostgres, DatabaseMySQL, DatabaseSQLite:
	default:
		return fmt.Errorf("invalid config: unknown database type %q (expected postgres, mysql or sqlite)", c.Database.Type)
	}
	switch c.AuthzMode {
	case authz.AuthzModeNone, authz.AuthzModeGroups:
	default:
		return fmt.Errorf("invalid config: unknown authz mode %q (expected none or groups)", c.AuthzMode)
	}
	for _, d := range c.Detection.Detectors {
		if !knownDetector(d) {
			return fmt.Errorf("invalid config: unknown detector %q", d)
		}
	}
	if c.Jobs.Concurrency < 1 {
		return fmt.Errorf("invalid config: jobs.concurrency must be at least 1")
	}
	return nil
}

func knownDetector(name string) bool {
	for _, d := range detection.AllDetectors {
		if d == name {
			return true
		}
	}
	return false
}
