package cache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names a TextCache implementation.
type Backend string

const (
	BackendLRU Backend = "lru"
	BackendTTL Backend = "ttl"
)

// CacheConfig holds configuration for the extracted-text cache.
type CacheConfig struct {
	// Enabled controls whether extracted text is cached at all.
	Enabled bool `yaml:"enabled"`

	// Backend selects the implementation: "lru" (bounded) or "ttl"
	// (unbounded, expiring).
	Backend Backend `yaml:"backend"`

	// TTL is how long an entry stays valid.
	TTL time.Duration `yaml:"ttl"`

	// MaxSize is the maximum number of entries for the lru backend.
	MaxSize int `yaml:"maxSize"`
}

// DefaultCacheConfig returns a CacheConfig with sensible defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled: true,
		Backend: BackendLRU,
		TTL:     time.Hour,
		MaxSize: 512,
	}
}

// CacheConfigFromEnv reads cache configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - LANDREG_TEXT_CACHE_ENABLED: "true" or "false" (default: "true")
//   - LANDREG_TEXT_CACHE_BACKEND: "lru" or "ttl" (default: "lru")
//   - LANDREG_TEXT_CACHE_TTL: seconds (default: 3600)
//   - LANDREG_TEXT_CACHE_MAX_SIZE: max entries (default: 512)
func CacheConfigFromEnv() *CacheConfig {
	cfg := DefaultCacheConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides the fields of c whose environment variables are set.
func (c *CacheConfig) ApplyEnv() {
	if v := os.Getenv("LANDREG_TEXT_CACHE_ENABLED"); v != "" {
		c.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("LANDREG_TEXT_CACHE_BACKEND"); v != "" {
		switch Backend(strings.ToLower(v)) {
		case BackendTTL:
			c.Backend = BackendTTL
		default:
			c.Backend = BackendLRU
		}
	}
	if v := os.Getenv("LANDREG_TEXT_CACHE_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.TTL = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("LANDREG_TEXT_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxSize = n
		}
	}
}

// New builds the TextCache described by cfg. It returns nil when caching is
// disabled; callers treat a nil TextCache as "no cache".
func New(cfg *CacheConfig) TextCache {
	if cfg == nil {
		cfg = DefaultCacheConfig()
	}
	if !cfg.Enabled {
		return nil
	}
	if cfg.Backend == BackendTTL {
		return NewTTLCache(cfg.TTL, 2*cfg.TTL)
	}
	return NewLRUCache(cfg.MaxSize, cfg.TTL)
}
