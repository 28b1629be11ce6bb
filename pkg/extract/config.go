package extract

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds text extraction settings.
type Config struct {
	// Timeout bounds the extraction of a single document, OCR included.
	Timeout time.Duration `yaml:"timeout"`

	// MaxFileSize skips files larger than this many bytes. Zero disables the
	// check.
	MaxFileSize int64 `yaml:"maxFileSize"`

	// OCREnabled selects Cloud Vision OCR for images and scanned PDFs.
	OCREnabled bool `yaml:"ocrEnabled"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		MaxFileSize: 20 << 20,
		OCREnabled:  false,
	}
}

// ConfigFromEnv reads extraction configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - LANDREG_EXTRACT_TIMEOUT: seconds (default: 30)
//   - LANDREG_EXTRACT_MAX_BYTES: bytes (default: 20971520)
//   - LANDREG_OCR_ENABLED: "true" or "false" (default: "false")
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides the fields of c whose environment variables are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LANDREG_EXTRACT_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Timeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("LANDREG_EXTRACT_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			c.MaxFileSize = n
		}
	}
	if v := os.Getenv("LANDREG_OCR_ENABLED"); v != "" {
		c.OCREnabled = strings.EqualFold(v, "true") || v == "1"
	}
}
