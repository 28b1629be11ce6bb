package detection

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Detector names accepted in Config.Detectors.
const (
	DetectorSpatial  = "spatial"
	DetectorDocument = "document"
	DetectorIdentity = "identity"
	DetectorHash     = "hash"
	DetectorContent  = "content"
)

// AllDetectors lists every detector in the order a full run executes them.
var AllDetectors = []string{DetectorSpatial, DetectorDocument, DetectorIdentity, DetectorHash, DetectorContent}

// Config holds detection engine settings.
type Config struct {
	// SimilarityTimeout bounds the document similarity matrix build and the
	// content scan over other applications.
	SimilarityTimeout time.Duration `yaml:"similarityTimeout"`

	// Detectors enables a subset of AllDetectors for full runs.
	Detectors []string `yaml:"detectors"`
}

// DefaultConfig returns a Config with every detector enabled.
func DefaultConfig() *Config {
	return &Config{
		SimilarityTimeout: 2 * time.Minute,
		Detectors:         append([]string(nil), AllDetectors...),
	}
}

// ConfigFromEnv reads engine configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - LANDREG_SIMILARITY_TIMEOUT: seconds (default: 120)
//   - LANDREG_DETECTORS: comma-separated detector names (default: all)
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides the fields of c whose environment variables are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LANDREG_SIMILARITY_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.SimilarityTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("LANDREG_DETECTORS"); v != "" {
		var names []string
		for _, n := range strings.Split(v, ",") {
			n = strings.ToLower(strings.TrimSpace(n))
			for _, known := range AllDetectors {
				if n == known {
					names = append(names, n)
				}
			}
		}
		if len(names) > 0 {
			c.Detectors = names
		}
	}
}

func (c *Config) enabled(name string) bool {
	for _, n := range c.Detectors {
		if n == name {
			return true
		}
	}
	return false
}
