package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/authz"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/cache"
	"github.com/Tyler-Tsurt/Land-Registration-system/pkg/detection"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "landreg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, DatabasePostgres, cfg.Database.Type)
	assert.Equal(t, authz.AuthzModeNone, cfg.AuthzMode)
	assert.Equal(t, detection.AllDetectors, cfg.Detection.Detectors)
	assert.True(t, cfg.Audit.Enabled)

	missing, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, cfg.Listen, missing.Listen)
}

func TestLoadFileKeepsUnsetDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
database:
  type: sqlite
  dsn: "file:landreg.db"
authzMode: groups
detection:
  similarityTimeout: 45s
  detectors: [spatial, identity]
cache:
  backend: ttl
jobs:
  concurrency: 5
ha:
  acquireTimeout: 1m
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, DatabaseSQLite, cfg.Database.Type)
	assert.Equal(t, "file:landreg.db", cfg.Database.DSN)
	assert.Equal(t, authz.AuthzModeGroups, cfg.AuthzMode)
	assert.Equal(t, 45*time.Second, cfg.Detection.SimilarityTimeout)
	assert.Equal(t, []string{"spatial", "identity"}, cfg.Detection.Detectors)
	assert.Equal(t, cache.BackendTTL, cfg.Cache.Backend)
	assert.Equal(t, 512, cfg.Cache.MaxSize)
	assert.Equal(t, 5, cfg.Jobs.Concurrency)
	assert.Equal(t, 3, cfg.Jobs.MaxRetries)
	assert.Equal(t, time.Minute, cfg.HA.AcquireTimeout)
	assert.True(t, cfg.HA.MigrationLockEnabled)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
database:
  type: mysql
jobs:
  concurrency: 5
extract:
  ocrEnabled: false
`)
	t.Setenv("LANDREG_LISTEN", ":7070")
	t.Setenv("LANDREG_DATABASE_TYPE", "SQLITE")
	t.Setenv("LANDREG_DATABASE_DSN", "file::memory:")
	t.Setenv("LANDREG_JOB_CONCURRENCY", "2")
	t.Setenv("LANDREG_OCR_ENABLED", "true")
	t.Setenv("LANDREG_AUTHZ_MODE", "groups")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Listen)
	assert.Equal(t, DatabaseSQLite, cfg.Database.Type)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	assert.Equal(t, 2, cfg.Jobs.Concurrency)
	assert.True(t, cfg.Extract.OCREnabled)
	assert.Equal(t, authz.AuthzModeGroups, cfg.AuthzMode)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "listen: [", "parse config"},
		{"database type", "database:\n  type: oracle\n", "unknown database type"},
		{"authz mode", "authzMode: jwt\n", "unknown authz mode"},
		{"detector", "detection:\n  detectors: [spatial, psychic]\n", "unknown detector"},
		{"concurrency", "jobs:\n  concurrency: 0\n", "concurrency"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
