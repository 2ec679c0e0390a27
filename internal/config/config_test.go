package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "sds.db", cfg.Store.SQLitePath)
	assert.Equal(t, "profiles", cfg.Catalog.ProfileDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.InDelta(t, 0.5, cfg.Gateway.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 3, cfg.Gateway.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Gateway.CacheTTL)
	assert.Equal(t, 1000, cfg.Gateway.CacheCapacity)
	assert.InDelta(t, 0.10, cfg.Gateway.AgreementBonus, 1e-9)
	assert.InDelta(t, 0.15, cfg.Gateway.DisagreementPenalty, 1e-9)
	assert.InDelta(t, 0.5, cfg.Aggregate.ModelFloor, 1e-9)
	assert.InDelta(t, 0.9, cfg.PubChem.AuthorityConf, 1e-9)
	assert.Equal(t, 4, cfg.Batch.FieldWorkers)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
store:
  driver: postgres
  database_url: postgres://localhost/sds
gateway:
  confidence_threshold: 0.7
  consensus_models:
    - claude-haiku-4-5-20251001
    - sonar-pro
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/sds", cfg.Store.DatabaseURL)
	assert.InDelta(t, 0.7, cfg.Gateway.ConfidenceThreshold, 1e-9)
	assert.Equal(t, []string{"claude-haiku-4-5-20251001", "sonar-pro"}, cfg.Gateway.ConsensusModels)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	// File values override defaults but untouched sections keep theirs.
	assert.Equal(t, 1000, cfg.Gateway.CacheCapacity)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SDS_LOG_LEVEL", "warn")
	t.Setenv("SDS_STORE_DRIVER", "postgres")
	t.Setenv("SDS_GATEWAY_CACHE_CAPACITY", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 250, cfg.Gateway.CacheCapacity)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: ["), 0o644))
	t.Chdir(dir)

	_, err := Load()
	require.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
