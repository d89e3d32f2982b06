package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "site-audit.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 300, cfg.Classifier.CorpusWords)
	assert.Equal(t, 20, cfg.Classifier.NavTermCap)
	assert.Equal(t, 5, cfg.Classifier.CategoryTermCap)
	assert.Equal(t, "general", cfg.Classifier.DefaultIndustry)
	assert.Empty(t, cfg.Classifier.DefaultSiteType)
	assert.InDelta(t, 0.34, cfg.Classifier.EmbeddingFloor, 0.001)
	assert.InDelta(t, 0.6, cfg.Classifier.WeakConfidence, 0.001)
	assert.Equal(t, 14*24*time.Hour, cfg.Classifier.ClassificationTTL())
	assert.Equal(t, 14*24*time.Hour, cfg.Classifier.EmbeddingTTL())
	assert.Equal(t, "v1", cfg.Classifier.CacheVersion)
	assert.False(t, cfg.Remote.Enabled)
	assert.Equal(t, "annotate", cfg.Remote.Mode)
	assert.Equal(t, 800*time.Millisecond, cfg.Remote.Timeout())
	assert.Equal(t, 1, cfg.Remote.Retries)
	assert.Equal(t, 15, cfg.Breaker.WindowMins)
	assert.Equal(t, 20, cfg.Breaker.MinSamples)
	assert.InDelta(t, 0.10, cfg.Breaker.ErrorThreshold, 0.001)
	assert.Equal(t, []string{"jina-embeddings-v3", "jina-embeddings-v2-base-en"}, cfg.Embedding.Models)
	assert.Equal(t, 2*time.Second, cfg.Embedding.Timeout())
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
	assert.Equal(t, 2500, cfg.Scoring.FastLoadMs)
	assert.Equal(t, 60, cfg.Monitoring.CheckIntervalSecs)
	assert.InDelta(t, 0.05, cfg.Monitoring.ErrorRateWarn, 0.001)

	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: memory
log:
  level: debug
  format: console
classifier:
  nav_term_cap: 10
remote:
  mode: full
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Classifier.NavTermCap)
	assert.Equal(t, "full", cfg.Remote.Mode)
	// Defaults still apply for unset values
	assert.Equal(t, 300, cfg.Classifier.CorpusWords)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: memory
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("AUDIT_STORE_DRIVER", "redis")
	t.Setenv("AUDIT_LOG_LEVEL", "warn")
	t.Setenv("AUDIT_BREAKER_MIN_SAMPLES", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 50, cfg.Breaker.MinSamples)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "memory"
	cfg.Classifier = ClassifierConfig{
		CorpusWords:     300,
		CorpusMaxChars:  4000,
		NavTermCap:      20,
		CategoryTermCap: 5,
		WeakConfidence:  0.6,
		DefaultIndustry: "general",
		EmbeddingFloor:  0.34,
		CacheVersion:    "v1",
	}
	cfg.Remote = RemoteConfig{Mode: "annotate", TimeoutMs: 800, Retries: 1}
	cfg.Breaker = BreakerConfig{WindowMins: 15, MinSamples: 20, ErrorThreshold: 0.1}
	cfg.Scoring = ScoringConfig{FastLoadMs: 2500, MinWords: 300}
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Modes(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("classify"))
	assert.NoError(t, cfg.Validate("score"))
	assert.NoError(t, cfg.Validate("serve"))

	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_ServeInvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	assert.NoError(t, cfg.Validate("classify"))
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_StoreDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mongo"
	err := cfg.Validate("classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mongo"`)

	cfg.Store.Driver = "postgres"
	err = cfg.Validate("classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	// Scoring never touches the store.
	assert.NoError(t, cfg.Validate("score"))
}

func TestValidate_RemoteRequiresKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Remote.Enabled = true

	err := cfg.Validate("classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant-key"
	assert.NoError(t, cfg.Validate("classify"))
}

func TestValidate_RemoteTimeoutStaysSubSecond(t *testing.T) {
	tests := []struct {
		timeoutMs int
		ok        bool
	}{
		{800, true},
		{999, true},
		{1000, false},
		{2500, false},
		{0, false},
	}
	for _, tt := range tests {
		cfg := validDefaults()
		cfg.Remote.TimeoutMs = tt.timeoutMs
		err := cfg.Validate("classify")
		if tt.ok {
			assert.NoError(t, err, "timeout_ms=%d", tt.timeoutMs)
			continue
		}
		require.Error(t, err, "timeout_ms=%d", tt.timeoutMs)
		assert.Contains(t, err.Error(), "remote.timeout_ms must be in (0, 1000)")
	}
}

func TestValidate_Thresholds(t *testing.T) {
	cfg := validDefaults()
	cfg.Classifier.WeakConfidence = 0.99
	cfg.Classifier.EmbeddingFloor = 0
	cfg.Breaker.ErrorThreshold = 1.5
	cfg.Remote.Mode = "override"

	err := cfg.Validate("classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weak_confidence")
	assert.Contains(t, err.Error(), "embedding_floor")
	assert.Contains(t, err.Error(), "error_threshold")
	assert.Contains(t, err.Error(), `remote.mode "override"`)
}
