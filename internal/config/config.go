package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Embedding  EmbeddingConfig  `yaml:"embedding" mapstructure:"embedding"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Remote     RemoteConfig     `yaml:"remote" mapstructure:"remote"`
	Breaker    BreakerConfig    `yaml:"breaker" mapstructure:"breaker"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the key-value cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RedisAddr   string `yaml:"redis_addr" mapstructure:"redis_addr"`
}

// AnthropicConfig holds Anthropic API settings for the remote classifier.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	HaikuModel string `yaml:"haiku_model" mapstructure:"haiku_model"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Key        string   `yaml:"key" mapstructure:"key"`
	BaseURL    string   `yaml:"base_url" mapstructure:"base_url"`
	Models     []string `yaml:"models" mapstructure:"models"`
	TimeoutMs  int      `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	RatePerSec float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// Timeout returns the per-call embedding timeout.
func (c EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ClassifierConfig configures corpus building, confidence thresholds,
// fallbacks and caching for site classification.
type ClassifierConfig struct {
	CorpusWords            int     `yaml:"corpus_words" mapstructure:"corpus_words"`
	CorpusMaxChars         int     `yaml:"corpus_max_chars" mapstructure:"corpus_max_chars"`
	NavTermCap             int     `yaml:"nav_term_cap" mapstructure:"nav_term_cap"`
	CategoryTermCap        int     `yaml:"category_term_cap" mapstructure:"category_term_cap"`
	WeakConfidence         float64 `yaml:"weak_confidence" mapstructure:"weak_confidence"`
	DefaultSiteType        string  `yaml:"default_site_type" mapstructure:"default_site_type"`
	DefaultIndustry        string  `yaml:"default_industry" mapstructure:"default_industry"`
	ClassificationTTLHours int     `yaml:"classification_ttl_hours" mapstructure:"classification_ttl_hours"`
	EmbeddingTTLHours      int     `yaml:"embedding_ttl_hours" mapstructure:"embedding_ttl_hours"`
	EmbeddingFloor         float64 `yaml:"embedding_floor" mapstructure:"embedding_floor"`
	ClustersFile           string  `yaml:"clusters_file" mapstructure:"clusters_file"`
	CacheVersion           string  `yaml:"cache_version" mapstructure:"cache_version"`
}

// ClassificationTTL returns the site classification cache TTL.
func (c ClassifierConfig) ClassificationTTL() time.Duration {
	return time.Duration(c.ClassificationTTLHours) * time.Hour
}

// EmbeddingTTL returns the reference embedding cache TTL.
func (c ClassifierConfig) EmbeddingTTL() time.Duration {
	return time.Duration(c.EmbeddingTTLHours) * time.Hour
}

// RemoteConfig configures the optional remote-model second opinion.
type RemoteConfig struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	Mode           string `yaml:"mode" mapstructure:"mode"`
	TimeoutMs      int    `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	Retries        int    `yaml:"retries" mapstructure:"retries"`
	ResultTTLHours int    `yaml:"result_ttl_hours" mapstructure:"result_ttl_hours"`
}

// Timeout returns the budget for one remote call, retry included.
func (c RemoteConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ResultTTL returns the remote result cache TTL.
func (c RemoteConfig) ResultTTL() time.Duration {
	return time.Duration(c.ResultTTLHours) * time.Hour
}

// BreakerConfig configures the rolling-window circuit breaker guarding the
// remote model.
type BreakerConfig struct {
	WindowMins     int     `yaml:"window_mins" mapstructure:"window_mins"`
	MinSamples     int     `yaml:"min_samples" mapstructure:"min_samples"`
	ErrorThreshold float64 `yaml:"error_threshold" mapstructure:"error_threshold"`
}

// ScoringConfig holds tunables for the pillar scoring engine.
type ScoringConfig struct {
	FastLoadMs int `yaml:"fast_load_ms" mapstructure:"fast_load_ms"`
	MinWords   int `yaml:"min_words" mapstructure:"min_words"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures the background breaker watch and alert webhook.
type MonitoringConfig struct {
	CheckIntervalSecs int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	WebhookURL        string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	ErrorRateWarn     float64 `yaml:"error_rate_warn" mapstructure:"error_rate_warn"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "site-audit.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("embedding.base_url", "https://api.jina.ai")
	v.SetDefault("embedding.models", []string{"jina-embeddings-v3", "jina-embeddings-v2-base-en"})
	v.SetDefault("embedding.timeout_ms", 2000)
	v.SetDefault("embedding.rate_per_sec", 5)
	v.SetDefault("classifier.corpus_words", 300)
	v.SetDefault("classifier.corpus_max_chars", 4000)
	v.SetDefault("classifier.nav_term_cap", 20)
	v.SetDefault("classifier.category_term_cap", 5)
	v.SetDefault("classifier.weak_confidence", 0.6)
	v.SetDefault("classifier.default_site_type", "")
	v.SetDefault("classifier.default_industry", "general")
	v.SetDefault("classifier.classification_ttl_hours", 336)
	v.SetDefault("classifier.embedding_ttl_hours", 336)
	v.SetDefault("classifier.embedding_floor", 0.34)
	v.SetDefault("classifier.clusters_file", "")
	v.SetDefault("classifier.cache_version", "v1")
	v.SetDefault("remote.enabled", false)
	v.SetDefault("remote.mode", "annotate")
	v.SetDefault("remote.timeout_ms", 800)
	v.SetDefault("remote.retries", 1)
	v.SetDefault("remote.result_ttl_hours", 24)
	v.SetDefault("breaker.window_mins", 15)
	v.SetDefault("breaker.min_samples", 20)
	v.SetDefault("breaker.error_threshold", 0.10)
	v.SetDefault("scoring.fast_load_ms", 2500)
	v.SetDefault("scoring.min_words", 300)
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.check_interval_secs", 60)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.error_rate_warn", 0.05)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is internally consistent for the
// given command mode: "classify", "score" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "classify":
		errs = append(errs, c.validateClassify()...)
	case "score":
		errs = append(errs, c.validateScoring()...)
	case "serve":
		errs = append(errs, c.validateClassify()...)
		errs = append(errs, c.validateScoring()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown mode %q", mode))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateClassify() []string {
	var errs []string

	switch c.Store.Driver {
	case "memory", "sqlite", "postgres", "redis":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of memory, sqlite, postgres, redis", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}
	if c.Store.Driver == "redis" && c.Store.RedisAddr == "" {
		errs = append(errs, "store.redis_addr is required for redis")
	}

	cl := c.Classifier
	if cl.CorpusWords <= 0 {
		errs = append(errs, "classifier.corpus_words must be > 0")
	}
	if cl.NavTermCap <= 0 {
		errs = append(errs, "classifier.nav_term_cap must be > 0")
	}
	if cl.CategoryTermCap < 0 || cl.CategoryTermCap > 5 {
		errs = append(errs, "classifier.category_term_cap must be between 0 and 5")
	}
	if cl.WeakConfidence < 0.5 || cl.WeakConfidence > 0.95 {
		errs = append(errs, "classifier.weak_confidence must be between 0.5 and 0.95")
	}
	if cl.EmbeddingFloor <= 0 || cl.EmbeddingFloor > 1 {
		errs = append(errs, "classifier.embedding_floor must be in (0, 1]")
	}
	if cl.CacheVersion == "" {
		errs = append(errs, "classifier.cache_version is required")
	}

	switch c.Remote.Mode {
	case "annotate", "full":
	default:
		errs = append(errs, fmt.Sprintf("remote.mode %q is not one of annotate, full", c.Remote.Mode))
	}
	if c.Remote.Enabled && c.Anthropic.Key == "" {
		errs = append(errs, "anthropic.key is required when remote.enabled is set (AUDIT_ANTHROPIC_KEY)")
	}
	if c.Remote.TimeoutMs <= 0 || c.Remote.TimeoutMs >= 1000 {
		errs = append(errs, "remote.timeout_ms must be in (0, 1000): it bounds the whole remote call, retry included")
	}
	if c.Remote.Retries < 0 {
		errs = append(errs, "remote.retries must be >= 0")
	}

	if c.Breaker.WindowMins <= 0 {
		errs = append(errs, "breaker.window_mins must be > 0")
	}
	if c.Breaker.MinSamples <= 0 {
		errs = append(errs, "breaker.min_samples must be > 0")
	}
	if c.Breaker.ErrorThreshold <= 0 || c.Breaker.ErrorThreshold > 1 {
		errs = append(errs, "breaker.error_threshold must be in (0, 1]")
	}
	return errs
}

func (c *Config) validateScoring() []string {
	var errs []string
	if c.Scoring.FastLoadMs <= 0 {
		errs = append(errs, "scoring.fast_load_ms must be > 0")
	}
	if c.Scoring.MinWords <= 0 {
		errs = append(errs, "scoring.min_words must be > 0")
	}
	return errs
}

// InitLogger configures the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
