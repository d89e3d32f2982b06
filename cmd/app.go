package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/blend"
	"github.com/sells-group/site-audit/internal/cache"
	"github.com/sells-group/site-audit/internal/classify"
	"github.com/sells-group/site-audit/internal/config"
	"github.com/sells-group/site-audit/internal/embed"
	"github.com/sells-group/site-audit/internal/resilience"
	"github.com/sells-group/site-audit/internal/scoring"
	anthropicpkg "github.com/sells-group/site-audit/pkg/anthropic"
	"github.com/sells-group/site-audit/pkg/jina"
)

// appEnv holds the store and engines shared by the classify, score, breaker,
// cache and serve commands.
type appEnv struct {
	Store      cache.Store
	Classifier *classify.Engine
	Scorer     *scoring.Engine
	Breaker    *resilience.Breaker
}

// Close releases resources held by the environment.
func (ae *appEnv) Close() {
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

// initApp opens the cache store and wires the classifier and scoring engines
// from c. Callers should defer env.Close().
func initApp(ctx context.Context, c *config.Config) (*appEnv, error) {
	st, err := cache.Open(ctx, c.Store)
	if err != nil {
		return nil, err
	}

	env, err := buildApp(st, c)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return env, nil
}

// buildApp wires engines around an already opened store.
func buildApp(st cache.Store, c *config.Config) (*appEnv, error) {
	rules, err := classify.LoadRules(c.Classifier.ClustersFile)
	if err != nil {
		return nil, eris.Wrap(err, "load cluster rules")
	}

	breaker := blend.NewBreaker(st, c.Classifier.CacheVersion, resilience.FromBreakerConfig(
		c.Breaker.WindowMins, c.Breaker.MinSamples, c.Breaker.ErrorThreshold,
	))

	var opts []classify.Option
	if c.Embedding.Key != "" {
		jinaOpts := []jina.Option{jina.WithRateLimit(c.Embedding.RatePerSec)}
		if c.Embedding.BaseURL != "" {
			jinaOpts = append(jinaOpts, jina.WithBaseURL(c.Embedding.BaseURL))
		}
		jinaClient := jina.NewClient(c.Embedding.Key, jinaOpts...)
		opts = append(opts, classify.WithEmbedding(embed.New(embed.JinaEmbedder{Client: jinaClient}, st, embed.Config{
			Models:  c.Embedding.Models,
			Floor:   c.Classifier.EmbeddingFloor,
			Timeout: c.Embedding.Timeout(),
			TTL:     c.Classifier.EmbeddingTTL(),
			Version: c.Classifier.CacheVersion,
		})))
	} else {
		zap.L().Debug("app: embedding fallback disabled, no embedding key")
	}

	if c.Remote.Enabled {
		opts = append(opts, classify.WithBlender(blend.New(anthropicpkg.NewClient(c.Anthropic.Key), st, breaker, blend.Config{
			Model:     c.Anthropic.HaikuModel,
			Mode:      c.Remote.Mode,
			Retry:     resilience.FromRemoteConfig(c.Remote.TimeoutMs, c.Remote.Retries),
			ResultTTL: c.Remote.ResultTTL(),
			Version:   c.Classifier.CacheVersion,
		})))
	}

	scorer, err := scoring.NewEngine(scoring.ConfigFrom(c.Scoring))
	if err != nil {
		return nil, err
	}

	return &appEnv{
		Store:      st,
		Classifier: classify.NewEngine(st, rules, classify.ConfigFrom(c.Classifier), opts...),
		Scorer:     scorer,
		Breaker:    breaker,
	}, nil
}
