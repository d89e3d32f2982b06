// Package blend asks a remote text-classification model for a second opinion
// on a site's labels. Calls are bounded by a per-attempt timeout with a
// single retry, guarded by a persisted circuit breaker, and the answer is
// attached alongside the rules-based labels rather than replacing them.
package blend

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/cache"
	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/monitoring"
	"github.com/sells-group/site-audit/internal/resilience"
	"github.com/sells-group/site-audit/pkg/anthropic"
)

// Blend modes.
const (
	// ModeAnnotate attaches the opinion without touching primary labels.
	ModeAnnotate = "annotate"
	// ModeFull additionally fills primary labels the local tiers left null.
	ModeFull = "full"
)

// Source names the secondary opinion's origin.
const Source = "remote-model"

// RemoteConfidence is the confidence attached to remote labels, which carry
// no calibrated score of their own.
const RemoteConfidence = 0.5

// Config configures the blender.
type Config struct {
	Model     string
	Mode      string
	Retry     resilience.RetryConfig
	ResultTTL time.Duration
	Version   string
}

// Request describes the site to classify remotely.
type Request struct {
	Domain   string
	Title    string
	NavTerms []string
	Excerpt  string
	// Primary labels are compared with the remote answer.
	SiteType model.ScoredLabel
	Industry model.ScoredLabel
}

// cachedAnswer is the remote result stored under <domain>:remote:<version>.
type cachedAnswer struct {
	Model    string `json:"model"`
	SiteType string `json:"site_type"`
	Industry string `json:"industry"`
}

// Blender produces remote second opinions.
type Blender struct {
	client  anthropic.Client
	store   cache.Store
	breaker *resilience.Breaker
	cfg     Config
}

// BreakerKey returns the store key of the remote-model breaker.
func BreakerKey(version string) string {
	return cache.Key("remote-model", "breaker", version)
}

// NewBreaker builds the remote-model breaker persisted in store. State
// changes are mirrored into the breaker gauge.
func NewBreaker(store cache.Store, version string, cfg resilience.CircuitBreakerConfig) *resilience.Breaker {
	key := BreakerKey(version)
	next := cfg.OnStateChange
	cfg.OnStateChange = func(from, to resilience.CircuitState) {
		monitoring.BreakerState.WithLabelValues(key).Set(monitoring.BreakerStateValue(string(to)))
		if next != nil {
			next(from, to)
		}
	}
	return resilience.NewBreaker(store, key, cfg)
}

// New creates a Blender.
func New(client anthropic.Client, store cache.Store, breaker *resilience.Breaker, cfg Config) *Blender {
	if cfg.Mode == "" {
		cfg.Mode = ModeAnnotate
	}
	if cfg.Version == "" {
		cfg.Version = "v1"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.FromRemoteConfig(800, 1)
	}
	return &Blender{client: client, store: store, breaker: breaker, cfg: cfg}
}

// Mode returns the configured blend mode.
func (b *Blender) Mode() string { return b.cfg.Mode }

// ResultKey returns the remote result cache key for a domain.
func (b *Blender) ResultKey(domain string) string {
	return cache.Key(domain, "remote", b.cfg.Version)
}

// Opinion returns the remote model's second opinion for req. Every failure
// is returned as an error for logging; callers keep their rules-only result.
func (b *Blender) Opinion(ctx context.Context, req Request) (*model.SecondaryOpinion, error) {
	key := b.ResultKey(req.Domain)

	var cached cachedAnswer
	found, err := cache.GetJSON(ctx, b.store, key, &cached)
	if err != nil {
		zap.L().Warn("blend: result cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found && model.IsSiteType(cached.SiteType) {
		monitoring.RemoteCallsTotal.WithLabelValues("cached").Inc()
		return b.opinion(cached, req), nil
	}

	if _, err := b.breaker.Allow(ctx); err != nil {
		monitoring.RemoteCallsTotal.WithLabelValues("skipped_open").Inc()
		return nil, err
	}

	ans, usage, err := b.call(ctx, req)
	if err != nil {
		b.recordFailure(ctx, err)
		return nil, err
	}
	if ctx.Err() != nil {
		// Abandoned by the caller: do not count a success.
		return nil, ctx.Err()
	}

	b.breaker.RecordSuccess(ctx)
	monitoring.RemoteCallsTotal.WithLabelValues("success").Inc()
	usage.LogCost(b.cfg.Model, "remote_classify")

	if err := cache.SetJSON(ctx, b.store, key, ans, b.cfg.ResultTTL); err != nil {
		zap.L().Warn("blend: result cache write failed", zap.String("key", key), zap.Error(err))
	}
	return b.opinion(ans, req), nil
}

// Invalidate drops the cached remote result for a domain.
func (b *Blender) Invalidate(ctx context.Context, domain string) error {
	return b.store.Delete(ctx, b.ResultKey(domain))
}

func (b *Blender) call(ctx context.Context, req Request) (cachedAnswer, anthropic.TokenUsage, error) {
	temp := 0.0
	msg := anthropic.MessageRequest{
		Model:          b.cfg.Model,
		MaxTokens:      128,
		System:         systemPrompt,
		SystemCacheTTL: "5m",
		Prompt:         buildPrompt(req),
		Temperature:    &temp,
	}

	retry := b.cfg.Retry
	retry.ShouldRetry = shouldRetry
	retry.OnRetry = resilience.RetryLogger("anthropic", "remote_classify")

	// Usage accumulates across attempts; failed parses are still billed.
	var usage anthropic.TokenUsage
	ans, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (cachedAnswer, error) {
		resp, err := b.client.CreateMessage(ctx, msg)
		if err != nil {
			return cachedAnswer{}, eris.Wrap(err, "blend: create message")
		}
		usage = usage.Add(resp.Usage)
		siteType, industry, err := parseAnswer(resp.Text)
		if err != nil {
			return cachedAnswer{}, err
		}
		return cachedAnswer{Model: b.cfg.Model, SiteType: siteType, Industry: industry}, nil
	})
	return ans, usage, err
}

// shouldRetry retries transport failures and transient API statuses, never
// schema violations.
func shouldRetry(err error) bool {
	if errors.Is(err, ErrInvalidResponse) {
		return false
	}
	if code := anthropic.StatusCode(err); code != 0 {
		return resilience.IsTransientHTTPStatus(code)
	}
	return resilience.IsTransient(err)
}

func (b *Blender) recordFailure(ctx context.Context, err error) {
	outcome := "error"
	if errors.Is(err, ErrInvalidResponse) {
		outcome = "invalid"
	}
	monitoring.RemoteCallsTotal.WithLabelValues(outcome).Inc()

	if ctx.Err() != nil {
		// Best effort: the caller is gone, so record on a detached context.
		detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		b.breaker.RecordError(detached, err)
		return
	}
	b.breaker.RecordError(ctx, err)
	zap.L().Warn("blend: remote opinion failed", zap.String("outcome", outcome), zap.Error(err))
}

func (b *Blender) opinion(a cachedAnswer, req Request) *model.SecondaryOpinion {
	op := &model.SecondaryOpinion{
		Source:   Source,
		Model:    a.Model,
		SiteType: model.ScoredLabel{Value: a.SiteType, Confidence: RemoteConfidence},
	}
	if a.Industry != "" {
		op.Industry = model.ScoredLabel{Value: a.Industry, Confidence: RemoteConfidence}
	}
	op.AgreesSiteType = op.SiteType.Value == req.SiteType.Value
	op.AgreesIndustry = op.Industry.Value == req.Industry.Value
	return op
}
