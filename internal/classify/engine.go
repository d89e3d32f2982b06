package classify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/site-audit/internal/blend"
	"github.com/sells-group/site-audit/internal/cache"
	"github.com/sells-group/site-audit/internal/config"
	"github.com/sells-group/site-audit/internal/embed"
	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/monitoring"
	"github.com/sells-group/site-audit/internal/resilience"
	"github.com/sells-group/site-audit/internal/signals"
)

const (
	embedNavTerms = 10
	embedBodyLen  = 500
	maxCategory   = 5
)

// NearestFinder is the embedding fallback the engine consults.
type NearestFinder interface {
	Nearest(ctx context.Context, text string) (*embed.Match, error)
}

// SecondOpinion is the optional remote-model blender.
type SecondOpinion interface {
	Opinion(ctx context.Context, req blend.Request) (*model.SecondaryOpinion, error)
	Invalidate(ctx context.Context, domain string) error
	Mode() string
}

// Config tunes the engine.
type Config struct {
	CorpusWords     int
	CorpusMaxChars  int
	NavTermCap      int
	CategoryTermCap int
	WeakConfidence  float64
	DefaultSiteType string
	DefaultIndustry string
	TTL             time.Duration
	Version         string
}

// ConfigFrom maps classifier settings onto an engine Config.
func ConfigFrom(c config.ClassifierConfig) Config {
	return Config{
		CorpusWords:     c.CorpusWords,
		CorpusMaxChars:  c.CorpusMaxChars,
		NavTermCap:      c.NavTermCap,
		CategoryTermCap: c.CategoryTermCap,
		WeakConfidence:  c.WeakConfidence,
		DefaultSiteType: c.DefaultSiteType,
		DefaultIndustry: c.DefaultIndustry,
		TTL:             c.ClassificationTTL(),
		Version:         c.CacheVersion,
	}
}

// Input is one classification request.
type Input struct {
	URL         string
	HTML        []byte
	ContentType string
	// Force skips the cache read; the fresh result still overwrites it.
	Force bool
}

// Result wraps a classification with metadata that is not part of the
// cached record.
type Result struct {
	Classification *model.Classification
	CacheHit       bool
}

// Engine classifies sites and caches the results.
type Engine struct {
	store    cache.Store
	rules    *Rules
	embedder NearestFinder
	blender  SecondOpinion
	cfg      Config
}

// Option configures optional engine tiers.
type Option func(*Engine)

// WithEmbedding enables the embedding fallback tier.
func WithEmbedding(n NearestFinder) Option {
	return func(e *Engine) { e.embedder = n }
}

// WithBlender enables the remote second opinion.
func WithBlender(b SecondOpinion) Option {
	return func(e *Engine) { e.blender = b }
}

// NewEngine creates a classification engine.
func NewEngine(store cache.Store, rules *Rules, cfg Config, opts ...Option) *Engine {
	if cfg.WeakConfidence <= 0 {
		cfg.WeakConfidence = 0.6
	}
	if cfg.CategoryTermCap <= 0 || cfg.CategoryTermCap > maxCategory {
		cfg.CategoryTermCap = maxCategory
	}
	if cfg.Version == "" {
		cfg.Version = "v1"
	}
	e := &Engine{store: store, rules: rules, cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Key returns the classification cache key for a domain.
func (e *Engine) Key(domain string) string {
	return cache.Key(domain, "classification", e.cfg.Version)
}

// Classify returns the classification for in.URL, from the cache unless
// in.Force is set. Only a malformed URL or a context cancelled before
// scoring is an error; every other failure degrades to a simpler tier.
// Results degraded by a cancelled context or a failed embedding call are
// returned but not cached.
func (e *Engine) Classify(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	defer monitoring.ObserveClassify(start)

	u, err := signals.ParseURL(in.URL)
	if err != nil {
		return nil, eris.Wrap(err, "classify: input url")
	}
	key := e.Key(signals.Domain(u))

	if !in.Force {
		if c, ok := e.lookup(ctx, key); ok {
			logResult(c, true, time.Since(start))
			return &Result{Classification: c, CacheHit: true}, nil
		}
	}

	c, degraded, err := e.compute(ctx, in)
	if err != nil {
		return nil, err
	}

	switch {
	case ctx.Err() != nil || degraded:
		zap.L().Debug("classify: degraded result not cached", zap.String("key", key))
	default:
		if err := cache.SetJSON(ctx, e.store, key, c, e.cfg.TTL); err != nil {
			zap.L().Warn("classify: cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	logResult(c, false, time.Since(start))
	for space, tier := range c.Sources {
		monitoring.ClassificationsTotal.WithLabelValues(space, tier).Inc()
	}
	return &Result{Classification: c}, nil
}

// Invalidate drops the cached classification and remote result for domain.
func (e *Engine) Invalidate(ctx context.Context, domain string) error {
	err := e.store.Delete(ctx, e.Key(domain))
	if e.blender != nil {
		err = errors.Join(err, e.blender.Invalidate(ctx, domain))
	}
	if err != nil {
		return eris.Wrapf(err, "classify: invalidate %s", domain)
	}
	zap.L().Info("classify: cache invalidated", zap.String("domain", domain))
	return nil
}

func (e *Engine) lookup(ctx context.Context, key string) (*model.Classification, bool) {
	var c model.Classification
	found, err := cache.GetJSON(ctx, e.store, key, &c)
	switch {
	case err != nil:
		monitoring.ClassificationCacheTotal.WithLabelValues("error").Inc()
		zap.L().Warn("classify: cache read failed, recomputing", zap.String("key", key), zap.Error(err))
		return nil, false
	case !found:
		monitoring.ClassificationCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	monitoring.ClassificationCacheTotal.WithLabelValues("hit").Inc()
	return &c, true
}

// compute runs the tiers. degraded reports that a remote tier failed rather
// than declined, so the result may differ once the dependency recovers.
func (e *Engine) compute(ctx context.Context, in Input) (c *model.Classification, degraded bool, err error) {
	sig, err := signals.Extract(in.HTML, in.URL, signals.Options{
		CorpusWords:    e.cfg.CorpusWords,
		CorpusMaxChars: e.cfg.CorpusMaxChars,
		NavTermCap:     e.cfg.NavTermCap,
		ContentType:    in.ContentType,
	})
	if err != nil {
		return nil, false, err
	}

	var (
		siteScores, industryScores map[string]float64
		mode                       model.SiteMode
		brand                      model.BrandKind
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		siteScores = ScoreSpace(sig.Corpus.Text, &e.rules.SiteType, sig.StructuredDataTypes)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		industryScores = ScoreSpace(sig.Corpus.Text, &e.rules.Industry, sig.StructuredDataTypes)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		mode = InferMode(sig.URL, sig.Commerce)
		brand = InferBrandKind(sig.Corpus.Text, sig.Commerce)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, false, eris.Wrap(err, "classify: score clusters")
	}

	siteRanked := Rank(siteScores, &e.rules.SiteType)
	industryRanked := Rank(industryScores, &e.rules.Industry)

	c = &model.Classification{
		Domain:              sig.Domain,
		Version:             e.cfg.Version,
		SiteMode:            mode,
		BrandKind:           brand,
		Lang:                sig.Lang,
		Region:              sig.Region,
		StructuredDataTypes: nonNil(sig.StructuredDataTypes),
		NavTerms:            nonNil(sig.NavTerms),
		Signals:             e.signalMap(siteRanked, industryRanked, sig.StructuredDataTypes),
		Sources:             make(map[string]string, 2),
		Notes:               []string{},
	}
	n := &notes{}

	var siteTier, industryTier string
	c.SiteType, siteTier = runChain(ctx, e.siteTypeChain(Estimate(siteRanked)))
	c.Industry, industryTier = runChain(ctx, e.industryChain(sig, Estimate(industryRanked), c.Signals, n))

	if e.blender != nil {
		e.applyOpinion(ctx, c, sig, &siteTier, &industryTier, n)
	}

	// Static defaults come last so remote full mode can fill real gaps first.
	if c.SiteType.Empty() && e.cfg.DefaultSiteType != "" {
		c.SiteType, siteTier = model.ScoredLabel{Value: e.cfg.DefaultSiteType, Confidence: MinConfidence}, TierDefault
	}
	if c.Industry.Empty() && e.cfg.DefaultIndustry != "" {
		c.Industry, industryTier = model.ScoredLabel{Value: e.cfg.DefaultIndustry, Confidence: MinConfidence}, TierDefault
	}
	c.Sources[model.SpaceSiteType] = siteTier
	c.Sources[model.SpaceIndustry] = industryTier

	switch {
	case c.SiteType.Empty():
		n.add("no site type evidence")
	case siteTier == TierRules && c.SiteType.Confidence < e.cfg.WeakConfidence:
		n.add("low confidence site type")
	}
	if industryTier == TierRules && c.Industry.Confidence < e.cfg.WeakConfidence {
		n.add("low confidence industry")
	}
	if sig.SPARisk {
		n.add("spa risk: little server-rendered text")
	}
	if sig.MalformedBlocks > 0 {
		n.add(fmt.Sprintf("skipped %d malformed structured-data blocks", sig.MalformedBlocks))
	}

	c.Purpose = InferPurpose(c.SiteMode, c.Industry.Value)
	c.CategoryTerms = categoryTerms(c, e.cfg.CategoryTermCap)
	c.Notes = append(c.Notes, n.list...)
	return c, n.degraded, nil
}

func (e *Engine) siteTypeChain(rules model.ScoredLabel) []attempt {
	return []attempt{
		{tier: TierRules, run: func(context.Context) (model.ScoredLabel, string, bool) {
			return rules, "", !rules.Empty()
		}},
	}
}

// industryChain orders override, confident rules, embedding, weak rules.
func (e *Engine) industryChain(sig *signals.Signals, rules model.ScoredLabel, sigMap map[string]float64, n *notes) []attempt {
	weak := e.cfg.WeakConfidence
	return []attempt{
		{tier: TierOverride, run: func(context.Context) (model.ScoredLabel, string, bool) {
			label, ok := JurisdictionOverride(sig.Host)
			if ok {
				n.add("industry forced by domain suffix")
			}
			return model.ScoredLabel{Value: label, Confidence: MaxConfidence}, "", ok
		}},
		{tier: TierRules, run: func(context.Context) (model.ScoredLabel, string, bool) {
			return rules, "", !rules.Empty() && rules.Confidence >= weak
		}},
		{tier: TierEmbedding, run: func(ctx context.Context) (model.ScoredLabel, string, bool) {
			return e.embeddingAttempt(ctx, sig, rules, sigMap, n)
		}},
		{tier: TierRules, run: func(context.Context) (model.ScoredLabel, string, bool) {
			return rules, "", !rules.Empty()
		}},
	}
}

// embeddingAttempt runs the embedding tier alone (no rules evidence) or as a
// refinement of a weak rules label.
func (e *Engine) embeddingAttempt(ctx context.Context, sig *signals.Signals, rules model.ScoredLabel, sigMap map[string]float64, n *notes) (model.ScoredLabel, string, bool) {
	if e.embedder == nil {
		return model.ScoredLabel{}, "", false
	}
	m, err := e.embedder.Nearest(ctx, embedInput(sig))
	if err != nil {
		if !errors.Is(err, embed.ErrBelowFloor) && !errors.Is(err, embed.ErrEmptyText) {
			n.degraded = true
		}
		n.add("embedding declined")
		zap.L().Debug("classify: embedding declined", zap.String("domain", sig.Domain), zap.Error(err))
		return model.ScoredLabel{}, "", false
	}

	ranked := make([]Ranked, 0, len(m.Ranked))
	for _, s := range m.Ranked {
		ranked = append(ranked, Ranked{Label: s.Label, Score: s.Score})
	}
	emb := Estimate(ranked)
	sigMap["embedding."+m.Label] = round4(m.Similarity)

	switch {
	case rules.Empty():
		return emb, TierEmbedding, true
	case emb.Value == rules.Value:
		return model.ScoredLabel{Value: rules.Value, Confidence: math.Max(rules.Confidence, emb.Confidence)}, TierRulesEmbedding, true
	default:
		n.add(fmt.Sprintf("embedding suggests industry %s; kept rules label %s", emb.Value, rules.Value))
		return rules, TierRules, true
	}
}

func (e *Engine) applyOpinion(ctx context.Context, c *model.Classification, sig *signals.Signals, siteTier, industryTier *string, n *notes) {
	op, err := e.blender.Opinion(ctx, blend.Request{
		Domain:   sig.Domain,
		Title:    sig.Corpus.Title,
		NavTerms: sig.NavTerms,
		Excerpt:  sig.Corpus.Body,
		SiteType: c.SiteType,
		Industry: c.Industry,
	})
	if err != nil {
		lvl := zap.WarnLevel
		if errors.Is(err, resilience.ErrCircuitOpen) {
			lvl = zap.DebugLevel
		}
		if ce := zap.L().Check(lvl, "classify: remote opinion unavailable"); ce != nil {
			ce.Write(zap.String("domain", sig.Domain), zap.Error(err))
		}
		return
	}
	c.Secondary = op

	if !c.SiteType.Empty() && !op.AgreesSiteType {
		n.add(fmt.Sprintf("remote model suggests site type %s", op.SiteType.Value))
	}
	if !c.Industry.Empty() && !op.Industry.Empty() && !op.AgreesIndustry {
		n.add(fmt.Sprintf("remote model suggests industry %s", op.Industry.Value))
	}

	if e.blender.Mode() != blend.ModeFull {
		return
	}
	if c.SiteType.Empty() && !op.SiteType.Empty() {
		c.SiteType, *siteTier = model.ScoredLabel{Value: op.SiteType.Value, Confidence: MinConfidence}, TierRemote
	}
	if c.Industry.Empty() && !op.Industry.Empty() {
		c.Industry, *industryTier = model.ScoredLabel{Value: op.Industry.Value, Confidence: MinConfidence}, TierRemote
	}
}

// signalMap exposes per-cluster contributions for audit.
func (e *Engine) signalMap(site, industry []Ranked, sdTypes []string) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range site {
		out[model.SpaceSiteType+"."+r.Label] = round4(r.Score)
	}
	for _, r := range industry {
		out[model.SpaceIndustry+"."+r.Label] = round4(r.Score)
	}
	for _, typ := range sdTypes {
		var total float64
		for _, b := range e.rules.SiteType.Boosts[typ] {
			total += b.Weight
		}
		for _, b := range e.rules.Industry.Boosts[typ] {
			total += b.Weight
		}
		if total > 0 {
			out["sd."+typ] = round4(total)
		}
	}
	return out
}

// embedInput is the domain, top nav terms and a body prefix.
func embedInput(sig *signals.Signals) string {
	nav := sig.NavTerms
	if len(nav) > embedNavTerms {
		nav = nav[:embedNavTerms]
	}
	body := sig.Corpus.Body
	if len(body) > embedBodyLen {
		body = body[:embedBodyLen]
		for !utf8.ValidString(body) {
			body = body[:len(body)-1]
		}
	}
	parts := []string{sig.Domain}
	if len(nav) > 0 {
		parts = append(parts, strings.Join(nav, " "))
	}
	if body != "" {
		parts = append(parts, body)
	}
	return strings.Join(parts, " ")
}

// categoryTerms lists the industry, the site type, then nav terms not
// already present, up to limit.
func categoryTerms(c *model.Classification, limit int) []string {
	out := make([]string, 0, limit)
	seen := make(map[string]bool)
	add := func(s string) {
		if s == "" || seen[s] || len(out) >= limit {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	add(c.Industry.Value)
	add(c.SiteType.Value)
	for _, t := range c.NavTerms {
		add(t)
	}
	return out
}

type notes struct {
	list     []string
	degraded bool
}

func (n *notes) add(s string) {
	for _, existing := range n.list {
		if existing == s {
			return
		}
	}
	n.list = append(n.list, s)
}

func logResult(c *model.Classification, cacheHit bool, took time.Duration) {
	zap.L().Info("classify: classified",
		zap.String("domain", c.Domain),
		zap.String("site_type", c.SiteType.Value),
		zap.Float64("site_type_confidence", c.SiteType.Confidence),
		zap.String("site_type_tier", c.Sources[model.SpaceSiteType]),
		zap.String("industry", c.Industry.Value),
		zap.Float64("industry_confidence", c.Industry.Confidence),
		zap.String("industry_tier", c.Sources[model.SpaceIndustry]),
		zap.String("site_mode", string(c.SiteMode)),
		zap.Bool("cache_hit", cacheHit),
		zap.Duration("took", took),
	)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
