// Package embed implements the embedding fallback: it embeds a site corpus
// and picks the industry whose canonical reference text is nearest by cosine
// similarity, declining below a similarity floor.
package embed

import (
	"context"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/cache"
	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/monitoring"
	"github.com/sells-group/site-audit/pkg/jina"
)

var (
	// ErrNoModel is returned when no candidate embedding model responds.
	ErrNoModel = eris.New("embed: no embedding model available")
	// ErrBelowFloor is returned when the nearest reference is too dissimilar.
	ErrBelowFloor = eris.New("embed: nearest reference below similarity floor")
	// ErrEmptyText is returned for an empty corpus.
	ErrEmptyText = eris.New("embed: empty text")
)

// Embedder turns texts into vectors with a named model.
type Embedder interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float64, error)
}

// JinaEmbedder adapts the Jina client to Embedder.
type JinaEmbedder struct {
	Client jina.Client
}

// Embed implements Embedder.
func (j JinaEmbedder) Embed(ctx context.Context, model string, texts []string) ([][]float64, error) {
	resp, err := j.Client.Embed(ctx, model, texts)
	if err != nil {
		return nil, err
	}
	return resp.Vectors(), nil
}

// Config tunes the fallback.
type Config struct {
	// Models are probed in order; the first that responds is cached.
	Models []string
	// Floor is the minimum cosine similarity for a match.
	Floor float64
	// Timeout bounds each provider call.
	Timeout time.Duration
	// TTL applies to the cached model choice and reference vectors.
	TTL time.Duration
	// Version namespaces cache keys.
	Version string
}

// Match is the nearest reference for a corpus.
type Match struct {
	Label      string
	Similarity float64
	Model      string
	// Ranked holds every industry's similarity, highest first.
	Ranked []Similarity
}

// Similarity pairs an industry with its cosine similarity.
type Similarity struct {
	Label string
	Score float64
}

// Fallback embeds corpora and compares them against cached references.
type Fallback struct {
	embedder Embedder
	store    cache.Store
	cfg      Config
}

// New creates an embedding fallback.
func New(embedder Embedder, store cache.Store, cfg Config) *Fallback {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Floor <= 0 {
		cfg.Floor = 0.34
	}
	if cfg.Version == "" {
		cfg.Version = "v1"
	}
	return &Fallback{embedder: embedder, store: store, cfg: cfg}
}

func (f *Fallback) modelKey() string {
	return cache.Key("embedding", "model", f.cfg.Version)
}

func (f *Fallback) refKey(industry, modelName string) string {
	return cache.Key(industry, "refvec", modelName+"-"+f.cfg.Version)
}

// ResolveModel returns the cached model choice, or probes the candidates in
// order and caches the first that responds.
func (f *Fallback) ResolveModel(ctx context.Context) (string, error) {
	var cached string
	found, err := cache.GetJSON(ctx, f.store, f.modelKey(), &cached)
	if err != nil {
		zap.L().Warn("embed: model cache read failed", zap.Error(err))
	}
	if found && slices.Contains(f.cfg.Models, cached) {
		return cached, nil
	}

	for _, m := range f.cfg.Models {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		_, err := f.embed(ctx, "probe", m, []string{"probe"})
		if err != nil {
			zap.L().Warn("embed: model probe failed", zap.String("model", m), zap.Error(err))
			continue
		}
		if err := cache.SetJSON(ctx, f.store, f.modelKey(), m, f.cfg.TTL); err != nil {
			zap.L().Warn("embed: model cache write failed", zap.Error(err))
		}
		zap.L().Info("embed: model resolved", zap.String("model", m))
		return m, nil
	}
	return "", ErrNoModel
}

// References returns the reference vector for every industry, embedding and
// caching only the ones missing from the store.
func (f *Fallback) References(ctx context.Context, modelName string) (map[string][]float64, error) {
	industries := model.AllIndustries()
	refs := make(map[string][]float64, len(industries))

	var missing []string
	for _, ind := range industries {
		var vec []float64
		found, err := cache.GetJSON(ctx, f.store, f.refKey(ind, modelName), &vec)
		if err != nil {
			zap.L().Warn("embed: reference cache read failed", zap.String("industry", ind), zap.Error(err))
		}
		if found && len(vec) > 0 {
			refs[ind] = vec
			continue
		}
		missing = append(missing, ind)
	}
	if len(missing) == 0 {
		return refs, nil
	}

	texts := make([]string, len(missing))
	for i, ind := range missing {
		texts[i], _ = ReferenceText(ind)
	}
	vecs, err := f.embed(ctx, "reference", modelName, texts)
	if err != nil {
		return nil, eris.Wrap(err, "embed: reference vectors")
	}
	for i, ind := range missing {
		refs[ind] = vecs[i]
		if err := cache.SetJSON(ctx, f.store, f.refKey(ind, modelName), vecs[i], f.cfg.TTL); err != nil {
			zap.L().Warn("embed: reference cache write failed", zap.String("industry", ind), zap.Error(err))
		}
	}
	return refs, nil
}

// Nearest embeds text once and returns the most similar industry reference.
// It returns ErrBelowFloor (wrapped with the best match) when the top
// similarity is under the floor.
func (f *Fallback) Nearest(ctx context.Context, text string) (*Match, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	modelName, err := f.ResolveModel(ctx)
	if err != nil {
		return nil, err
	}
	refs, err := f.References(ctx, modelName)
	if err != nil {
		return nil, err
	}
	vecs, err := f.embed(ctx, "corpus", modelName, []string{text})
	if err != nil {
		return nil, eris.Wrap(err, "embed: corpus vector")
	}

	m := &Match{Model: modelName}
	for _, ind := range model.AllIndustries() {
		if ref, ok := refs[ind]; ok {
			m.Ranked = append(m.Ranked, Similarity{Label: ind, Score: Cosine(vecs[0], ref)})
		}
	}
	sort.SliceStable(m.Ranked, func(i, j int) bool { return m.Ranked[i].Score > m.Ranked[j].Score })
	if len(m.Ranked) == 0 {
		return nil, ErrBelowFloor
	}
	m.Label, m.Similarity = m.Ranked[0].Label, m.Ranked[0].Score
	if m.Similarity < f.cfg.Floor {
		return m, eris.Wrapf(ErrBelowFloor, "embed: best %s at %.3f < %.3f", m.Label, m.Similarity, f.cfg.Floor)
	}
	return m, nil
}

// embed calls the provider under the configured timeout and checks that one
// vector came back per text.
func (f *Fallback) embed(ctx context.Context, op, modelName string, texts []string) ([][]float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	vecs, err := f.embedder.Embed(callCtx, modelName, texts)
	if err == nil && len(vecs) != len(texts) {
		err = eris.Errorf("embed: expected %d vectors, got %d", len(texts), len(vecs))
	}
	if err != nil {
		monitoring.EmbeddingCallsTotal.WithLabelValues(op, "error").Inc()
		return nil, err
	}
	monitoring.EmbeddingCallsTotal.WithLabelValues(op, "success").Inc()
	return vecs, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when they differ in
// length or either has zero norm.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
