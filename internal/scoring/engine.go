package scoring

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/monitoring"
)

// Gate thresholds.
const (
	gateABlockedShare  = 0.5
	gateBMinParity     = 0.70
	gateCMinIndexable  = 0.5
	gateDMinHTTPSShare = 0.5
)

// Result is one scoring pass.
type Result struct {
	PassID string             `json:"pass_id"`
	Scores model.PillarScores `json:"scores"`
	Stats  Stats              `json:"stats"`
}

// Engine scores page sets. It holds no per-pass state and is safe for
// concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := ValidateWeights(cfg.Weights); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Score computes pillar scores and gates for pages and site. Gates are
// flags only; the overall score is never clamped by them.
func (e *Engine) Score(ctx context.Context, pages []model.PageFacts, site model.SiteSignals) (*Result, error) {
	stats := Coverage(pages, e.cfg)
	earned := credit(stats, site)

	var mu sync.Mutex
	pct := make(map[string]float64, len(budgets))
	breakdown := make(map[string]map[string]float64, len(budgets))

	g, gctx := errgroup.WithContext(ctx)
	for _, pillar := range model.AllPillars() {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, points := pillarScore(pillar, earned)
			mu.Lock()
			pct[pillar] = p
			breakdown[pillar] = points
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	overall := weightedOverall(pct, e.cfg.Weights)

	scores := model.PillarScores{
		Crawlability:  round1(pct[model.PillarCrawlability]),
		Structured:    round1(pct[model.PillarStructured]),
		Answerability: round1(pct[model.PillarAnswerability]),
		Trust:         round1(pct[model.PillarTrust]),
		Visibility:    round1(pct[model.PillarVisibility]),
		Overall:       round1(overall),
		Gates:         Gates(stats, site),
		Breakdown:     breakdown,
	}

	res := &Result{PassID: uuid.NewString(), Scores: scores, Stats: stats}
	observe(res)
	return res, nil
}

// weightedOverall combines pillar percentages in fixed pillar order so the
// float sum, and its rounding, is identical on every pass.
func weightedOverall(pct map[string]float64, w Weights) float64 {
	var overall float64
	for _, pillar := range model.AllPillars() {
		overall += w[pillar] * pct[pillar]
	}
	return overall
}

// Gates evaluates the catastrophic-condition flags.
func Gates(s Stats, site model.SiteSignals) model.Gates {
	return model.Gates{
		GateA: ratio(BlockedAICrawlers(site), len(KnownAICrawlers)) > gateABlockedShare,
		GateB: s.RenderParity != nil && *s.RenderParity < gateBMinParity,
		GateC: s.Pages > 0 && s.Indexable < gateCMinIndexable,
		GateD: s.Pages > 0 && s.HTTPS < gateDMinHTTPSShare,
	}
}

// pillarScore returns the capped percentage and the raw points per
// criterion. Percentages are unrounded so the overall score combines exact
// values.
func pillarScore(pillar string, earned map[string]float64) (float64, map[string]float64) {
	points := make(map[string]float64, len(criteria[pillar]))
	var raw float64
	for _, c := range criteria[pillar] {
		pts := clamp01(earned[c.name]) * c.weight
		points[c.name] = round2(pts)
		raw += pts
	}
	budget := budgets[pillar]
	if budget <= 0 {
		return 0, points
	}
	return math.Min(math.Max(raw, 0), budget) / budget * 100, points
}

func observe(res *Result) {
	s := res.Scores
	monitoring.ScoringPassesTotal.Inc()
	for _, p := range model.AllPillars() {
		monitoring.PillarScore.WithLabelValues(p).Observe(s.Pillar(p))
	}
	for gate, on := range map[string]bool{"a": s.Gates.GateA, "b": s.Gates.GateB, "c": s.Gates.GateC, "d": s.Gates.GateD} {
		if on {
			monitoring.GatesTriggeredTotal.WithLabelValues(gate).Inc()
		}
	}

	zap.L().Info("scoring: pass complete",
		zap.String("pass_id", res.PassID),
		zap.Int("pages", res.Stats.Pages),
		zap.Float64("crawlability", s.Crawlability),
		zap.Float64("structured", s.Structured),
		zap.Float64("answerability", s.Answerability),
		zap.Float64("trust", s.Trust),
		zap.Float64("visibility", s.Visibility),
		zap.Float64("overall", s.Overall),
		zap.Bool("gate_a", s.Gates.GateA),
		zap.Bool("gate_b", s.Gates.GateB),
		zap.Bool("gate_c", s.Gates.GateC),
		zap.Bool("gate_d", s.Gates.GateD),
	)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
