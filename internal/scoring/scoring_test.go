package scoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/site-audit/internal/config"
	"github.com/sells-group/site-audit/internal/model"
)

func ptr(v float64) *float64 { return &v }

func goodPage(url string) model.PageFacts {
	return model.PageFacts{
		URL:                 url,
		CanonicalURL:        url,
		StatusCode:          200,
		HasTitle:            true,
		Title:               "Title " + url,
		HasH1:               true,
		HasMetaDescription:  true,
		WordCount:           800,
		HasStructuredData:   true,
		StructuredDataTypes: []string{"Organization", "FAQPage"},
		HasAuthor:           true,
		HasDate:             true,
		QuestionHeadings:    2,
		OutboundLinks:       6,
		OutboundDomains:     3,
		HTTPS:               true,
		LoadTimeMs:          800,
		RenderParity:        ptr(1.0),
	}
}

func goodSite() model.SiteSignals {
	return model.SiteSignals{
		RobotsFound:  true,
		SitemapFound: true,
		AICrawlers:   map[string]bool{"GPTBot": true, "ClaudeBot": true},
		Visibility:   model.Visibility{QueriesTested: 10, Mentions: 5, Citations: 5},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(Config{})
	require.NoError(t, err)
	return e
}

func TestScore_FullCoverage(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	res, err := e.Score(context.Background(), []model.PageFacts{goodPage("https://a.example/"), goodPage("https://a.example/b")}, goodSite())
	require.NoError(t, err)

	s := res.Scores
	assert.Equal(t, 100.0, s.Crawlability, "raw 32 is capped at the 30 budget")
	assert.Equal(t, 100.0, s.Structured)
	assert.Equal(t, 100.0, s.Answerability)
	assert.Equal(t, 100.0, s.Trust)
	assert.Equal(t, 70.0, s.Visibility)
	assert.Equal(t, 97.0, s.Overall)
	assert.False(t, s.Gates.Any())
	assert.NotEmpty(t, res.PassID)
	assert.InDelta(t, 8.0, s.Breakdown[model.PillarCrawlability][CritStatusOK], 1e-9)
	assert.InDelta(t, 1.5, s.Breakdown[model.PillarVisibility][CritCitationRate], 1e-9)
}

func TestScore_EmptyPages(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	res, err := e.Score(context.Background(), nil, model.SiteSignals{})
	require.NoError(t, err)

	s := res.Scores
	assert.Equal(t, 0.0, s.Answerability)
	assert.Equal(t, 0.0, s.Structured)
	assert.Equal(t, 0.0, s.Trust)
	assert.Equal(t, 0.0, s.Visibility)
	// No robots.txt means no crawler is blocked.
	assert.Equal(t, 13.3, s.Crawlability)
	assert.Equal(t, 4.0, s.Overall)
	assert.False(t, s.Gates.Any(), "page-share gates need pages")
	assert.Zero(t, res.Stats.Pages)
}

func TestScore_BoundsAndLinearCombination(t *testing.T) {
	t.Parallel()

	bad := model.PageFacts{URL: "http://a.example/x", StatusCode: 404, WordCount: 10, LoadTimeMs: 9000}
	thin := goodPage("https://a.example/thin")
	thin.WordCount = 40
	thin.HasAuthor = false
	thin.StructuredDataTypes = nil
	thin.HasStructuredData = false

	sets := [][]model.PageFacts{
		{goodPage("https://a.example/")},
		{bad},
		{goodPage("https://a.example/"), bad, thin},
		{thin, thin, thin},
	}
	sites := []model.SiteSignals{goodSite(), {}, {Visibility: model.Visibility{QueriesTested: 2, Mentions: 9, Citations: 9}}}

	e := newTestEngine(t)
	w := DefaultWeights()
	for _, pages := range sets {
		for _, site := range sites {
			res, err := e.Score(context.Background(), pages, site)
			require.NoError(t, err)
			s := res.Scores

			var want float64
			for _, p := range model.AllPillars() {
				v := s.Pillar(p)
				assert.GreaterOrEqual(t, v, 0.0, p)
				assert.LessOrEqual(t, v, 100.0, p)
				want += w[p] * v
			}
			assert.GreaterOrEqual(t, s.Overall, 0.0)
			assert.LessOrEqual(t, s.Overall, 100.0)
			assert.InDelta(t, want, s.Overall, 0.1)
		}
	}
}

func TestGates(t *testing.T) {
	t.Parallel()

	blocked := map[string]bool{}
	for _, ua := range KnownAICrawlers[:6] {
		blocked[ua] = false
	}
	halfBlocked := map[string]bool{}
	for _, ua := range KnownAICrawlers[:5] {
		halfBlocked[ua] = false
	}

	insecure := goodPage("http://a.example/")
	insecure.HTTPS = false
	noindex := goodPage("https://a.example/private")
	noindex.Robots = "NOINDEX, follow"
	lowParity := goodPage("https://a.example/spa")
	lowParity.RenderParity = ptr(0.2)

	tests := []struct {
		name  string
		pages []model.PageFacts
		site  model.SiteSignals
		want  model.Gates
	}{
		{"clean", []model.PageFacts{goodPage("https://a.example/")}, goodSite(), model.Gates{}},
		{"most crawlers blocked", nil, model.SiteSignals{AICrawlers: blocked}, model.Gates{GateA: true}},
		{"exactly half blocked", nil, model.SiteSignals{AICrawlers: halfBlocked}, model.Gates{}},
		{"low render parity", []model.PageFacts{lowParity, goodPage("https://a.example/")}, goodSite(), model.Gates{GateB: true}},
		{"mostly noindex", []model.PageFacts{noindex, noindex, goodPage("https://a.example/")}, goodSite(), model.Gates{GateC: true}},
		{"mostly insecure", []model.PageFacts{insecure, insecure, goodPage("https://a.example/")}, goodSite(), model.Gates{GateD: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Config{}.withDefaults()
			assert.Equal(t, tt.want, Gates(Coverage(tt.pages, cfg), tt.site))
		})
	}
}

func TestScore_GatesDoNotClampOverall(t *testing.T) {
	t.Parallel()

	site := goodSite()
	site.AICrawlers = map[string]bool{}
	for _, ua := range KnownAICrawlers {
		site.AICrawlers[ua] = false
	}

	e := newTestEngine(t)
	res, err := e.Score(context.Background(), []model.PageFacts{goodPage("https://a.example/")}, site)
	require.NoError(t, err)
	assert.True(t, res.Scores.Gates.GateA)
	assert.Greater(t, res.Scores.Overall, 40.0)

	limit, ok := res.Scores.Gates.DisplayCap()
	assert.True(t, ok)
	assert.Equal(t, 40.0, limit)
}

func TestScore_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEngine(t).Score(ctx, nil, model.SiteSignals{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCoverage(t *testing.T) {
	t.Parallel()

	p1 := goodPage("https://a.example/")
	p2 := model.PageFacts{URL: "https://a.example/2", StatusCode: 301, WordCount: 100, RenderParity: ptr(0.5)}
	s := Coverage([]model.PageFacts{p1, p2}, Config{}.withDefaults())

	assert.Equal(t, 2, s.Pages)
	assert.Equal(t, 0.5, s.StatusOK)
	assert.Equal(t, 0.5, s.Title)
	assert.Equal(t, 0.5, s.QASchema)
	assert.Equal(t, 1, s.ThinPages)
	assert.True(t, s.OrganizationSchema)
	require.NotNil(t, s.RenderParity)
	assert.InDelta(t, 0.75, *s.RenderParity, 1e-9)

	empty := Coverage(nil, Config{}.withDefaults())
	assert.Zero(t, empty.Title)
	assert.Nil(t, empty.RenderParity)
}

func TestValidateWeights(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateWeights(DefaultWeights()))

	tests := []struct {
		name string
		mut  func(Weights)
		want string
	}{
		{"sum", func(w Weights) { w[model.PillarTrust] = 0.5 }, "sum to 1.0"},
		{"negative", func(w Weights) { w[model.PillarTrust] = -0.15; w[model.PillarVisibility] = 0.4 }, "trust weight must be >= 0"},
		{"missing", func(w Weights) { delete(w, model.PillarVisibility) }, "missing weight for visibility"},
		{"unknown", func(w Weights) { w["speed"] = 0 }, "unknown pillar speed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := DefaultWeights()
			tt.mut(w)
			err := ValidateWeights(w)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := NewEngine(Config{Weights: Weights{model.PillarTrust: 1}})
	assert.Error(t, err)
}

func TestValidateWeights_Tolerance(t *testing.T) {
	t.Parallel()

	thirds := Weights{
		model.PillarCrawlability:  0.333,
		model.PillarStructured:    0.333,
		model.PillarAnswerability: 0.334,
		model.PillarTrust:         0,
		model.PillarVisibility:    0,
	}
	assert.NoError(t, ValidateWeights(thirds))

	rounded := Weights{
		model.PillarCrawlability:  0.3333,
		model.PillarStructured:    0.3333,
		model.PillarAnswerability: 0.3333,
		model.PillarTrust:         0,
		model.PillarVisibility:    0,
	}
	assert.NoError(t, ValidateWeights(rounded), "0.9999 is within tolerance")

	rounded[model.PillarAnswerability] = 0.331
	assert.ErrorContains(t, ValidateWeights(rounded), "sum to 1.0")
}

func TestWeightedOverall_FixedOrder(t *testing.T) {
	t.Parallel()

	pct := map[string]float64{
		model.PillarCrawlability:  100.0 / 3,
		model.PillarStructured:    200.0 / 3,
		model.PillarAnswerability: 12.345678,
		model.PillarTrust:         87.654321,
		model.PillarVisibility:    0.1,
	}
	w := DefaultWeights()

	var want float64
	for _, p := range model.AllPillars() {
		want += w[p] * pct[p]
	}
	for range 50 {
		assert.Equal(t, want, weightedOverall(pct, w))
	}
}

func TestConfigFrom(t *testing.T) {
	t.Parallel()

	cfg := ConfigFrom(config.ScoringConfig{FastLoadMs: 1000})
	assert.Equal(t, 1000, cfg.FastLoadMs)
	assert.Equal(t, DefaultMinWords, cfg.MinWords)
	assert.InDelta(t, 1.0, cfg.Weights.Sum(), 1e-9)
}

func TestSubWeight(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2.0, SubWeight(model.PillarStructured, CritTitle))
	assert.Equal(t, 3.0, SubWeight(model.PillarAnswerability, CritMetaDescription))
	assert.Zero(t, SubWeight(model.PillarTrust, CritTitle))
	assert.Equal(t, 25.0, MaxPoints(model.PillarAnswerability))
	assert.Zero(t, MaxPoints("speed"))
}
