package model

// PageFacts is the per-page record produced by the crawler/analyzer. The
// scoring engine and issue generator only read it.
type PageFacts struct {
	URL                 string   `json:"url"`
	CanonicalURL        string   `json:"canonical_url,omitempty"`
	StatusCode          int      `json:"status_code"`
	HasTitle            bool     `json:"has_title"`
	Title               string   `json:"title,omitempty"`
	HasH1               bool     `json:"has_h1"`
	H1                  string   `json:"h1,omitempty"`
	HasMetaDescription  bool     `json:"has_meta_description"`
	MetaDescription     string   `json:"meta_description,omitempty"`
	WordCount           int      `json:"word_count"`
	Robots              string   `json:"robots,omitempty"`
	HasStructuredData   bool     `json:"has_structured_data"`
	StructuredDataTypes []string `json:"structured_data_types,omitempty"`
	HasAuthor           bool     `json:"has_author"`
	HasDate             bool     `json:"has_date"`
	QuestionHeadings    int      `json:"question_headings"`
	OutboundLinks       int      `json:"outbound_links"`
	OutboundDomains     int      `json:"outbound_domains"`
	HTTPS               bool     `json:"https"`
	LoadTimeMs          int      `json:"load_time_ms"`
	// RenderParity is the share of rendered text present in the raw HTML.
	// Nil when the crawler did not render the page.
	RenderParity *float64 `json:"render_parity,omitempty"`
}

// Visibility holds AI-citation test counts for a site.
type Visibility struct {
	QueriesTested int `json:"queries_tested"`
	Mentions      int `json:"mentions"`
	Citations     int `json:"citations"`
}

// SiteSignals are the site-wide booleans the scoring engine needs.
type SiteSignals struct {
	RobotsFound  bool `json:"robots_found"`
	SitemapFound bool `json:"sitemap_found"`
	// AICrawlers maps answer-engine crawler user agents to whether robots.txt
	// allows them.
	AICrawlers map[string]bool `json:"ai_crawlers,omitempty"`
	Visibility Visibility      `json:"visibility"`
}

// Pillar names.
const (
	PillarCrawlability  = "crawlability"
	PillarStructured    = "structured"
	PillarAnswerability = "answerability"
	PillarTrust         = "trust"
	PillarVisibility    = "visibility"
)

// AllPillars returns the pillar names in presentation order.
func AllPillars() []string {
	return []string{
		PillarCrawlability,
		PillarStructured,
		PillarAnswerability,
		PillarTrust,
		PillarVisibility,
	}
}

// Gates are boolean flags for catastrophic conditions.
type Gates struct {
	// GateA: more than half of known answer-engine crawlers are blocked.
	GateA bool `json:"gate_a"`
	// GateB: mean measured render parity below 70%.
	GateB bool `json:"gate_b"`
	// GateC: fewer than half of the pages are indexable.
	GateC bool `json:"gate_c"`
	// GateD: fewer than half of the pages are served over HTTPS.
	GateD bool `json:"gate_d"`
}

// Any reports whether any gate is triggered.
func (g Gates) Any() bool {
	return g.GateA || g.GateB || g.GateC || g.GateD
}

// Suggested display caps per gate. The numeric overall score is never
// clamped; presentation layers may cap what they show.
const (
	gateACap = 40.0
	gateBCap = 50.0
	gateCCap = 40.0
	gateDCap = 60.0
)

// DisplayCap returns the lowest suggested cap among the triggered gates, and
// false when no gate is triggered.
func (g Gates) DisplayCap() (float64, bool) {
	limit, ok := 100.0, false
	for _, c := range []struct {
		on    bool
		limit float64
	}{
		{g.GateA, gateACap},
		{g.GateB, gateBCap},
		{g.GateC, gateCCap},
		{g.GateD, gateDCap},
	} {
		if c.on && c.limit < limit {
			limit, ok = c.limit, true
		}
	}
	return limit, ok
}

// PillarScores is the derived score set for one audit.
type PillarScores struct {
	Crawlability  float64 `json:"crawlability"`
	Structured    float64 `json:"structured"`
	Answerability float64 `json:"answerability"`
	Trust         float64 `json:"trust"`
	Visibility    float64 `json:"visibility"`
	Overall       float64 `json:"overall"`
	Gates         Gates   `json:"gates"`
	// Breakdown holds raw points per pillar and sub-criterion.
	Breakdown map[string]map[string]float64 `json:"breakdown,omitempty"`
}

// Pillar returns the percentage for a pillar name, or 0 for unknown names.
func (p PillarScores) Pillar(name string) float64 {
	switch name {
	case PillarCrawlability:
		return p.Crawlability
	case PillarStructured:
		return p.Structured
	case PillarAnswerability:
		return p.Answerability
	case PillarTrust:
		return p.Trust
	case PillarVisibility:
		return p.Visibility
	default:
		return 0
	}
}

// Severity tiers for audit issues.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities, critical highest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// IssueKind separates fixable findings from explanations.
type IssueKind string

const (
	IssueActionable    IssueKind = "actionable"
	IssueInformational IssueKind = "informational"
)

// ScoreImpact explains how an issue relates to a pillar score.
type ScoreImpact struct {
	Pillar      string  `json:"pillar"`
	PointsLost  float64 `json:"points_lost"`
	MaxPoints   float64 `json:"max_points"`
	Explanation string  `json:"explanation"`
}

// AuditIssue is one human-readable finding.
type AuditIssue struct {
	IssueType   string         `json:"issue_type"`
	Category    string         `json:"category"`
	Severity    Severity       `json:"severity"`
	Kind        IssueKind      `json:"kind"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	ScoreImpact ScoreImpact    `json:"score_impact"`
}
