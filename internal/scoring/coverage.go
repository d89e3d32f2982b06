package scoring

import (
	"strings"

	"github.com/sells-group/site-audit/internal/model"
)

// KnownAICrawlers are the answer-engine user agents checked against
// robots.txt. Agents missing from SiteSignals.AICrawlers count as allowed.
var KnownAICrawlers = []string{
	"GPTBot",
	"ChatGPT-User",
	"OAI-SearchBot",
	"ClaudeBot",
	"Claude-Web",
	"PerplexityBot",
	"Google-Extended",
	"Applebot-Extended",
	"CCBot",
	"Bytespider",
}

var (
	richSchemaTypes = set("Product", "Offer", "Article", "NewsArticle", "BlogPosting", "FAQPage", "HowTo",
		"QAPage", "Recipe", "Event", "Review", "AggregateRating", "Course", "JobPosting", "VideoObject",
		"LocalBusiness", "SoftwareApplication", "BreadcrumbList")
	qaSchemaTypes  = set("FAQPage", "HowTo", "QAPage")
	orgSchemaTypes = set("Organization", "Corporation", "LocalBusiness", "NGO", "EducationalOrganization", "GovernmentOrganization")
)

// Stats are coverage ratios over a page set, shared by the scoring engine
// and the issue generator. Every ratio is 0 for an empty page set.
type Stats struct {
	Pages            int     `json:"pages"`
	StatusOK         float64 `json:"status_ok"`
	Indexable        float64 `json:"indexable"`
	Canonical        float64 `json:"canonical"`
	HTTPS            float64 `json:"https"`
	Title            float64 `json:"title"`
	H1               float64 `json:"h1"`
	MetaDescription  float64 `json:"meta_description"`
	Schema           float64 `json:"schema"`
	RichSchema       float64 `json:"rich_schema"`
	QASchema         float64 `json:"qa_schema"`
	Substantive      float64 `json:"substantive"`
	QuestionHeadings float64 `json:"question_headings"`
	Author           float64 `json:"author"`
	Date             float64 `json:"date"`
	Citations        float64 `json:"citations"`
	FastPages        float64 `json:"fast_pages"`
	// ThinPages counts pages under the substantive word threshold.
	ThinPages int `json:"thin_pages"`
	// OrganizationSchema is true when any page declares an organization.
	OrganizationSchema bool `json:"organization_schema"`
	// RenderParity is the mean over pages that measured it; nil when none did.
	RenderParity *float64 `json:"render_parity,omitempty"`
}

// Coverage computes coverage ratios for pages.
func Coverage(pages []model.PageFacts, cfg Config) Stats {
	cfg = cfg.withDefaults()

	var c struct {
		ok, indexable, canonical, https, title, h1, meta, schema, rich, qa int
		substantive, questions, author, date, citations, fast             int
	}
	s := Stats{Pages: len(pages)}
	var paritySum float64
	parityN := 0

	for _, p := range pages {
		ok := p.StatusCode >= 200 && p.StatusCode < 300
		count(&c.ok, ok)
		count(&c.indexable, ok && !strings.Contains(strings.ToLower(p.Robots), "noindex"))
		count(&c.canonical, p.CanonicalURL != "")
		count(&c.https, p.HTTPS)
		count(&c.title, p.HasTitle)
		count(&c.h1, p.HasH1)
		count(&c.meta, p.HasMetaDescription)
		count(&c.schema, p.HasStructuredData)
		count(&c.rich, anyIn(p.StructuredDataTypes, richSchemaTypes))
		count(&c.qa, anyIn(p.StructuredDataTypes, qaSchemaTypes))
		count(&c.substantive, p.WordCount >= cfg.MinWords)
		count(&c.questions, p.QuestionHeadings > 0)
		count(&c.author, p.HasAuthor)
		count(&c.date, p.HasDate)
		count(&c.citations, p.OutboundDomains > 0)
		count(&c.fast, p.LoadTimeMs > 0 && p.LoadTimeMs < cfg.FastLoadMs)

		if p.WordCount < cfg.MinWords {
			s.ThinPages++
		}
		if anyIn(p.StructuredDataTypes, orgSchemaTypes) {
			s.OrganizationSchema = true
		}
		if p.RenderParity != nil {
			paritySum += *p.RenderParity
			parityN++
		}
	}

	n := len(pages)
	s.StatusOK = ratio(c.ok, n)
	s.Indexable = ratio(c.indexable, n)
	s.Canonical = ratio(c.canonical, n)
	s.HTTPS = ratio(c.https, n)
	s.Title = ratio(c.title, n)
	s.H1 = ratio(c.h1, n)
	s.MetaDescription = ratio(c.meta, n)
	s.Schema = ratio(c.schema, n)
	s.RichSchema = ratio(c.rich, n)
	s.QASchema = ratio(c.qa, n)
	s.Substantive = ratio(c.substantive, n)
	s.QuestionHeadings = ratio(c.questions, n)
	s.Author = ratio(c.author, n)
	s.Date = ratio(c.date, n)
	s.Citations = ratio(c.citations, n)
	s.FastPages = ratio(c.fast, n)
	if parityN > 0 {
		mean := paritySum / float64(parityN)
		s.RenderParity = &mean
	}
	return s
}

// BlockedAICrawlers returns how many known AI crawlers robots.txt blocks.
func BlockedAICrawlers(site model.SiteSignals) int {
	blocked := 0
	for _, ua := range KnownAICrawlers {
		if allowed, ok := site.AICrawlers[ua]; ok && !allowed {
			blocked++
		}
	}
	return blocked
}

// credit returns the earned fraction (0..1) for every criterion name.
func credit(s Stats, site model.SiteSignals) map[string]float64 {
	v := site.Visibility
	return map[string]float64{
		CritStatusOK:         s.StatusOK,
		CritIndexable:        s.Indexable,
		CritCanonical:        s.Canonical,
		CritHTTPS:            s.HTTPS,
		CritRobotsTxt:        flag(site.RobotsFound),
		CritSitemap:          flag(site.SitemapFound),
		CritAICrawlers:       1 - ratio(BlockedAICrawlers(site), len(KnownAICrawlers)),
		CritSchema:           s.Schema,
		CritRichSchema:       s.RichSchema,
		CritTitle:            s.Title,
		CritMetaDescription:  s.MetaDescription,
		CritSubstantive:      s.Substantive,
		CritH1:               s.H1,
		CritQuestionHeadings: s.QuestionHeadings,
		CritQASchema:         s.QASchema,
		CritAuthor:           s.Author,
		CritDate:             s.Date,
		CritCitations:        s.Citations,
		CritOrganization:     flag(s.OrganizationSchema),
		CritFastPages:        s.FastPages,
		CritCitationRate:     clamp01(ratio(v.Citations, v.QueriesTested)),
		CritMentionRate:      clamp01(ratio(v.Mentions, v.QueriesTested)),
	}
}

func count(n *int, ok bool) {
	if ok {
		*n++
	}
}

func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

func anyIn(types []string, want map[string]bool) bool {
	for _, t := range types {
		if want[t] {
			return true
		}
	}
	return false
}
