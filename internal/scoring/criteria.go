package scoring

import "github.com/sells-group/site-audit/internal/model"

// Criterion names. Page criteria earn ratio × weight; site criteria are
// all-or-nothing bonuses.
const (
	CritStatusOK         = "status_ok"
	CritIndexable        = "indexable"
	CritCanonical        = "canonical"
	CritHTTPS            = "https"
	CritRobotsTxt        = "robots_txt"
	CritSitemap          = "sitemap"
	CritAICrawlers       = "ai_crawlers"
	CritSchema           = "schema"
	CritRichSchema       = "rich_schema"
	CritTitle            = "title"
	CritMetaDescription  = "meta_description"
	CritSubstantive      = "substantive"
	CritH1               = "h1"
	CritQuestionHeadings = "question_headings"
	CritQASchema         = "qa_schema"
	CritAuthor           = "author"
	CritDate             = "date"
	CritCitations        = "citations"
	CritOrganization     = "organization"
	CritFastPages        = "fast_pages"
	CritCitationRate     = "citation_rate"
	CritMentionRate      = "mention_rate"
)

type criterion struct {
	name   string
	weight float64
}

// budgets are the per-pillar point caps.
var budgets = map[string]float64{
	model.PillarCrawlability:  30,
	model.PillarStructured:    20,
	model.PillarAnswerability: 25,
	model.PillarTrust:         15,
	model.PillarVisibility:    10,
}

// criteria lists each pillar's sub-criteria. Crawlability's weights add up to
// more than its budget; the raw total is capped.
var criteria = map[string][]criterion{
	model.PillarCrawlability: {
		{CritStatusOK, 8},
		{CritIndexable, 7},
		{CritCanonical, 4},
		{CritHTTPS, 3},
		{CritRobotsTxt, 3},
		{CritSitemap, 3},
		{CritAICrawlers, 4},
	},
	model.PillarStructured: {
		{CritSchema, 10},
		{CritRichSchema, 6},
		{CritTitle, 2},
		{CritMetaDescription, 2},
	},
	model.PillarAnswerability: {
		{CritSubstantive, 8},
		{CritH1, 4},
		{CritQuestionHeadings, 6},
		{CritQASchema, 4},
		{CritMetaDescription, 3},
	},
	model.PillarTrust: {
		{CritAuthor, 4},
		{CritDate, 3},
		{CritHTTPS, 3},
		{CritCitations, 3},
		{CritOrganization, 2},
	},
	model.PillarVisibility: {
		{CritFastPages, 4},
		{CritCitationRate, 3},
		{CritMentionRate, 3},
	},
}

// MaxPoints returns a pillar's point budget, or 0 for unknown pillars.
func MaxPoints(pillar string) float64 {
	return budgets[pillar]
}

// SubWeight returns the points a criterion is worth within a pillar, or 0
// when the pillar does not use it.
func SubWeight(pillar, name string) float64 {
	for _, c := range criteria[pillar] {
		if c.name == name {
			return c.weight
		}
	}
	return 0
}
