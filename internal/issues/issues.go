// Package issues turns page coverage statistics into severity-tagged audit
// findings that explain how each gap relates to a pillar score.
package issues

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/scoring"
)

// Issue types.
const (
	TypeMissingTitle           = "missing_title"
	TypeMissingH1              = "missing_h1"
	TypeLowSchemaCoverage      = "low_schema_coverage"
	TypeMissingMetaDescription = "missing_meta_description"
	TypeMissingAuthor          = "missing_author"
	TypeMissingDate            = "missing_date"
	TypeDuplicateTitle         = "duplicate_title"
	TypeDuplicateH1            = "duplicate_h1"
	TypeFewQuestionHeadings    = "few_question_headings"
	TypeThinContent            = "thin_content"
)

// maxDuplicateURLs caps the URLs listed per duplicate group.
const maxDuplicateURLs = 3

// questionHeadingTarget is the share of pages expected to carry at least one
// question-style heading.
const questionHeadingTarget = 0.5

type coverageRule struct {
	issueType string
	pillar    string
	criterion string
	threshold float64
	stat      func(scoring.Stats) float64
	noun      string
}

var coverageRules = []coverageRule{
	{TypeMissingTitle, model.PillarStructured, scoring.CritTitle, 1.0, func(s scoring.Stats) float64 { return s.Title }, "a title"},
	{TypeMissingH1, model.PillarAnswerability, scoring.CritH1, 1.0, func(s scoring.Stats) float64 { return s.H1 }, "an H1 heading"},
	{TypeLowSchemaCoverage, model.PillarStructured, scoring.CritSchema, 0.8, func(s scoring.Stats) float64 { return s.Schema }, "structured data"},
	{TypeMissingMetaDescription, model.PillarStructured, scoring.CritMetaDescription, 0.9, func(s scoring.Stats) float64 { return s.MetaDescription }, "a meta description"},
	{TypeMissingAuthor, model.PillarTrust, scoring.CritAuthor, 0.5, func(s scoring.Stats) float64 { return s.Author }, "an author"},
	{TypeMissingDate, model.PillarTrust, scoring.CritDate, 0.5, func(s scoring.Stats) float64 { return s.Date }, "a publish or update date"},
}

// Severity maps the share of pages missing a signal to a tier.
func Severity(missing float64) model.Severity {
	switch {
	case missing >= 0.75:
		return model.SeverityCritical
	case missing >= 0.5:
		return model.SeverityHigh
	case missing >= 0.2:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// Generate emits issues for pages. An empty page set yields no issues.
func Generate(pages []model.PageFacts, cfg scoring.Config) []model.AuditIssue {
	out := []model.AuditIssue{}
	if len(pages) == 0 {
		return out
	}
	stats := scoring.Coverage(pages, cfg)

	for _, r := range coverageRules {
		if issue, ok := r.evaluate(stats); ok {
			out = append(out, issue)
		}
	}
	out = append(out, duplicates(pages, TypeDuplicateTitle, model.PillarStructured, scoring.CritTitle, "title",
		func(p model.PageFacts) string { return p.Title })...)
	out = append(out, duplicates(pages, TypeDuplicateH1, model.PillarAnswerability, scoring.CritH1, "H1",
		func(p model.PageFacts) string { return p.H1 })...)
	out = append(out, informational(stats)...)

	sortIssues(out)
	zap.L().Debug("issues: generated", zap.Int("pages", len(pages)), zap.Int("issues", len(out)))
	return out
}

func (r coverageRule) evaluate(s scoring.Stats) (model.AuditIssue, bool) {
	have := r.stat(s)
	if have >= r.threshold {
		return model.AuditIssue{}, false
	}
	missing := 1 - have
	pagesMissing := int(math.Round(missing * float64(s.Pages)))
	weight := scoring.SubWeight(r.pillar, r.criterion)

	return model.AuditIssue{
		IssueType: r.issueType,
		Category:  r.pillar,
		Severity:  Severity(missing),
		Kind:      model.IssueActionable,
		Message:   fmt.Sprintf("%d of %d pages lack %s", pagesMissing, s.Pages, r.noun),
		Details: map[string]any{
			"coverage":      round3(have),
			"threshold":     r.threshold,
			"pages_missing": pagesMissing,
		},
		ScoreImpact: model.ScoreImpact{
			Pillar:     r.pillar,
			PointsLost: round2(missing * weight),
			MaxPoints:  scoring.MaxPoints(r.pillar),
			Explanation: fmt.Sprintf("%s is worth %.0f of %.0f %s points, earned in proportion to page coverage (%.0f%%).",
				r.criterion, weight, scoring.MaxPoints(r.pillar), r.pillar, have*100),
		},
	}, true
}

// duplicates groups pages by trimmed exact text and reports every group with
// two or more pages, in order of first appearance.
func duplicates(pages []model.PageFacts, issueType, pillar, criterion, label string, text func(model.PageFacts) string) []model.AuditIssue {
	groups := make(map[string][]string)
	var order []string
	for _, p := range pages {
		t := strings.TrimSpace(text(p))
		if t == "" {
			continue
		}
		if _, ok := groups[t]; !ok {
			order = append(order, t)
		}
		groups[t] = append(groups[t], p.URL)
	}

	weight := scoring.SubWeight(pillar, criterion)
	var out []model.AuditIssue
	for _, t := range order {
		urls := groups[t]
		if len(urls) < 2 {
			continue
		}
		share := float64(len(urls)) / float64(len(pages))
		shown := urls
		if len(shown) > maxDuplicateURLs {
			shown = shown[:maxDuplicateURLs]
		}
		sev := model.SeverityMedium
		if share >= 0.5 {
			sev = model.SeverityHigh
		}
		out = append(out, model.AuditIssue{
			IssueType: issueType,
			Category:  pillar,
			Severity:  sev,
			Kind:      model.IssueActionable,
			Message:   fmt.Sprintf("%d pages share the %s %q", len(urls), label, t),
			Details: map[string]any{
				label:   t,
				"urls":  append([]string(nil), shown...),
				"count": len(urls),
			},
			ScoreImpact: model.ScoreImpact{
				Pillar:      pillar,
				PointsLost:  round2(share * weight),
				MaxPoints:   scoring.MaxPoints(pillar),
				Explanation: fmt.Sprintf("Duplicate %ss make pages hard to tell apart; estimate based on the %s criterion.", label, criterion),
			},
		})
	}
	return out
}

// informational issues explain score shortfalls that have no single fix.
// Their points are estimates and need not match a deduction.
func informational(s scoring.Stats) []model.AuditIssue {
	var out []model.AuditIssue
	if s.QuestionHeadings < questionHeadingTarget {
		weight := scoring.SubWeight(model.PillarAnswerability, scoring.CritQuestionHeadings)
		out = append(out, model.AuditIssue{
			IssueType: TypeFewQuestionHeadings,
			Category:  model.PillarAnswerability,
			Severity:  model.SeverityLow,
			Kind:      model.IssueInformational,
			Message:   fmt.Sprintf("%.0f%% of pages use question-style headings", s.QuestionHeadings*100),
			Details:   map[string]any{"coverage": round3(s.QuestionHeadings)},
			ScoreImpact: model.ScoreImpact{
				Pillar:      model.PillarAnswerability,
				PointsLost:  round2((1 - s.QuestionHeadings) * weight),
				MaxPoints:   scoring.MaxPoints(model.PillarAnswerability),
				Explanation: "Answer engines favor headings phrased as questions. This is an estimate, not a direct deduction.",
			},
		})
	}
	if s.ThinPages > 0 {
		weight := scoring.SubWeight(model.PillarAnswerability, scoring.CritSubstantive)
		share := float64(s.ThinPages) / float64(s.Pages)
		out = append(out, model.AuditIssue{
			IssueType: TypeThinContent,
			Category:  model.PillarAnswerability,
			Severity:  model.SeverityLow,
			Kind:      model.IssueInformational,
			Message:   fmt.Sprintf("%d of %d pages have thin content", s.ThinPages, s.Pages),
			Details:   map[string]any{"thin_pages": s.ThinPages},
			ScoreImpact: model.ScoreImpact{
				Pillar:      model.PillarAnswerability,
				PointsLost:  round2(share * weight),
				MaxPoints:   scoring.MaxPoints(model.PillarAnswerability),
				Explanation: "Short pages rarely hold a complete answer. This is an estimate, not a direct deduction.",
			},
		})
	}
	return out
}

// sortIssues puts actionable issues first, then orders by severity and type.
// Duplicate groups keep their first-appearance order.
func sortIssues(issues []model.AuditIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Kind != b.Kind {
			return a.Kind == model.IssueActionable
		}
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		return a.IssueType < b.IssueType
	})
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
