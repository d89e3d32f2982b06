package classify

import (
	"net/url"
	"strings"

	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/signals"
)

// modeRule matches a leading subdomain label or first path segment.
type modeRule struct {
	mode       model.SiteMode
	subdomains []string
	paths      []string
}

// modeRules are evaluated in order; URL shape beats commerce detection.
var modeRules = []modeRule{
	{model.SiteModeDocs, []string{"docs", "developer", "developers", "dev", "api"}, []string{"docs", "documentation", "developers"}},
	{model.SiteModeSupport, []string{"support", "help", "helpdesk", "kb"}, []string{"support", "help", "helpdesk", "kb"}},
	{model.SiteModeCareers, []string{"careers", "jobs"}, []string{"careers", "jobs"}},
	{model.SiteModeInvestorRelations, []string{"investors", "ir"}, []string{"investors", "investor-relations"}},
}

// InferMode maps URL shape and commerce indicators to a site mode. It is
// total: every input yields a mode, marketing when nothing else matches.
func InferMode(u *url.URL, commerce signals.CommerceSignals) model.SiteMode {
	sub, seg := urlShape(u)
	for _, r := range modeRules {
		if contains(r.subdomains, sub) || contains(r.paths, seg) {
			return r.mode
		}
	}
	if commerce.Transactional() {
		return model.SiteModeStore
	}
	return model.SiteModeMarketing
}

// urlShape returns the leading subdomain label (hosts with three or more
// labels, www ignored) and the first path segment.
func urlShape(u *url.URL) (sub, seg string) {
	if u == nil {
		return "", ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if labels := strings.Split(host, "."); len(labels) >= 3 {
		sub = labels[0]
	}
	path := strings.Trim(strings.ToLower(u.Path), "/")
	if path != "" {
		seg = strings.SplitN(path, "/", 2)[0]
	}
	return sub, seg
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// brandPhrases are checked in priority order; earlier kinds win ties.
var brandPhrases = []struct {
	kind    model.BrandKind
	phrases []string
}{
	{model.BrandKindMarketplace, []string{"sold by", "third-party sellers", "third party sellers", "become a seller", "sell on"}},
	{model.BrandKindRetailer, []string{"authorized dealer", "authorized retailer", "shop by brand", "top brands"}},
	{model.BrandKindManufacturer, []string{"we manufacture", "our factory", "manufacturer of", "made in our"}},
}

// InferBrandKind counts brand phrases in normalized text. Without any phrase
// a non-commerce site is "none" and a commerce site is unknown.
func InferBrandKind(text string, commerce signals.CommerceSignals) model.BrandKind {
	best, bestCount := model.BrandKind(""), 0
	for _, b := range brandPhrases {
		n := 0
		for _, p := range b.phrases {
			n += strings.Count(text, p)
		}
		if n > bestCount {
			best, bestCount = b.kind, n
		}
	}
	if bestCount > 0 {
		return best
	}
	if commerce.Transactional() {
		return ""
	}
	return model.BrandKindNone
}

const anyKey = "*"

type purposeKey struct {
	mode     string
	industry string
}

// purposeTable is consulted as (mode, industry), (mode, *), (*, industry).
var purposeTable = map[purposeKey]model.Purpose{
	{string(model.SiteModeStore), model.IndustryNonprofit}:         model.PurposeDonate,
	{string(model.SiteModeMarketing), model.IndustryNonprofit}:     model.PurposeDonate,
	{string(model.SiteModeMarketing), model.IndustryEducation}:     model.PurposeEducate,
	{string(model.SiteModeMarketing), model.IndustryGovernment}:    model.PurposeServe,
	{string(model.SiteModeMarketing), model.IndustryMedia}:         model.PurposeInform,
	{string(model.SiteModeMarketing), model.IndustrySoftware}:      model.PurposeGenerateLeads,
	{string(model.SiteModeMarketing), model.IndustryFinance}:       model.PurposeGenerateLeads,
	{string(model.SiteModeMarketing), model.IndustryLegal}:         model.PurposeGenerateLeads,
	{string(model.SiteModeMarketing), model.IndustryRealEstate}:    model.PurposeGenerateLeads,
	{string(model.SiteModeMarketing), model.IndustryManufacturing}: model.PurposeGenerateLeads,

	{string(model.SiteModeStore), anyKey}:             model.PurposeTransact,
	{string(model.SiteModeDocs), anyKey}:              model.PurposeEducate,
	{string(model.SiteModeSupport), anyKey}:           model.PurposeSupport,
	{string(model.SiteModeCareers), anyKey}:           model.PurposeRecruit,
	{string(model.SiteModeInvestorRelations), anyKey}: model.PurposeInvest,

	{anyKey, model.IndustryRetail}:     model.PurposeTransact,
	{anyKey, model.IndustryTravel}:     model.PurposeTransact,
	{anyKey, model.IndustryEducation}:  model.PurposeEducate,
	{anyKey, model.IndustryGovernment}: model.PurposeServe,
	{anyKey, model.IndustryHealthcare}: model.PurposeServe,
	{anyKey, model.IndustryFood}:       model.PurposeServe,
	{anyKey, model.IndustryNonprofit}:  model.PurposeDonate,
}

// InferPurpose looks up the purpose for a mode and industry, defaulting to
// inform.
func InferPurpose(mode model.SiteMode, industry string) model.Purpose {
	m := string(mode)
	for _, k := range []purposeKey{{m, industry}, {m, anyKey}, {anyKey, industry}} {
		if k.mode == "" || k.industry == "" {
			continue
		}
		if p, ok := purposeTable[k]; ok {
			return p
		}
	}
	return model.PurposeInform
}
