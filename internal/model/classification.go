package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// SiteType is a categorical site label.
type SiteType = string

// Canonical site types.
const (
	SiteTypeEcommerce     SiteType = "ecommerce"
	SiteTypeSaaS          SiteType = "saas"
	SiteTypeMedia         SiteType = "media"
	SiteTypeCorporate     SiteType = "corporate"
	SiteTypeLocalBusiness SiteType = "local_business"
	SiteTypeNonprofit     SiteType = "nonprofit"
	SiteTypeEducation     SiteType = "education"
	SiteTypeGovernment    SiteType = "government"
	SiteTypeDocumentation SiteType = "documentation"
	SiteTypePortfolio     SiteType = "portfolio"
)

// AllSiteTypes returns the allowed site type enumeration in declaration order.
func AllSiteTypes() []SiteType {
	return []SiteType{
		SiteTypeEcommerce,
		SiteTypeSaaS,
		SiteTypeMedia,
		SiteTypeCorporate,
		SiteTypeLocalBusiness,
		SiteTypeNonprofit,
		SiteTypeEducation,
		SiteTypeGovernment,
		SiteTypeDocumentation,
		SiteTypePortfolio,
	}
}

// Industry is a categorical industry label.
type Industry = string

// Canonical industries.
const (
	IndustryRetail        Industry = "retail"
	IndustrySoftware      Industry = "software"
	IndustryFinance       Industry = "finance"
	IndustryHealthcare    Industry = "healthcare"
	IndustryEducation     Industry = "education"
	IndustryGovernment    Industry = "government"
	IndustryTravel        Industry = "travel"
	IndustryRealEstate    Industry = "real_estate"
	IndustryFood          Industry = "food"
	IndustryAutomotive    Industry = "automotive"
	IndustryLegal         Industry = "legal"
	IndustryMedia         Industry = "media"
	IndustryManufacturing Industry = "manufacturing"
	IndustryNonprofit     Industry = "nonprofit"

	// IndustryGeneral is the static default when no tier produced evidence.
	IndustryGeneral Industry = "general"
)

// AllIndustries returns the allowed industry enumeration (excluding the
// static default) in declaration order.
func AllIndustries() []Industry {
	return []Industry{
		IndustryRetail,
		IndustrySoftware,
		IndustryFinance,
		IndustryHealthcare,
		IndustryEducation,
		IndustryGovernment,
		IndustryTravel,
		IndustryRealEstate,
		IndustryFood,
		IndustryAutomotive,
		IndustryLegal,
		IndustryMedia,
		IndustryManufacturing,
		IndustryNonprofit,
	}
}

// IsSiteType reports whether v is in the site type enumeration.
func IsSiteType(v string) bool {
	for _, st := range AllSiteTypes() {
		if st == v {
			return true
		}
	}
	return false
}

// IsIndustry reports whether v is in the industry enumeration.
func IsIndustry(v string) bool {
	for _, ind := range AllIndustries() {
		if ind == v {
			return true
		}
	}
	return false
}

// SiteMode is the structural mode of a site, derived from URL shape and
// commerce indicators. The empty value means unknown.
type SiteMode string

const (
	SiteModeDocs              SiteMode = "docs"
	SiteModeSupport           SiteMode = "support"
	SiteModeCareers           SiteMode = "careers"
	SiteModeInvestorRelations SiteMode = "investor_relations"
	SiteModeStore             SiteMode = "store"
	SiteModeMarketing         SiteMode = "marketing"
)

// MarshalJSON encodes the unknown mode as null.
func (m SiteMode) MarshalJSON() ([]byte, error) {
	return nullableString(string(m))
}

// UnmarshalJSON accepts null as the unknown mode.
func (m *SiteMode) UnmarshalJSON(b []byte) error {
	s, err := parseNullableString(b)
	*m = SiteMode(s)
	return err
}

// BrandKind describes how a commerce site relates to the goods it sells.
// The empty value means unknown.
type BrandKind string

const (
	BrandKindManufacturer BrandKind = "manufacturer"
	BrandKindRetailer     BrandKind = "retailer"
	BrandKindMarketplace  BrandKind = "marketplace"
	BrandKindNone         BrandKind = "none"
)

// MarshalJSON encodes the unknown brand kind as null.
func (k BrandKind) MarshalJSON() ([]byte, error) {
	return nullableString(string(k))
}

// UnmarshalJSON accepts null as the unknown brand kind.
func (k *BrandKind) UnmarshalJSON(b []byte) error {
	s, err := parseNullableString(b)
	*k = BrandKind(s)
	return err
}

// Purpose is the primary job a site does for its visitors.
type Purpose string

const (
	PurposeTransact      Purpose = "transact"
	PurposeEducate       Purpose = "educate"
	PurposeSupport       Purpose = "support"
	PurposeRecruit       Purpose = "recruit"
	PurposeInvest        Purpose = "invest"
	PurposeServe         Purpose = "serve"
	PurposeDonate        Purpose = "donate"
	PurposeGenerateLeads Purpose = "generate_leads"
	PurposeInform        Purpose = "inform"
)

// Label space names, used as signal prefixes and source keys.
const (
	SpaceSiteType = "site_type"
	SpaceIndustry = "industry"
)

// ScoredLabel is a label with a calibrated confidence. An empty Value means
// "no evidence"; in that case Confidence is meaningless and both serialize
// as null.
type ScoredLabel struct {
	Value      string
	Confidence float64
}

// Empty reports whether the label carries no evidence.
func (l ScoredLabel) Empty() bool { return l.Value == "" }

type scoredLabelJSON struct {
	Value      *string  `json:"value"`
	Confidence *float64 `json:"confidence"`
}

// MarshalJSON writes {"value": null, "confidence": null} for empty labels.
func (l ScoredLabel) MarshalJSON() ([]byte, error) {
	var out scoredLabelJSON
	if !l.Empty() {
		v, c := l.Value, l.Confidence
		out.Value, out.Confidence = &v, &c
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads both null and populated labels.
func (l *ScoredLabel) UnmarshalJSON(b []byte) error {
	var in scoredLabelJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return eris.Wrap(err, "model: unmarshal scored label")
	}
	*l = ScoredLabel{}
	if in.Value != nil && *in.Value != "" {
		l.Value = *in.Value
		if in.Confidence != nil {
			l.Confidence = *in.Confidence
		}
	}
	return nil
}

// SecondaryOpinion is the remote model's schema-valid answer, kept alongside
// the primary rules-based labels rather than replacing them.
type SecondaryOpinion struct {
	Source         string      `json:"source"`
	Model          string      `json:"model"`
	SiteType       ScoredLabel `json:"site_type"`
	Industry       ScoredLabel `json:"industry"`
	AgreesSiteType bool        `json:"agrees_site_type"`
	AgreesIndustry bool        `json:"agrees_industry"`
}

// Classification is the immutable result of classifying one site.
type Classification struct {
	Domain              string             `json:"domain"`
	Version             string             `json:"version"`
	SiteType            ScoredLabel        `json:"site_type"`
	Industry            ScoredLabel        `json:"industry"`
	SiteMode            SiteMode           `json:"site_mode"`
	BrandKind           BrandKind          `json:"brand_kind"`
	Purpose             Purpose            `json:"purpose"`
	Lang                string             `json:"lang,omitempty"`
	Region              string             `json:"region,omitempty"`
	StructuredDataTypes []string           `json:"structured_data_types"`
	NavTerms            []string           `json:"nav_terms"`
	CategoryTerms       []string           `json:"category_terms"`
	Signals             map[string]float64 `json:"signals"`
	Sources             map[string]string  `json:"sources"`
	Notes               []string           `json:"notes"`
	Secondary           *SecondaryOpinion  `json:"secondary,omitempty"`
}

func nullableString(s string) ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(s)
}

func parseNullableString(b []byte) (string, error) {
	if string(b) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return "", eris.Wrap(err, "model: unmarshal enum")
	}
	return s, nil
}
