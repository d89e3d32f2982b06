// Package classify scores homepage evidence into site type, industry, mode,
// brand kind and purpose labels, walking an ordered fallback chain from
// jurisdiction overrides through weighted rules and embeddings to defaults.
package classify

import (
	_ "embed"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/site-audit/internal/model"
)

//go:embed clusters.yaml
var defaultClusters []byte

// Cluster is one candidate label's compiled token matchers.
type Cluster struct {
	Label        string
	Patterns     []*regexp.Regexp
	WeightPerHit float64
	Bonus        float64
}

// Boost is a fixed contribution awarded when a structured-data type is seen.
type Boost struct {
	Label  string
	Weight float64
}

// Table is the cluster set for one label space.
type Table struct {
	Space    string
	Clusters []Cluster
	// Boosts maps a schema.org type to the boosts it awards in this space.
	Boosts map[string][]Boost
}

// Rules holds both label-space tables.
type Rules struct {
	SiteType Table
	Industry Table
}

type clusterFile struct {
	SiteType       []clusterSpec          `yaml:"site_type"`
	Industry       []clusterSpec          `yaml:"industry"`
	StructuredData map[string][]boostSpec `yaml:"structured_data"`
}

type clusterSpec struct {
	Label        string   `yaml:"label"`
	WeightPerHit float64  `yaml:"weight_per_hit"`
	Bonus        float64  `yaml:"bonus"`
	Patterns     []string `yaml:"patterns"`
}

type boostSpec struct {
	Space  string  `yaml:"space"`
	Label  string  `yaml:"label"`
	Weight float64 `yaml:"weight"`
}

// DefaultRules returns the compiled embedded cluster tables.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultClusters)
}

// LoadRules reads cluster tables from a YAML file. An empty path returns the
// embedded defaults.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read clusters %s", path)
	}
	return ParseRules(data)
}

// ParseRules compiles cluster tables from YAML. Labels must belong to their
// space's enumeration.
func ParseRules(data []byte) (*Rules, error) {
	var f clusterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "classify: parse clusters")
	}

	siteType, err := compileTable(model.SpaceSiteType, f.SiteType, model.IsSiteType)
	if err != nil {
		return nil, err
	}
	industry, err := compileTable(model.SpaceIndustry, f.Industry, model.IsIndustry)
	if err != nil {
		return nil, err
	}

	for typ, boosts := range f.StructuredData {
		for _, b := range boosts {
			var t *Table
			switch b.Space {
			case model.SpaceSiteType:
				t = &siteType
			case model.SpaceIndustry:
				t = &industry
			default:
				return nil, eris.Errorf("classify: boost for %s has unknown space %q", typ, b.Space)
			}
			if !t.has(b.Label) {
				return nil, eris.Errorf("classify: boost for %s targets unknown %s label %q", typ, b.Space, b.Label)
			}
			t.Boosts[typ] = append(t.Boosts[typ], Boost{Label: b.Label, Weight: b.Weight})
		}
	}

	return &Rules{SiteType: siteType, Industry: industry}, nil
}

func compileTable(space string, specs []clusterSpec, valid func(string) bool) (Table, error) {
	t := Table{Space: space, Boosts: make(map[string][]Boost)}
	seen := make(map[string]bool)
	for _, s := range specs {
		if !valid(s.Label) {
			return t, eris.Errorf("classify: unknown %s label %q", space, s.Label)
		}
		if seen[s.Label] {
			return t, eris.Errorf("classify: duplicate %s cluster %q", space, s.Label)
		}
		if s.WeightPerHit < 0 || s.Bonus < 0 {
			return t, eris.Errorf("classify: %s cluster %q has negative weight", space, s.Label)
		}
		seen[s.Label] = true

		c := Cluster{Label: s.Label, WeightPerHit: s.WeightPerHit, Bonus: s.Bonus}
		for _, p := range s.Patterns {
			re, err := regexp.Compile(`(?i)\b(?:` + p + `)\b`)
			if err != nil {
				return t, eris.Wrapf(err, "classify: compile %s/%s pattern %q", space, s.Label, p)
			}
			c.Patterns = append(c.Patterns, re)
		}
		t.Clusters = append(t.Clusters, c)
	}
	return t, nil
}

func (t *Table) has(label string) bool {
	for _, c := range t.Clusters {
		if c.Label == label {
			return true
		}
	}
	return false
}

// ScoreSpace scores a corpus against every cluster in t plus structured-data
// boosts. Labels that score zero are dropped.
func ScoreSpace(corpus string, t *Table, sdTypes []string) map[string]float64 {
	scores := make(map[string]float64)
	for _, c := range t.Clusters {
		var score float64
		matched := false
		for _, re := range c.Patterns {
			if n := len(re.FindAllStringIndex(corpus, -1)); n > 0 {
				score += c.WeightPerHit * float64(n)
				matched = true
			}
		}
		if matched {
			score += c.Bonus
		}
		if score > 0 {
			scores[c.Label] = score
		}
	}
	for _, typ := range sdTypes {
		for _, b := range t.Boosts[typ] {
			if b.Weight > 0 {
				scores[b.Label] += b.Weight
			}
		}
	}
	return scores
}

// Ranked is one label with its score.
type Ranked struct {
	Label string
	Score float64
}

// Rank orders scores descending, breaking ties by table order.
func Rank(scores map[string]float64, t *Table) []Ranked {
	pos := make(map[string]int, len(t.Clusters))
	for i, c := range t.Clusters {
		pos[c.Label] = i
	}
	out := make([]Ranked, 0, len(scores))
	for label, score := range scores {
		if score > 0 {
			out = append(out, Ranked{Label: label, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		pi, iok := pos[out[i].Label]
		pj, jok := pos[out[j].Label]
		if iok != jok {
			return iok
		}
		if pi != pj {
			return pi < pj
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// JurisdictionOverride reports the industry forced by an education or
// government domain suffix: .edu, .edu.<cc>, .ac.<cc>, .gov, .gov.<cc>, .mil.
func JurisdictionOverride(host string) (string, bool) {
	labels := strings.Split(strings.TrimSuffix(strings.ToLower(host), "."), ".")
	n := len(labels)
	if n < 2 {
		return "", false
	}
	switch labels[n-1] {
	case "edu":
		return model.IndustryEducation, true
	case "gov", "mil":
		return model.IndustryGovernment, true
	}
	if n >= 3 && len(labels[n-1]) == 2 {
		switch labels[n-2] {
		case "edu", "ac":
			return model.IndustryEducation, true
		case "gov":
			return model.IndustryGovernment, true
		}
	}
	return "", false
}
