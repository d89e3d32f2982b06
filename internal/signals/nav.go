package signals

import (
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultNavTermCap bounds the nav term list when no cap is given.
	DefaultNavTermCap = 20

	navTermMaxWords = 4
	navTermMaxChars = 40
)

// NavTerms returns normalized anchor texts from navigation regions, ranked
// by frequency with ties broken by first appearance, deduplicated and capped.
func NavTerms(d *Document, limit int) []string {
	if limit <= 0 {
		limit = DefaultNavTermCap
	}

	type term struct {
		text  string
		count int
		first int
	}
	byText := make(map[string]*term)
	var order []*term

	d.doc.Find(`nav a, header a, [role="navigation"] a`).Each(func(i int, s *goquery.Selection) {
		t := normalizeNavTerm(s.Text())
		if t == "" {
			return
		}
		if existing, ok := byText[t]; ok {
			existing.count++
			return
		}
		nt := &term{text: t, count: 1, first: i}
		byText[t] = nt
		order = append(order, nt)
	})

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})

	if len(order) > limit {
		order = order[:limit]
	}
	out := make([]string, len(order))
	for i, t := range order {
		out[i] = t.text
	}
	return out
}

func normalizeNavTerm(s string) string {
	s = strings.ToLower(collapse(s))
	s = strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if s == "" || len(s) > navTermMaxChars {
		return ""
	}
	if len(strings.Fields(s)) > navTermMaxWords {
		return ""
	}
	if strings.IndexFunc(s, unicode.IsLetter) < 0 {
		return ""
	}
	return s
}
