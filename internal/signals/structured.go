package signals

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var schemaPrefixes = []string{
	"https://schema.org/",
	"http://schema.org/",
	"https://www.schema.org/",
	"http://www.schema.org/",
	"schema:",
}

// StructuredDataTypes returns the sorted, deduplicated set of schema.org
// types declared in JSON-LD blocks and microdata itemtype attributes.
// Blocks that fail to parse are skipped and counted in malformed.
func StructuredDataTypes(d *Document) (types []string, malformed int) {
	seen := make(map[string]bool)
	add := func(t string) {
		t = normalizeType(t)
		if t != "" {
			seen[t] = true
		}
	}

	d.doc.Find("script[type]").Each(func(_ int, s *goquery.Selection) {
		typ := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
		if !strings.HasPrefix(typ, "application/ld+json") {
			return
		}
		body := strings.TrimSpace(s.Text())
		if body == "" {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			malformed++
			return
		}
		collectTypes(v, add)
	})

	d.doc.Find("[itemtype]").Each(func(_ int, s *goquery.Selection) {
		for _, u := range strings.Fields(s.AttrOr("itemtype", "")) {
			u = strings.TrimRight(u, "/")
			if i := strings.LastIndex(u, "/"); i >= 0 {
				u = u[i+1:]
			}
			add(u)
		}
	})

	types = make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types, malformed
}

// collectTypes walks top-level objects, arrays and @graph members.
func collectTypes(v any, add func(string)) {
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			collectTypes(item, add)
		}
	case map[string]any:
		switch t := x["@type"].(type) {
		case string:
			add(t)
		case []any:
			for _, item := range t {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		}
		if g, ok := x["@graph"]; ok {
			collectTypes(g, add)
		}
	}
}

func normalizeType(t string) string {
	t = strings.TrimSpace(t)
	for _, p := range schemaPrefixes {
		if len(t) >= len(p) && strings.EqualFold(t[:len(p)], p) {
			t = t[len(p):]
			break
		}
	}
	return strings.TrimSpace(t)
}
