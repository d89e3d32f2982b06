package blend

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/site-audit/internal/model"
)

const excerptMaxChars = 1500

var systemPrompt = fmt.Sprintf(`You classify websites from a short description of their homepage.

Respond with a single JSON object and nothing else:
{"site_type": "<site type>", "industry": "<industry or null>"}

site_type must be exactly one of: %s.
industry must be exactly one of: %s, or null when the homepage does not say.
Do not add any other keys. Do not explain your answer.`,
	strings.Join(model.AllSiteTypes(), ", "),
	strings.Join(model.AllIndustries(), ", "),
)

// buildPrompt renders the per-site user message.
func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Domain: %s\n", req.Domain)
	if req.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", req.Title)
	}
	if len(req.NavTerms) > 0 {
		fmt.Fprintf(&b, "Navigation: %s\n", strings.Join(req.NavTerms, ", "))
	}
	excerpt := req.Excerpt
	if len(excerpt) > excerptMaxChars {
		excerpt = excerpt[:excerptMaxChars]
		for !utf8.ValidString(excerpt) {
			excerpt = excerpt[:len(excerpt)-1]
		}
	}
	if excerpt != "" {
		fmt.Fprintf(&b, "Excerpt: %s\n", excerpt)
	}
	return b.String()
}
