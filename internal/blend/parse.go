package blend

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/site-audit/internal/model"
)

// ErrInvalidResponse marks a remote answer that is not schema-valid JSON.
var ErrInvalidResponse = eris.New("blend: invalid remote response")

// answer is the only accepted remote response shape.
type answer struct {
	SiteType *string `json:"site_type"`
	Industry *string `json:"industry"`
}

// parseAnswer strictly decodes a remote response. Markdown code fences are
// tolerated; unknown keys, trailing data and out-of-enum values are not.
func parseAnswer(text string) (siteType, industry string, err error) {
	body := stripFences(text)
	if body == "" {
		return "", "", eris.Wrap(ErrInvalidResponse, "blend: empty response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	var a answer
	if err := dec.Decode(&a); err != nil {
		return "", "", eris.Wrapf(ErrInvalidResponse, "blend: decode: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", "", eris.Wrap(ErrInvalidResponse, "blend: trailing data after object")
	}

	if a.SiteType == nil || !model.IsSiteType(*a.SiteType) {
		return "", "", eris.Wrapf(ErrInvalidResponse, "blend: site_type %s not allowed", quoted(a.SiteType))
	}
	if a.Industry != nil && !model.IsIndustry(*a.Industry) {
		return "", "", eris.Wrapf(ErrInvalidResponse, "blend: industry %s not allowed", quoted(a.Industry))
	}

	siteType = *a.SiteType
	if a.Industry != nil {
		industry = *a.Industry
	}
	return siteType, industry, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "json")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func quoted(s *string) string {
	if s == nil {
		return "null"
	}
	return `"` + *s + `"`
}
