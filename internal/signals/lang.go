package signals

import (
	"strings"

	"golang.org/x/text/language"
)

// ccTLDs that are commonly used as generic vanity domains and say nothing
// about where a site operates.
var vanityTLDs = map[string]bool{
	"ai": true, "am": true, "cc": true, "co": true, "fm": true, "gg": true,
	"io": true, "ly": true, "me": true, "sh": true, "to": true, "tv": true,
	"ws": true, "xyz": true,
}

// LangRegion reads the page language from <html lang>, og:locale, then the
// content-language meta header. Region comes from the same tag when it names
// one explicitly, otherwise from the host's country-code TLD.
func LangRegion(d *Document, host string) (lang, region string) {
	candidates := []string{
		d.doc.Find("html").AttrOr("lang", ""),
		d.doc.Find(`meta[property="og:locale"]`).AttrOr("content", ""),
		d.doc.Find(`meta[http-equiv="content-language"], meta[http-equiv="Content-Language"]`).AttrOr("content", ""),
	}
	for _, c := range candidates {
		c = strings.TrimSpace(strings.SplitN(c, ",", 2)[0])
		if c == "" {
			continue
		}
		tag, err := language.Parse(strings.ReplaceAll(c, "_", "-"))
		if err != nil {
			continue
		}
		base, conf := tag.Base()
		if conf == language.No {
			continue
		}
		lang = base.String()
		if r, rc := tag.Region(); rc == language.Exact {
			region = r.String()
		}
		break
	}
	if region == "" {
		region = regionFromHost(host)
	}
	return lang, region
}

func regionFromHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	i := strings.LastIndex(host, ".")
	if i < 0 {
		return ""
	}
	tld := host[i+1:]
	if len(tld) != 2 || vanityTLDs[tld] {
		return ""
	}
	if tld == "uk" {
		return "GB"
	}
	r, err := language.ParseRegion(tld)
	if err != nil || !r.IsCountry() {
		return ""
	}
	return r.String()
}
