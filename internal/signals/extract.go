package signals

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	spaMaxWords   = 50
	spaMinScripts = 8
)

const appShellSelectors = `#root, #app, #__next, #__nuxt, [ng-app], [data-reactroot]`

// SPARisk reports whether the page looks like a client-rendered app shell
// whose raw HTML says little about the site.
func SPARisk(d *Document, words int) bool {
	if words >= spaMaxWords {
		return false
	}
	return d.doc.Find(appShellSelectors).Length() > 0 || d.scripts >= spaMinScripts
}

// Options bounds extraction.
type Options struct {
	CorpusWords    int
	CorpusMaxChars int
	NavTermCap     int
	ContentType    string
}

// Signals is everything extracted from one page.
type Signals struct {
	URL                 *url.URL
	Host                string
	Domain              string
	StructuredDataTypes []string
	MalformedBlocks     int
	NavTerms            []string
	Lang                string
	Region              string
	Commerce            CommerceSignals
	Corpus              Corpus
	SPARisk             bool
}

// Domain returns the lower-cased host without a leading "www.".
func Domain(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// ParseURL parses a page URL, adding an https scheme when it is missing.
func ParseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, eris.New("signals: empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "signals: parse url %q", raw)
	}
	if u.Hostname() == "" {
		return nil, eris.Errorf("signals: url %q has no host", raw)
	}
	return u, nil
}

// Extract runs every extractor once over raw HTML. Unparseable HTML yields
// empty signals for the page rather than an error; only a bad URL fails.
func Extract(raw []byte, pageURL string, opts Options) (*Signals, error) {
	u, err := ParseURL(pageURL)
	if err != nil {
		return nil, err
	}

	d, err := Parse(raw, opts.ContentType)
	if err != nil {
		if d, err = Parse(nil, ""); err != nil {
			return nil, err
		}
	}

	s := &Signals{
		URL:    u,
		Host:   strings.ToLower(u.Hostname()),
		Domain: Domain(u),
	}
	s.StructuredDataTypes, s.MalformedBlocks = StructuredDataTypes(d)
	s.NavTerms = NavTerms(d, opts.NavTermCap)
	s.Lang, s.Region = LangRegion(d, s.Host)
	s.Corpus = BuildCorpus(d, u, opts.CorpusWords, opts.CorpusMaxChars)
	s.Commerce = Commerce(d, Normalize(d.text))
	s.SPARisk = SPARisk(d, s.Corpus.WordCount)
	return s, nil
}
