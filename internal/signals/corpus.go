package signals

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Corpus defaults.
const (
	DefaultCorpusWords    = 300
	DefaultCorpusMaxChars = 4000
)

// Corpus is the bounded, normalized text the classifier scores.
type Corpus struct {
	// Text is title, description, headings, body prefix and URL tokens.
	Text string
	// Body is the normalized body prefix alone.
	Body string
	// Title is the raw document title.
	Title string
	// WordCount counts the words in the full visible body text.
	WordCount int
}

// Normalize decomposes s, strips combining marks, lower-cases it and
// collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return collapse(strings.ToLower(out))
}

// BuildCorpus assembles the corpus from document fields and the page URL.
func BuildCorpus(d *Document, pageURL *url.URL, words, maxChars int) Corpus {
	if words <= 0 {
		words = DefaultCorpusWords
	}
	if maxChars <= 0 {
		maxChars = DefaultCorpusMaxChars
	}

	title := collapse(d.doc.Find("title").First().Text())
	desc := d.doc.Find(`meta[name="description"]`).AttrOr("content", "")
	if desc == "" {
		desc = d.doc.Find(`meta[property="og:description"]`).AttrOr("content", "")
	}

	var headings []string
	d.doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if h := collapse(s.Text()); h != "" {
			headings = append(headings, h)
		}
	})

	fields := strings.Fields(d.text)
	prefix := fields
	if len(prefix) > words {
		prefix = prefix[:words]
	}
	body := truncate(Normalize(strings.Join(prefix, " ")), maxChars)

	parts := []string{title, desc, strings.Join(headings, " "), strings.Join(prefix, " ")}
	parts = append(parts, urlTokens(pageURL)...)

	return Corpus{
		Text:      truncate(Normalize(strings.Join(parts, " ")), maxChars),
		Body:      body,
		Title:     title,
		WordCount: len(fields),
	}
}

// urlTokens splits the host (minus www) and path into words.
func urlTokens(u *url.URL) []string {
	if u == nil {
		return nil
	}
	split := func(s string) []string {
		return strings.FieldsFunc(s, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
	}
	tokens := split(strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."))
	return append(tokens, split(strings.ToLower(u.Path))...)
}

// truncate cuts s to at most n bytes on a word boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	for !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return strings.TrimSpace(cut)
}
