// Package signals turns raw homepage HTML into the evidence the classifier
// scores: structured-data types, navigation terms, language and region hints,
// commerce indicators and a bounded text corpus.
package signals

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Document is a parsed page with its visible text precomputed.
type Document struct {
	doc     *goquery.Document
	text    string
	scripts int
}

// Selection exposes the underlying goquery document root.
func (d *Document) Selection() *goquery.Selection { return d.doc.Selection }

// Text returns the visible body text with whitespace collapsed.
func (d *Document) Text() string { return d.text }

// Scripts returns the number of <script> elements on the page.
func (d *Document) Scripts() int { return d.scripts }

var whitespaceRe = regexp.MustCompile(`\s+`)

// skipped elements never contribute visible text.
var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"iframe":   true,
}

// Parse decodes raw to UTF-8 using the declared content type and any <meta>
// charset, then builds a document.
func Parse(raw []byte, contentType string) (*Document, error) {
	enc, _, _ := charset.DetermineEncoding(raw, contentType)
	data, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		if !utf8.Valid(raw) {
			return nil, eris.Wrap(err, "signals: decode html")
		}
		data = raw
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "signals: parse html")
	}

	d := &Document{doc: doc, scripts: doc.Find("script").Length()}
	var b strings.Builder
	for _, n := range doc.Find("body").Nodes {
		visibleText(n, &b)
	}
	d.text = strings.TrimSpace(whitespaceRe.ReplaceAllString(b.String(), " "))
	return d, nil
}

func visibleText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && skipped[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visibleText(c, b)
	}
}

// collapse trims s and folds runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
