package signals

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CommerceSignals are the cart, checkout and price indicators on a page.
type CommerceSignals struct {
	HasCart     bool `json:"has_cart"`
	HasCheckout bool `json:"has_checkout"`
	HasPrice    bool `json:"has_price"`
}

// Transactional reports whether the page lets visitors buy something.
func (c CommerceSignals) Transactional() bool {
	return c.HasCart || c.HasCheckout
}

var (
	cartRe     = regexp.MustCompile(`(?i)\b(add\s+to\s+(cart|bag|basket)|shopping\s+(cart|bag)|view\s+cart|buy\s+now)\b`)
	checkoutRe = regexp.MustCompile(`(?i)\b(checkout|(proceed|continue)\s+to\s+check-?out|secure\s+check-?out)\b`)
	priceRe    = regexp.MustCompile(`(?i)[$€£¥₹]\s?\d|\d[\d,]*\.\d{2}\s?(usd|eur|gbp|cad|aud)\b`)
)

// Commerce detects commerce indicators from anchor hrefs and page text.
func Commerce(d *Document, text string) CommerceSignals {
	var c CommerceSignals
	d.doc.Find("a[href], form[action]").Each(func(_ int, s *goquery.Selection) {
		ref := strings.ToLower(s.AttrOr("href", s.AttrOr("action", "")))
		if strings.Contains(ref, "/cart") || strings.Contains(ref, "/basket") {
			c.HasCart = true
		}
		if strings.Contains(ref, "/checkout") {
			c.HasCheckout = true
		}
	})
	if cartRe.MatchString(text) {
		c.HasCart = true
	}
	if checkoutRe.MatchString(text) {
		c.HasCheckout = true
	}
	c.HasPrice = priceRe.MatchString(text)
	return c
}
