// Package extract turns arbitrary HTML into bounded plain text using an
// ordered list of content selectors.
package extract

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// MinContentLength is the shortest candidate accepted before falling back to <body>.
const MinContentLength = 200

const noiseSelector = "script, style, noscript, nav, header, footer, aside"

var whitespace = regexp.MustCompile(`\s+`)

// Profile configures one extraction flavour.
type Profile struct {
	Name      string
	Selectors []string
	// FirstOnly measures only the first node matched by a selector instead of all of them.
	FirstOnly bool
	MaxLength int
}

var (
	// ReferenceProfile is used for external reference pages.
	ReferenceProfile = Profile{
		Name:      "reference",
		Selectors: []string{"article", "main", ".content", ".post-content", ".entry-content"},
		MaxLength: 5000,
	}

	// ArticleProfile is used for the blog's own article pages.
	ArticleProfile = Profile{
		Name:      "article",
		Selectors: []string{"article", ".entry-content", ".post-content", ".blog-content", "main"},
		FirstOnly: true,
		MaxLength: 8000,
	}
)

// Extract returns the main text of html under the given profile. It never fails:
// unparsable input yields an empty string.
func Extract(html string, profile Profile) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return FromDocument(doc, profile)
}

// FromDocument runs the selector cascade over an already parsed document.
// Noise elements are removed from doc in place.
func FromDocument(doc *goquery.Document, profile Profile) string {
	doc.Find(noiseSelector).Remove()

	best := ""
	bestLen := 0
	for _, selector := range profile.Selectors {
		sel := doc.Find(selector)
		if profile.FirstOnly {
			sel = sel.First()
		}
		if sel.Length() == 0 {
			continue
		}
		candidate := Normalize(sel.Text())
		if n := utf8.RuneCountInString(candidate); n > bestLen {
			best, bestLen = candidate, n
		}
	}

	if bestLen < MinContentLength {
		best = Normalize(doc.Find("body").Text())
	}

	return Truncate(best, profile.MaxLength)
}

// Normalize collapses whitespace runs into single spaces and trims the ends.
func Normalize(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// Truncate cuts text to at most limit runes.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}

// Title returns the first <h1> text, or the last path segment of pageURL.
func Title(html, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		if h1 := Normalize(doc.Find("h1").First().Text()); h1 != "" {
			return h1
		}
	}
	return SlugTitle(pageURL)
}

// SlugTitle derives a display title from the last non-empty URL path segment.
func SlugTitle(pageURL string) string {
	p := pageURL
	if u, err := url.Parse(pageURL); err == nil {
		p = u.Path
	}
	slug := path.Base(strings.TrimRight(p, "/"))
	if slug == "." || slug == "/" || slug == "" {
		return "Untitled"
	}
	return slug
}
