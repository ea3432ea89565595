package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var excludedSegments = []string{"/tag/", "/page/", "/author/"}

// LinkCollector extracts article permalinks from an index page.
type LinkCollector struct {
	origin  *url.URL
	root    string
	pattern *regexp.Regexp
}

// NewLinkCollector accepts links of the form <root><slug>/ resolved against origin.
// root is the index path, e.g. "/blogs/".
func NewLinkCollector(origin, root string) *LinkCollector {
	base, err := url.Parse(origin)
	if err != nil {
		base = &url.URL{}
	}
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return &LinkCollector{
		origin:  base,
		root:    root,
		pattern: regexp.MustCompile(regexp.QuoteMeta(root) + `[a-z0-9-]+/?$`),
	}
}

// Collect returns unique absolute article URLs in first-seen order.
func (c *LinkCollector) Collect(doc *goquery.Document) []string {
	seen := map[string]struct{}{}
	links := make([]string, 0)

	doc.Find(`a[href*="` + c.root + `"]`).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if !c.accept(href) {
			return
		}
		abs := c.resolve(href)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})

	return links
}

func (c *LinkCollector) accept(href string) bool {
	for _, seg := range excludedSegments {
		if strings.Contains(href, seg) {
			return false
		}
	}
	return c.pattern.MatchString(href)
}

func (c *LinkCollector) resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	return c.origin.ResolveReference(ref).String()
}

func splitBase(baseURL string) (origin, root string, err error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid base url %s: %w", baseURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", "", fmt.Errorf("base url %s is not absolute", baseURL)
	}
	root = u.Path
	if root == "" {
		root = "/"
	}
	return u.Scheme + "://" + u.Host, root, nil
}
