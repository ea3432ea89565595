package parser

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"BlogEnricher/internal/metrics"
	"BlogEnricher/internal/ports"
	"BlogEnricher/internal/scanner"
)

// BlogScannerName is the registry key of BlogScanner.
const BlogScannerName = "paginated-blog"

var pageExpr = regexp.MustCompile(`/page/(\d+)`)

// BlogScanner walks a WordPress-style paginated index backwards from its last page.
type BlogScanner struct {
	fetcher     ports.PageFetcher
	pageTimeout time.Duration
	logger      *slog.Logger
}

var _ scanner.Scanner = (*BlogScanner)(nil)

// NewBlogScanner wires a page fetcher; pageTimeout defaults to 15s.
func NewBlogScanner(fetcher ports.PageFetcher, pageTimeout time.Duration, logger *slog.Logger) *BlogScanner {
	if pageTimeout <= 0 {
		pageTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BlogScanner{fetcher: fetcher, pageTimeout: pageTimeout, logger: logger}
}

// Name identifies the strategy inside the registry.
func (b *BlogScanner) Name() string {
	return BlogScannerName
}

// Scan fetches the first index page to learn the page count, then walks from the
// last page towards the first. At most req.MaxPagesBack pages are visited and the
// walk stops once req.CandidateCap links are collected. A failed page is skipped.
// When the first page fails the index is treated as a single empty page.
func (b *BlogScanner) Scan(ctx context.Context, req scanner.Request) ([]string, error) {
	if req.BaseURL == "" {
		return nil, fmt.Errorf("no base url provided for site %s", req.SiteName)
	}
	baseURL := req.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	collector, err := collectorFor(baseURL)
	if err != nil {
		return nil, err
	}

	lastPage := 1
	first, err := b.fetchDocument(ctx, baseURL)
	if err != nil {
		b.logger.Warn("first index page unavailable", "site", req.SiteName, "url", baseURL, "error", err)
	} else {
		lastPage = findLastPage(first)
	}
	lowest := max(1, lastPage-req.MaxPagesBack+1)
	b.logger.Debug("index discovered", "site", req.SiteName, "last_page", lastPage, "lowest_page", lowest)

	var walked []string
	for page := lastPage; page >= lowest && len(walked) < req.CandidateCap; page-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc := first
		if page == 1 && doc == nil {
			continue
		}
		if page != 1 {
			pageURL := PageURL(baseURL, page)
			doc, err = b.fetchDocument(ctx, pageURL)
			if err != nil {
				b.logger.Warn("index page skipped", "page", page, "url", pageURL, "error", err)
				continue
			}
		}

		links := collector.Collect(doc)
		b.logger.Debug("index page scanned", "page", page, "links", len(links))
		walked = append(walked, links...)
	}

	return dedupe(walked), nil
}

func (b *BlogScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	page, err := b.fetcher.Fetch(ctx, pageURL, b.pageTimeout)
	metrics.ObservePageFetch("index", err)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// PageURL returns the index URL for page n; page 1 is the base itself.
func PageURL(baseURL string, n int) string {
	if n <= 1 {
		return baseURL
	}
	return baseURL + "page/" + strconv.Itoa(n) + "/"
}

func findLastPage(doc *goquery.Document) int {
	last := 1
	doc.Find(`a[href*="/page/"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		match := pageExpr.FindStringSubmatch(href)
		if match == nil {
			return
		}
		if n, err := strconv.Atoi(match[1]); err == nil && n > last {
			last = n
		}
	})
	return last
}

func collectorFor(baseURL string) (*LinkCollector, error) {
	origin, root, err := splitBase(baseURL)
	if err != nil {
		return nil, err
	}
	return NewLinkCollector(origin, root), nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
