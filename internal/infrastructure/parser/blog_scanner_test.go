package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"BlogEnricher/internal/config"
	"BlogEnricher/internal/infrastructure/fetch"
	"BlogEnricher/internal/scanner"
)

func anchors(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, href := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, href)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestLinkCollector(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(anchors(
		"/blogs/my-post/",
		"/blogs/tag/news/",
		"/blogs/page/2/",
		"/blogs/my-post/",
	)))
	require.NoError(t, err)

	links := NewLinkCollector("https://site", "/blogs/").Collect(doc)
	require.Equal(t, []string{"https://site/blogs/my-post/"}, links)
}

func TestLinkCollectorFilters(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(anchors(
		"https://site/blogs/absolute-one",
		"/blogs/author/jane/",
		"/blogs/Upper-Case/",
		"/blogs/nested/child/",
		"/blogs/",
		"/about/",
		"/blogs/second-post/",
	)))
	require.NoError(t, err)

	links := NewLinkCollector("https://site", "/blogs/").Collect(doc)
	require.Equal(t, []string{
		"https://site/blogs/absolute-one",
		"https://site/blogs/second-post/",
	}, links)
}

func TestFindLastPage(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(anchors(
		"/blogs/page/2/", "/blogs/page/14/", "/blogs/page/3/", "/blogs/page/next/",
	)))
	require.NoError(t, err)
	require.Equal(t, 14, findLastPage(doc))

	empty, err := goquery.NewDocumentFromReader(strings.NewReader("<p>none</p>"))
	require.NoError(t, err)
	require.Equal(t, 1, findLastPage(empty))
}

func TestPageURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://site/blogs/", PageURL("https://site/blogs/", 1))
	require.Equal(t, "https://site/blogs/page/3/", PageURL("https://site/blogs/", 3))
}

// blogServer serves index pages keyed by path and records every hit.
type blogServer struct {
	mu    sync.Mutex
	pages map[string]string
	hits  []string
}

func (s *blogServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits = append(s.hits, r.URL.Path)
	body, ok := s.pages[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(body))
}

func newSource(t *testing.T, srv *httptest.Server) *StrategySource {
	t.Helper()

	fetcher := fetch.New(config.FetchConfig{UserAgent: "test"}, srv.Client(), nil)
	reg := scanner.NewRegistry()
	reg.Register(NewBlogScanner(fetcher, 0, nil))

	return NewStrategySource(reg, config.BlogConfig{
		Name:         "fixture",
		Scanner:      BlogScannerName,
		BaseURL:      srv.URL + "/blogs/",
		MaxPagesBack: 3,
		CandidateCap: 10,
	}, nil)
}

func TestDiscoverOldestTwoPages(t *testing.T) {
	t.Parallel()

	handler := &blogServer{pages: map[string]string{
		"/blogs/": anchors(
			"/blogs/a/", "/blogs/b/", "/blogs/c/", "/blogs/d/", "/blogs/e/", "/blogs/page/2/",
		),
		"/blogs/page/2/": anchors(
			"/blogs/f/", "/blogs/g/", "/blogs/e/",
		),
	}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	got, err := newSource(t, srv).DiscoverOldest(context.Background(), 5)
	require.NoError(t, err)

	// Walk order is page 2 then page 1: f g e a b c d (e deduplicated).
	base := srv.URL + "/blogs/"
	require.Equal(t, []string{base + "e/", base + "a/", base + "b/", base + "c/", base + "d/"}, got)
}

func TestScanBoundsAndSkipsFailedPages(t *testing.T) {
	t.Parallel()

	handler := &blogServer{pages: map[string]string{
		"/blogs/":        anchors("/blogs/first/", "/blogs/page/5/"),
		"/blogs/page/5/": anchors("/blogs/p5/"),
		// page 4 is missing and must be skipped
		"/blogs/page/3/": anchors("/blogs/p3/"),
		"/blogs/page/2/": anchors("/blogs/p2/"),
	}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	got, err := newSource(t, srv).DiscoverOldest(context.Background(), 5)
	require.NoError(t, err)

	base := srv.URL + "/blogs/"
	require.Equal(t, []string{base + "p5/", base + "p3/"}, got)
	require.NotContains(t, handler.hits, "/blogs/page/2/")
}

func TestScanStopsAtCandidateCap(t *testing.T) {
	t.Parallel()

	var many []string
	for i := 0; i < 12; i++ {
		many = append(many, fmt.Sprintf("/blogs/post-%d/", i))
	}
	handler := &blogServer{pages: map[string]string{
		"/blogs/":        anchors("/blogs/page/2/"),
		"/blogs/page/2/": anchors(many...),
	}}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	got, err := newSource(t, srv).DiscoverOldest(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	require.Equal(t, srv.URL+"/blogs/post-11/", got[4])
	require.Equal(t, []string{"/blogs/", "/blogs/page/2/"}, handler.hits)
}

func TestMissingFirstPageYieldsNoCandidates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(&blogServer{pages: map[string]string{}})
	defer srv.Close()

	urls, err := newSource(t, srv).DiscoverOldest(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, []string{}, urls)
}
