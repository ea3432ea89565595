// Package fetch retrieves HTML pages over HTTP for the scanner and the pipeline.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"

	"BlogEnricher/internal/config"
	"BlogEnricher/internal/ports"
)

var (
	// ErrUnexpectedStatusCode indicates a non-2xx response.
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrDisallowed is returned when robots.txt forbids the path.
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

const defaultMaxBody = 5 << 20

// Fetcher implements ports.PageFetcher on top of net/http.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	robots    *robotsCache
	logger    *slog.Logger
}

var _ ports.PageFetcher = (*Fetcher)(nil)

// New builds a fetcher. A nil client gets a plain http.Client; timeouts come per call.
func New(cfg config.FetchConfig, client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	f := &Fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		maxBody:   maxBody,
		logger:    logger,
	}
	if cfg.RespectRobots {
		f.robots = &robotsCache{groups: map[string]*robotstxt.Group{}}
	}
	return f
}

// Fetch downloads pageURL within timeout and decodes the body to UTF-8.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string, timeout time.Duration) (ports.Page, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if f.robots != nil {
		allowed, err := f.allowed(ctx, pageURL)
		if err != nil {
			return ports.Page{}, err
		}
		if !allowed {
			return ports.Page{}, fmt.Errorf("%s: %w", pageURL, ErrDisallowed)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return ports.Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return ports.Page{}, fmt.Errorf("request %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	page := ports.Page{URL: pageURL, StatusCode: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return page, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, f.maxBody)
	reader, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		reader = limited
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return page, fmt.Errorf("read body: %w", err)
	}
	page.Body = string(body)

	f.logger.Debug("page fetched", "url", pageURL, "status", resp.StatusCode, "bytes", len(body))
	return page, nil
}

type robotsCache struct {
	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

// allowed consults robots.txt of the target host, loading it once per host.
// An unreachable robots.txt allows everything.
func (f *Fetcher) allowed(ctx context.Context, pageURL string) (bool, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false, fmt.Errorf("parse url: %w", err)
	}
	host := u.Scheme + "://" + u.Host

	f.robots.mu.Lock()
	group, cached := f.robots.groups[host]
	f.robots.mu.Unlock()

	if !cached {
		group = f.loadRobots(ctx, host)
		f.robots.mu.Lock()
		f.robots.groups[host] = group
		f.robots.mu.Unlock()
	}

	if group == nil {
		return true, nil
	}
	return group.Test(u.EscapedPath()), nil
}

func (f *Fetcher) loadRobots(ctx context.Context, host string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", http.NoBody)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("robots.txt unavailable", "host", host, "error", err)
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		f.logger.Debug("robots.txt unparsable", "host", host, "error", err)
		return nil
	}
	return data.FindGroup(f.userAgent)
}
