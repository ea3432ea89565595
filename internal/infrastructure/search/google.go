// Package search finds external reference pages through the Google Custom Search JSON API.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"BlogEnricher/internal/config"
	"BlogEnricher/internal/ports"
)

// MockReferences are returned when no search credentials are configured.
var MockReferences = []string{
	"https://www.ibm.com/topics/chatbots",
	"https://www.salesforce.com/blog/what-is-a-chatbot/",
}

// GoogleClient implements ports.ReferenceFinder.
type GoogleClient struct {
	endpoint   string
	apiKey     string
	engineID   string
	configured bool
	results    int
	maxRefs    int
	originHost string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.ReferenceFinder = (*GoogleClient)(nil)

type searchResponse struct {
	Items []struct {
		Link  string `json:"link"`
		Title string `json:"title"`
	} `json:"items"`
}

// NewGoogleClient builds a finder that drops results hosted on origin.
func NewGoogleClient(cfg config.SearchConfig, origin string, logger *slog.Logger) *GoogleClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxRefs := cfg.MaxReferences
	if maxRefs <= 0 || maxRefs > config.MaxReferences {
		maxRefs = config.MaxReferences
	}
	return &GoogleClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		engineID:   cfg.EngineID,
		configured: cfg.Configured(),
		results:    cfg.Results,
		maxRefs:    maxRefs,
		originHost: bareHost(origin),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FindReferences returns at most two external URLs in rank order. Missing
// credentials yield the mock list; any failure yields an empty slice.
func (g *GoogleClient) FindReferences(ctx context.Context, query string) []string {
	if !g.configured {
		g.logger.Info("search credentials missing, using mock references")
		return append([]string(nil), MockReferences...)
	}

	links, err := g.search(ctx, query)
	if err != nil {
		g.logger.Warn("search failed", "query", query, "error", err)
		return []string{}
	}

	refs := make([]string, 0, g.maxRefs)
	for _, link := range links {
		if g.isOrigin(link) {
			continue
		}
		refs = append(refs, link)
		if len(refs) == g.maxRefs {
			break
		}
	}
	g.logger.Debug("references found", "query", query, "count", len(refs))
	return refs
}

func (g *GoogleClient) search(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.engineID)
	params.Set("q", query)
	if g.results > 0 {
		params.Set("num", strconv.Itoa(g.results))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("search error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	links := make([]string, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		if link := strings.TrimSpace(item.Link); link != "" {
			links = append(links, link)
		}
	}
	return links, nil
}

func (g *GoogleClient) isOrigin(link string) bool {
	if g.originHost == "" {
		return false
	}
	host := bareHost(link)
	return host == g.originHost || strings.HasSuffix(host, "."+g.originHost)
}

func bareHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
