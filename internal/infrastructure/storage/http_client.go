package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"BlogEnricher/internal/domain"
	"BlogEnricher/internal/ports"
)

// APIClient is an ArticleStore backed by the record-store HTTP API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ ports.ArticleStore = (*APIClient)(nil)

// NewAPIClient targets baseURL, e.g. http://localhost:4000.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListArticles calls GET /articles.
func (c *APIClient) ListArticles(ctx context.Context) ([]domain.Article, error) {
	var articles []domain.Article
	if err := c.do(ctx, http.MethodGet, "/articles", nil, &articles); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	if articles == nil {
		articles = []domain.Article{}
	}
	return articles, nil
}

// GetArticle calls GET /articles/{id}.
func (c *APIClient) GetArticle(ctx context.Context, id string) (domain.Article, error) {
	var article domain.Article
	if err := c.do(ctx, http.MethodGet, articlePath(id), nil, &article); err != nil {
		return domain.Article{}, fmt.Errorf("get article %s: %w", id, err)
	}
	return article, nil
}

// CreateArticle calls POST /articles.
func (c *APIClient) CreateArticle(ctx context.Context, article domain.Article) (domain.Article, error) {
	payload := domain.ArticlePatch{
		Title:            &article.Title,
		URL:              &article.URL,
		OriginalContent:  &article.OriginalContent,
		RewrittenContent: &article.RewrittenContent,
	}
	if article.Citations != nil {
		payload.Citations = &article.Citations
	}

	var created domain.Article
	if err := c.do(ctx, http.MethodPost, "/articles", payload, &created); err != nil {
		return domain.Article{}, fmt.Errorf("create article: %w", err)
	}
	return created, nil
}

// UpdateArticle calls PUT /articles/{id} with only the patched fields.
func (c *APIClient) UpdateArticle(ctx context.Context, id string, patch domain.ArticlePatch) (domain.Article, error) {
	var updated domain.Article
	if err := c.do(ctx, http.MethodPut, articlePath(id), patch, &updated); err != nil {
		return domain.Article{}, fmt.Errorf("update article %s: %w", id, err)
	}
	return updated, nil
}

// DeleteArticle calls DELETE /articles/{id}.
func (c *APIClient) DeleteArticle(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, articlePath(id), nil, nil); err != nil {
		return fmt.Errorf("delete article %s: %w", id, err)
	}
	return nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("store api error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func articlePath(id string) string {
	return "/articles/" + url.PathEscape(id)
}
