package ports

import (
	"context"
	"time"

	"BlogEnricher/internal/domain"
)

// ArticleSource discovers article URLs on the upstream blog index.
type ArticleSource interface {
	DiscoverOldest(ctx context.Context, n int) ([]string, error)
}

// ArticleStore is the record store used by both pipeline runs and the HTTP API.
type ArticleStore interface {
	ListArticles(ctx context.Context) ([]domain.Article, error)
	GetArticle(ctx context.Context, id string) (domain.Article, error)
	CreateArticle(ctx context.Context, article domain.Article) (domain.Article, error)
	UpdateArticle(ctx context.Context, id string, patch domain.ArticlePatch) (domain.Article, error)
	DeleteArticle(ctx context.Context, id string) error
}

// Page is a fetched document body with its HTTP status.
type Page struct {
	URL        string
	StatusCode int
	Body       string
}

// PageFetcher retrieves raw HTML with a per-call timeout.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (Page, error)
}

// ReferenceFinder returns up to two external reference URLs for a query.
// Failures degrade to an empty result.
type ReferenceFinder interface {
	FindReferences(ctx context.Context, query string) []string
}

// TextGenerator is a single LLM provider.
type TextGenerator interface {
	Name() string
	Generate(ctx context.Context, title, original string, refs []domain.Reference) (string, error)
}

// Rewriter produces rewritten content and never fails.
type Rewriter interface {
	Rewrite(ctx context.Context, title, original string, refs []domain.Reference) domain.RewriteResult
}

// Notifier streams enrichment digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// EventPublisher emits an event per enriched article.
type EventPublisher interface {
	PublishEnriched(ctx context.Context, article domain.Article) error
	Close() error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
