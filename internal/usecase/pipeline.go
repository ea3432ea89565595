package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"BlogEnricher/internal/domain"
	"BlogEnricher/internal/extract"
	"BlogEnricher/internal/metrics"
	"BlogEnricher/internal/ports"
)

// PipelineOptions carries the pacing and bounds of both runs.
type PipelineOptions struct {
	OldestCount      int
	ArticleTimeout   time.Duration
	ReferenceTimeout time.Duration
	Pause            time.Duration
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source   ports.ArticleSource
	Store    ports.ArticleStore
	Fetcher  ports.PageFetcher
	Finder   ports.ReferenceFinder
	Rewriter ports.Rewriter
	Notifier ports.Notifier
	Events   ports.EventPublisher
	Logger   *slog.Logger
	Options  PipelineOptions
}

// Pipeline runs ingestion and enrichment. Both runs are strictly sequential.
type Pipeline struct {
	source   ports.ArticleSource
	store    ports.ArticleStore
	fetcher  ports.PageFetcher
	finder   ports.ReferenceFinder
	rewriter ports.Rewriter
	notifier ports.Notifier
	events   ports.EventPublisher
	logger   *slog.Logger
	opts     PipelineOptions
}

// RunReport summarizes one run.
type RunReport struct {
	Run        string
	Discovered int
	Created    int
	Enriched   int
	Backfilled int
	Skipped    int
	Failed     int
	Duration   time.Duration
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts := deps.Options
	if opts.OldestCount <= 0 {
		opts.OldestCount = 5
	}
	if opts.ArticleTimeout <= 0 {
		opts.ArticleTimeout = 15 * time.Second
	}
	if opts.ReferenceTimeout <= 0 {
		opts.ReferenceTimeout = 10 * time.Second
	}
	return &Pipeline{
		source:   deps.Source,
		store:    deps.Store,
		fetcher:  deps.Fetcher,
		finder:   deps.Finder,
		rewriter: deps.Rewriter,
		notifier: deps.Notifier,
		events:   deps.Events,
		logger:   logger,
		opts:     opts,
	}
}

// Ingest discovers the oldest articles and stores each as an unenriched record.
// URLs already in the store are skipped; per-URL failures are logged and skipped.
func (p *Pipeline) Ingest(ctx context.Context) (report RunReport, err error) {
	report.Run = "ingest"
	started := time.Now()
	defer func() { p.finish(&report, started) }()

	if p.source == nil || p.store == nil || p.fetcher == nil {
		return report, fmt.Errorf("ingest: pipeline is not fully wired")
	}

	urls, err := p.source.DiscoverOldest(ctx, p.opts.OldestCount)
	if err != nil {
		return report, fmt.Errorf("discover articles: %w", err)
	}
	report.Discovered = len(urls)

	known := p.knownURLs(ctx)
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if known[url] {
			p.logger.Debug("article already stored", "url", url)
			report.Skipped++
			metrics.ObserveIngested("skipped")
			continue
		}

		article, err := p.ingestOne(ctx, url)
		if err != nil {
			p.logger.Warn("article ingestion failed", "url", url, "error", err)
			report.Failed++
			metrics.ObserveIngested("failed")
			continue
		}

		known[url] = true
		report.Created++
		metrics.ObserveIngested("created")
		p.logger.Info("article stored", "id", article.ID, "title", article.Title, "chars", len([]rune(article.OriginalContent)))
	}

	return report, nil
}

func (p *Pipeline) ingestOne(ctx context.Context, url string) (domain.Article, error) {
	page, err := p.fetcher.Fetch(ctx, url, p.opts.ArticleTimeout)
	metrics.ObservePageFetch("article", err)
	if err != nil {
		return domain.Article{}, fmt.Errorf("fetch article: %w", err)
	}

	article := domain.Article{
		Title:           extract.Title(page.Body, url),
		URL:             url,
		OriginalContent: extract.Extract(page.Body, extract.ArticleProfile),
		Citations:       []string{},
	}

	created, err := p.store.CreateArticle(ctx, article)
	if err != nil {
		return domain.Article{}, fmt.Errorf("store article: %w", err)
	}
	return created, nil
}

// knownURLs lists stored URLs; a failing store only disables deduplication.
func (p *Pipeline) knownURLs(ctx context.Context) map[string]bool {
	known := map[string]bool{}
	existing, err := p.store.ListArticles(ctx)
	if err != nil {
		p.logger.Warn("cannot list stored articles, deduplication disabled", "error", err)
		return known
	}
	for _, a := range existing {
		known[a.URL] = true
	}
	return known
}

// Enrich rewrites every record that is not yet enriched. Listing failure aborts
// the run; per-article failures are logged and skipped.
func (p *Pipeline) Enrich(ctx context.Context) (report RunReport, err error) {
	report.Run = "enrich"
	started := time.Now()
	defer func() { p.finish(&report, started) }()

	if p.store == nil || p.finder == nil || p.rewriter == nil || p.fetcher == nil {
		return report, fmt.Errorf("enrich: pipeline is not fully wired")
	}

	articles, err := p.store.ListArticles(ctx)
	if err != nil {
		return report, fmt.Errorf("list articles: %w", err)
	}
	report.Discovered = len(articles)

	var digest []digestEntry
	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		switch article.Status() {
		case domain.StatusEnriched:
			report.Skipped++
			metrics.ObserveEnriched("skipped")
			continue
		case domain.StatusLegacy:
			if err := p.backfill(ctx, article); err != nil {
				p.logger.Warn("legacy backfill failed", "id", article.ID, "error", err)
				report.Failed++
				metrics.ObserveEnriched("failed")
				continue
			}
			report.Backfilled++
			metrics.ObserveEnriched("backfilled")
			continue
		}

		updated, tier, err := p.enrichOne(ctx, article)
		if err != nil {
			p.logger.Warn("article enrichment failed", "id", article.ID, "title", article.Title, "error", err)
			report.Failed++
			metrics.ObserveEnriched("failed")
			continue
		}

		report.Enriched++
		metrics.ObserveEnriched("enriched")
		digest = append(digest, digestEntry{article: updated, tier: tier})
		p.publish(ctx, updated)

		if err := p.pause(ctx); err != nil {
			return report, err
		}
	}

	p.notify(ctx, digest)
	return report, nil
}

func (p *Pipeline) enrichOne(ctx context.Context, article domain.Article) (domain.Article, domain.RewriteTier, error) {
	snapshot := p.references(ctx, article.Title)

	result := p.rewriter.Rewrite(ctx, article.Title, article.OriginalContent, snapshot.References)
	if result.Tier != domain.TierConfigured {
		p.logger.Info("rewrite synthesized locally", "id", article.ID, "reason", result.Reason)
	}

	content := result.Text + snapshot.Footer()
	citations := snapshot.Citations()
	enriched := true

	updated, err := p.store.UpdateArticle(ctx, article.ID, domain.ArticlePatch{
		RewrittenContent: &content,
		Citations:        &citations,
		Enriched:         &enriched,
	})
	if err != nil {
		return domain.Article{}, "", fmt.Errorf("store enrichment: %w", err)
	}

	p.logger.Info("article enriched", "id", article.ID, "tier", result.Tier, "references", len(snapshot.URLs), "scraped", len(snapshot.References))
	return updated, result.Tier, nil
}

// references finds reference URLs for query and scrapes each; pages that fail
// or yield no text are dropped from the rewrite input but stay cited.
func (p *Pipeline) references(ctx context.Context, query string) domain.ReferenceSnapshot {
	snapshot := domain.ReferenceSnapshot{Query: query, URLs: p.finder.FindReferences(ctx, query)}

	for _, url := range snapshot.URLs {
		page, err := p.fetcher.Fetch(ctx, url, p.opts.ReferenceTimeout)
		metrics.ObservePageFetch("reference", err)
		if err != nil {
			p.logger.Debug("reference scrape failed", "url", url, "error", err)
			continue
		}
		text := extract.Extract(page.Body, extract.ReferenceProfile)
		if strings.TrimSpace(text) == "" {
			continue
		}
		snapshot.References = append(snapshot.References, domain.Reference{URL: url, Text: text})
	}
	return snapshot
}

// backfill marks a record rewritten before the Enriched flag existed.
func (p *Pipeline) backfill(ctx context.Context, article domain.Article) error {
	enriched := true
	if _, err := p.store.UpdateArticle(ctx, article.ID, domain.ArticlePatch{Enriched: &enriched}); err != nil {
		return err
	}
	p.logger.Info("legacy article marked enriched", "id", article.ID)
	return nil
}

func (p *Pipeline) pause(ctx context.Context) error {
	if p.opts.Pause <= 0 {
		return nil
	}
	timer := time.NewTimer(p.opts.Pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pipeline) publish(ctx context.Context, article domain.Article) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishEnriched(ctx, article); err != nil {
		p.logger.Warn("enrichment event not published", "id", article.ID, "error", err)
	}
}

func (p *Pipeline) notify(ctx context.Context, digest []digestEntry) {
	if p.notifier == nil || len(digest) == 0 {
		return
	}
	if err := p.notifier.PublishDigest(ctx, buildDigestMessage(digest)); err != nil {
		p.logger.Warn("digest not delivered", "error", err)
	}
}

func (p *Pipeline) finish(report *RunReport, started time.Time) {
	report.Duration = time.Since(started)
	metrics.ObserveRun(report.Run, report.Duration.Seconds())
	p.logger.Info("run finished",
		"run", report.Run,
		"discovered", report.Discovered,
		"created", report.Created,
		"enriched", report.Enriched,
		"backfilled", report.Backfilled,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", report.Duration.Round(time.Millisecond),
	)
}

type digestEntry struct {
	article domain.Article
	tier    domain.RewriteTier
}

func buildDigestMessage(entries []digestEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Enriched %d article(s)\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s (%s)\n%s\n", e.article.Title, e.tier, e.article.URL)
	}
	return b.String()
}
