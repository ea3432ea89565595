package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"BlogEnricher/internal/domain"
	"BlogEnricher/internal/infrastructure/llm"
	"BlogEnricher/internal/ports"
	"BlogEnricher/internal/rewrite"
)

type memoryStore struct {
	mu       sync.Mutex
	seq      int
	articles []domain.Article
	listErr  error
}

func (s *memoryStore) ListArticles(context.Context) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]domain.Article(nil), s.articles...), nil
}

func (s *memoryStore) GetArticle(_ context.Context, id string) (domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.articles {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.Article{}, domain.ErrNotFound
}

func (s *memoryStore) CreateArticle(_ context.Context, a domain.Article) (domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	a.ID = fmt.Sprintf("id-%d", s.seq)
	s.articles = append(s.articles, a)
	return a, nil
}

func (s *memoryStore) UpdateArticle(_ context.Context, id string, p domain.ArticlePatch) (domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.articles {
		if a.ID == id {
			s.articles[i] = p.Apply(a)
			return s.articles[i], nil
		}
	}
	return domain.Article{}, domain.ErrNotFound
}

func (s *memoryStore) DeleteArticle(context.Context, string) error { return nil }

func (s *memoryStore) byURL(url string) domain.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.articles {
		if a.URL == url {
			return a
		}
	}
	return domain.Article{}
}

type staticSource struct {
	urls []string
	err  error
}

func (s staticSource) DiscoverOldest(context.Context, int) ([]string, error) {
	return s.urls, s.err
}

type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, url string, _ time.Duration) (ports.Page, error) {
	body, ok := m[url]
	if !ok {
		return ports.Page{URL: url, StatusCode: 404}, errors.New("not found")
	}
	return ports.Page{URL: url, StatusCode: 200, Body: body}, nil
}

type staticFinder []string

func (f staticFinder) FindReferences(context.Context, string) []string {
	return append([]string{}, f...)
}

type stubGenerator struct {
	text  string
	err   error
	calls int
	refs  []domain.Reference
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) Generate(_ context.Context, _, _ string, refs []domain.Reference) (string, error) {
	g.calls++
	g.refs = refs
	return g.text, g.err
}

type recordingNotifier struct{ digests []string }

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.digests = append(n.digests, digest)
	return nil
}

type recordingEvents struct{ ids []string }

func (e *recordingEvents) PublishEnriched(_ context.Context, a domain.Article) error {
	e.ids = append(e.ids, a.ID)
	return nil
}

func (e *recordingEvents) Close() error { return nil }

const articleHTML = `<html><body><h1>Why Chatbots Matter</h1><article>` +
	`Chatbots answer customer questions around the clock and never get tired of repeating themselves. ` +
	`Businesses that adopt them report faster response times and happier support teams overall. ` +
	`The best deployments hand complex conversations over to humans without losing any context at all.` +
	`</article></body></html>`

const referenceHTML = `<html><body><main>` +
	`A reference page with a long enough body to be useful when the rewrite prompt gets assembled for the provider. ` +
	`It keeps going for a while so that the extractor picks it up as the main content block of the page.` +
	`</main></body></html>`

func newTestPipeline(store ports.ArticleStore, fetcher ports.PageFetcher, finder ports.ReferenceFinder, gen ports.TextGenerator) *Pipeline {
	return NewPipeline(PipelineDeps{
		Source:   staticSource{},
		Store:    store,
		Fetcher:  fetcher,
		Finder:   finder,
		Rewriter: rewrite.New(gen, nil),
	})
}

func TestIngestStoresNewArticlesAndSkipsKnown(t *testing.T) {
	t.Parallel()

	store := &memoryStore{articles: []domain.Article{{ID: "old", URL: "https://site/blogs/known/"}}}
	fetcher := mapFetcher{"https://site/blogs/why-chatbots-matter/": articleHTML}

	p := NewPipeline(PipelineDeps{
		Source: staticSource{urls: []string{
			"https://site/blogs/known/",
			"https://site/blogs/why-chatbots-matter/",
			"https://site/blogs/broken/",
		}},
		Store:   store,
		Fetcher: fetcher,
	})

	report, err := p.Ingest(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, report.Discovered)
	require.Equal(t, 1, report.Created)
	require.Equal(t, 1, report.Skipped)
	require.Equal(t, 1, report.Failed)

	stored := store.byURL("https://site/blogs/why-chatbots-matter/")
	require.Equal(t, "Why Chatbots Matter", stored.Title)
	require.Contains(t, stored.OriginalContent, "Chatbots answer customer questions")
	require.Empty(t, stored.RewrittenContent)
	require.False(t, stored.Enriched)
	require.Equal(t, []string{}, stored.Citations)

	report, err = p.Ingest(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Created)
	require.Equal(t, 2, report.Skipped)
}

func TestIngestDiscoveryFailureFailsRun(t *testing.T) {
	t.Parallel()

	boom := errors.New("index unreachable")
	p := NewPipeline(PipelineDeps{Source: staticSource{err: boom}, Store: &memoryStore{}, Fetcher: mapFetcher{}})

	_, err := p.Ingest(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestEnrichUsesProviderAndCitesReferences(t *testing.T) {
	t.Parallel()

	store := &memoryStore{articles: []domain.Article{{ID: "a1", Title: "Chatbots", URL: "https://site/blogs/chatbots/", OriginalContent: "original"}}}
	fetcher := mapFetcher{"https://ref.one/page": referenceHTML}
	finder := staticFinder{"https://ref.one/page", "https://ref.two/unreachable"}
	gen := &stubGenerator{text: "A brand new rewrite."}
	events := &recordingEvents{}
	notifier := &recordingNotifier{}

	p := NewPipeline(PipelineDeps{
		Store:    store,
		Fetcher:  fetcher,
		Finder:   finder,
		Rewriter: rewrite.New(gen, nil),
		Events:   events,
		Notifier: notifier,
	})

	report, err := p.Enrich(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Enriched)

	got := store.articles[0]
	require.True(t, got.Enriched)
	require.Equal(t, []string{"https://ref.one/page", "https://ref.two/unreachable"}, got.Citations)
	require.Equal(t, "A brand new rewrite.\n\n---\n\n**References:**\n1. https://ref.one/page\n2. https://ref.two/unreachable", got.RewrittenContent)

	require.Len(t, gen.refs, 1)
	require.Equal(t, "https://ref.one/page", gen.refs[0].URL)

	require.Equal(t, []string{"a1"}, events.ids)
	require.Len(t, notifier.digests, 1)
	require.Contains(t, notifier.digests[0], "Chatbots (configured)")
}

func TestEnrichWithoutReferencesUsesSentinelCitation(t *testing.T) {
	t.Parallel()

	store := &memoryStore{articles: []domain.Article{{ID: "a1", Title: "T", OriginalContent: "original"}}}
	p := newTestPipeline(store, mapFetcher{}, staticFinder{}, &stubGenerator{text: "rewrite"})

	_, err := p.Enrich(context.Background())
	require.NoError(t, err)

	got := store.articles[0]
	require.Equal(t, []string{domain.NoReferencesCitation}, got.Citations)
	require.True(t, strings.HasSuffix(got.RewrittenContent, "**References:**\n"+domain.NoReferencesCitation))
}

func TestEnrichIsIdempotent(t *testing.T) {
	t.Parallel()

	store := &memoryStore{articles: []domain.Article{{ID: "a1", Title: "T", OriginalContent: "original"}}}
	gen := &stubGenerator{text: "rewrite"}
	p := newTestPipeline(store, mapFetcher{}, staticFinder{}, gen)

	_, err := p.Enrich(context.Background())
	require.NoError(t, err)
	first := store.articles[0]

	report, err := p.Enrich(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Skipped)
	require.Zero(t, report.Enriched)
	require.Equal(t, 1, gen.calls)
	require.Equal(t, first, store.articles[0])
}

func TestEnrichBackfillsLegacyAndRedoesPlaceholders(t *testing.T) {
	t.Parallel()

	store := &memoryStore{articles: []domain.Article{
		{ID: "legacy", Title: "L", OriginalContent: "o", RewrittenContent: "an earlier rewrite", Citations: []string{"https://x"}},
		{ID: "placeholder", Title: "P", OriginalContent: "o", RewrittenContent: domain.PlaceholderMarker + " pending"},
	}}
	gen := &stubGenerator{text: "fresh rewrite"}
	p := newTestPipeline(store, mapFetcher{}, staticFinder{}, gen)

	report, err := p.Enrich(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Backfilled)
	require.Equal(t, 1, report.Enriched)
	require.Equal(t, 1, gen.calls)

	legacy := store.articles[0]
	require.True(t, legacy.Enriched)
	require.Equal(t, "an earlier rewrite", legacy.RewrittenContent)
	require.Equal(t, []string{"https://x"}, legacy.Citations)

	redone := store.articles[1]
	require.True(t, redone.Enriched)
	require.True(t, strings.HasPrefix(redone.RewrittenContent, "fresh rewrite"))
	require.NotContains(t, redone.RewrittenContent, domain.PlaceholderMarker)
}

func TestEnrichQuotaFallsBackToSynthesis(t *testing.T) {
	t.Parallel()

	original := "Customer service teams are adopting automation at a remarkable pace. " +
		"Chatbots resolve simple questions before an agent ever sees the ticket."
	store := &memoryStore{articles: []domain.Article{{ID: "a1", Title: "T", OriginalContent: original}}}
	gen := &stubGenerator{err: &llm.APIError{Provider: "stub", StatusCode: 429, Quota: true}}
	notifier := &recordingNotifier{}

	p := NewPipeline(PipelineDeps{
		Store:    store,
		Fetcher:  mapFetcher{},
		Finder:   staticFinder{},
		Rewriter: rewrite.New(gen, nil),
		Notifier: notifier,
	})

	_, err := p.Enrich(context.Background())
	require.NoError(t, err)

	got := store.articles[0]
	require.True(t, got.Enriched)
	require.True(t, strings.HasPrefix(got.RewrittenContent, rewrite.Synthesize(original)))
	require.Contains(t, notifier.digests[0], "(synthesized)")
}

func TestEnrichListFailureFailsRun(t *testing.T) {
	t.Parallel()

	boom := errors.New("store down")
	p := newTestPipeline(&memoryStore{listErr: boom}, mapFetcher{}, staticFinder{}, nil)

	_, err := p.Enrich(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestEnrichPauseHonoursCancellation(t *testing.T) {
	t.Parallel()

	store := &memoryStore{articles: []domain.Article{
		{ID: "a1", Title: "A", OriginalContent: "o"},
		{ID: "a2", Title: "B", OriginalContent: "o"},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	gen := &stubGenerator{text: "rewrite"}

	p := NewPipeline(PipelineDeps{
		Store:    store,
		Fetcher:  mapFetcher{},
		Finder:   staticFinder{},
		Rewriter: rewrite.New(gen, nil),
		Options:  PipelineOptions{Pause: time.Hour},
	})

	time.AfterFunc(50*time.Millisecond, cancel)
	report, err := p.Enrich(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, report.Enriched)
	require.False(t, store.articles[1].Enriched)
}

// flakyStore fails writes for selected records and delegates everything else.
type flakyStore struct {
	*memoryStore
	failCreateURL string
	failUpdateID  string
}

func (s *flakyStore) CreateArticle(ctx context.Context, a domain.Article) (domain.Article, error) {
	if a.URL == s.failCreateURL {
		return domain.Article{}, errors.New("insert rejected")
	}
	return s.memoryStore.CreateArticle(ctx, a)
}

func (s *flakyStore) UpdateArticle(ctx context.Context, id string, p domain.ArticlePatch) (domain.Article, error) {
	if id == s.failUpdateID {
		return domain.Article{}, errors.New("update rejected")
	}
	return s.memoryStore.UpdateArticle(ctx, id, p)
}

func TestIngestContinuesAfterStoreFailure(t *testing.T) {
	t.Parallel()

	store := &flakyStore{memoryStore: &memoryStore{}, failCreateURL: "https://site/blogs/first/"}
	p := NewPipeline(PipelineDeps{
		Source: staticSource{urls: []string{"https://site/blogs/first/", "https://site/blogs/second/"}},
		Store:  store,
		Fetcher: mapFetcher{
			"https://site/blogs/first/":  articleHTML,
			"https://site/blogs/second/": articleHTML,
		},
	})

	report, err := p.Ingest(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Created)
	require.Len(t, store.articles, 1)
	require.Equal(t, "https://site/blogs/second/", store.articles[0].URL)
}

func TestEnrichContinuesAfterStoreFailure(t *testing.T) {
	t.Parallel()

	store := &flakyStore{
		memoryStore: &memoryStore{articles: []domain.Article{
			{ID: "a1", Title: "first_post", URL: "https://site/blogs/first_post/", OriginalContent: "o"},
			{ID: "a2", Title: "second_post", URL: "https://site/blogs/second_post/", OriginalContent: "o"},
		}},
		failUpdateID: "a1",
	}
	notifier := &recordingNotifier{}
	events := &recordingEvents{}
	p := NewPipeline(PipelineDeps{
		Store:    store,
		Fetcher:  mapFetcher{},
		Finder:   staticFinder{},
		Rewriter: rewrite.New(&stubGenerator{text: "rewrite"}, nil),
		Notifier: notifier,
		Events:   events,
	})

	report, err := p.Enrich(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Enriched)
	require.False(t, store.articles[0].Enriched)
	require.True(t, store.articles[1].Enriched)
	require.Equal(t, []string{"a2"}, events.ids)

	require.Len(t, notifier.digests, 1)
	require.Equal(t, "Enriched 1 article(s)\n\n- second_post (configured)\nhttps://site/blogs/second_post/\n", notifier.digests[0])
}
