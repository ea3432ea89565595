package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"BlogEnricher/internal/domain"
)

func TestFileRepositoryCRUD(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "articles.json")
	repo, err := NewFileRepository(path)
	require.NoError(t, err)
	ctx := context.Background()

	empty, err := repo.ListArticles(ctx)
	require.NoError(t, err)
	require.Empty(t, empty)

	first, err := repo.CreateArticle(ctx, domain.Article{Title: "first", URL: "https://site/blogs/first/"})
	require.NoError(t, err)
	second, err := repo.CreateArticle(ctx, domain.Article{Title: "second"})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	title := "renamed"
	updated, err := repo.UpdateArticle(ctx, first.ID, domain.ArticlePatch{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Title)
	require.Equal(t, "https://site/blogs/first/", updated.URL)

	// a second repository on the same file sees the changes
	reopened, err := NewFileRepository(path)
	require.NoError(t, err)
	all, err := reopened.ListArticles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "renamed", all[0].Title)
	require.Equal(t, "second", all[1].Title)

	require.NoError(t, repo.DeleteArticle(ctx, first.ID))
	_, err = repo.GetArticle(ctx, first.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.UpdateArticle(ctx, first.ID, domain.ArticlePatch{Title: &title})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileRepositoryRejectsCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "articles.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	repo, err := NewFileRepository(path)
	require.NoError(t, err)

	_, err = repo.CreateArticle(context.Background(), domain.Article{Title: "x"})
	require.Error(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{broken", string(raw))
}

func TestPostgresListQuery(t *testing.T) {
	t.Parallel()

	query, args, err := listQuery().ToSql()
	require.NoError(t, err)
	require.Empty(t, args)
	require.Equal(t,
		"SELECT id, title, url, original_content, rewritten_content, citations, enriched, created_at FROM articles ORDER BY created_at ASC, id ASC",
		query)
}

func TestPostgresUpdateQuery(t *testing.T) {
	t.Parallel()

	rewritten := "text"
	citations := []string{"https://a"}
	enriched := true

	builder, changed := updateQuery("id-1", domain.ArticlePatch{
		RewrittenContent: &rewritten,
		Citations:        &citations,
		Enriched:         &enriched,
	})
	require.True(t, changed)

	query, args, err := builder.ToSql()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(query,
		"UPDATE articles SET rewritten_content = $1, citations = $2, enriched = $3 WHERE id = $4 RETURNING id,"), query)
	require.Equal(t, []any{"text", pq.StringArray{"https://a"}, true, "id-1"}, args)

	_, changed = updateQuery("id-1", domain.ArticlePatch{})
	require.False(t, changed)
}

func TestPostgresInsertQuery(t *testing.T) {
	t.Parallel()

	article := prepareNew(domain.Article{Title: "t"})
	query, args, err := insertQuery(article).ToSql()
	require.NoError(t, err)
	require.Contains(t, query, "INSERT INTO articles (id,title,url,original_content,rewritten_content,citations,enriched,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)")
	require.Len(t, args, 8)
	require.Equal(t, pq.StringArray{}, args[5])
}

func TestPatchDocument(t *testing.T) {
	t.Parallel()

	enriched := true
	rewritten := "r"
	doc := patchDocument(domain.ArticlePatch{Enriched: &enriched, RewrittenContent: &rewritten})
	require.Len(t, doc, 2)
	require.Equal(t, true, doc["enriched"])
	require.Equal(t, "r", doc["rewrittenContent"])
}
