package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"BlogEnricher/internal/domain"
	"BlogEnricher/internal/ports"
)

const articlesTable = "articles"

const schema = `CREATE TABLE IF NOT EXISTS articles (
    id                TEXT PRIMARY KEY,
    title             TEXT NOT NULL DEFAULT '',
    url               TEXT NOT NULL DEFAULT '',
    original_content  TEXT NOT NULL DEFAULT '',
    rewritten_content TEXT NOT NULL DEFAULT '',
    citations         TEXT[] NOT NULL DEFAULT '{}',
    enriched          BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

var articleColumns = []string{
	"id", "title", "url", "original_content", "rewritten_content", "citations", "enriched", "created_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists article records into Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.ArticleStore = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres connects with lib/pq and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the articles table when missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate articles: %w", err)
	}
	return nil
}

// ListArticles returns every record, oldest first.
func (r *PostgresRepository) ListArticles(ctx context.Context) ([]domain.Article, error) {
	query, args, err := listQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}

	articles := make([]domain.Article, 0)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, article)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return articles, nil
}

// GetArticle loads one record by id.
func (r *PostgresRepository) GetArticle(ctx context.Context, id string) (domain.Article, error) {
	query, args, err := listQuery().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build get: %w", err)
	}
	return r.queryOne(ctx, query, args...)
}

// CreateArticle inserts a record with a fresh id and creation time.
func (r *PostgresRepository) CreateArticle(ctx context.Context, article domain.Article) (domain.Article, error) {
	article = prepareNew(article)

	query, args, err := insertQuery(article).ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build insert: %w", err)
	}
	return r.queryOne(ctx, query, args...)
}

// UpdateArticle merges patch into the stored record.
func (r *PostgresRepository) UpdateArticle(ctx context.Context, id string, patch domain.ArticlePatch) (domain.Article, error) {
	builder, changed := updateQuery(id, patch)
	if !changed {
		return r.GetArticle(ctx, id)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build update: %w", err)
	}
	return r.queryOne(ctx, query, args...)
}

// DeleteArticle removes a record.
func (r *PostgresRepository) DeleteArticle(ctx context.Context, id string) error {
	query, args, err := psql.Delete(articlesTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete article %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (domain.Article, error) {
	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("query article: %w", err)
	}
	return article, nil
}

func listQuery() sq.SelectBuilder {
	return psql.Select(articleColumns...).From(articlesTable).OrderBy("created_at ASC", "id ASC")
}

func insertQuery(a domain.Article) sq.InsertBuilder {
	return psql.Insert(articlesTable).
		Columns(articleColumns...).
		Values(a.ID, a.Title, a.URL, a.OriginalContent, a.RewrittenContent, pq.StringArray(a.Citations), a.Enriched, a.CreatedAt).
		Suffix(returningClause())
}

func updateQuery(id string, p domain.ArticlePatch) (sq.UpdateBuilder, bool) {
	b := psql.Update(articlesTable).Where(sq.Eq{"id": id})
	changed := false
	set := func(column string, value any) {
		b = b.Set(column, value)
		changed = true
	}

	if p.Title != nil {
		set("title", *p.Title)
	}
	if p.URL != nil {
		set("url", *p.URL)
	}
	if p.OriginalContent != nil {
		set("original_content", *p.OriginalContent)
	}
	if p.RewrittenContent != nil {
		set("rewritten_content", *p.RewrittenContent)
	}
	if p.Citations != nil {
		set("citations", pq.StringArray(*p.Citations))
	}
	if p.Enriched != nil {
		set("enriched", *p.Enriched)
	}

	return b.Suffix(returningClause()), changed
}

func returningClause() string {
	clause := "RETURNING "
	for i, col := range articleColumns {
		if i > 0 {
			clause += ", "
		}
		clause += col
	}
	return clause
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var (
		a         domain.Article
		citations pq.StringArray
	)
	if err := row.Scan(&a.ID, &a.Title, &a.URL, &a.OriginalContent, &a.RewrittenContent, &citations, &a.Enriched, &a.CreatedAt); err != nil {
		return domain.Article{}, err
	}
	a.Citations = []string(citations)
	if a.Citations == nil {
		a.Citations = []string{}
	}
	return a, nil
}

// prepareNew assigns id and creation time and normalizes empty fields.
func prepareNew(a domain.Article) domain.Article {
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()
	if a.Citations == nil {
		a.Citations = []string{}
	}
	return a
}
