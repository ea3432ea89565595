package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"BlogEnricher/internal/domain"
	"BlogEnricher/internal/ports"
)

// FileRepository keeps all records in a single JSON array on disk.
// Every operation reads the file, so external edits are picked up.
type FileRepository struct {
	mu   sync.Mutex
	path string
}

var _ ports.ArticleStore = (*FileRepository)(nil)

// NewFileRepository creates the data file (and its directory) when missing.
func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, []byte("[]\n"), 0o644); err != nil {
			return nil, fmt.Errorf("init data file: %w", err)
		}
	}
	return &FileRepository{path: path}, nil
}

// ListArticles returns records in insertion order.
func (r *FileRepository) ListArticles(_ context.Context) ([]domain.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

// GetArticle loads one record by id.
func (r *FileRepository) GetArticle(_ context.Context, id string) (domain.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	articles, err := r.read()
	if err != nil {
		return domain.Article{}, err
	}
	for _, a := range articles {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.Article{}, domain.ErrNotFound
}

// CreateArticle appends a record with a fresh id and creation time.
func (r *FileRepository) CreateArticle(_ context.Context, article domain.Article) (domain.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	articles, err := r.read()
	if err != nil {
		return domain.Article{}, err
	}
	article = prepareNew(article)
	articles = append(articles, article)
	if err := r.write(articles); err != nil {
		return domain.Article{}, err
	}
	return article, nil
}

// UpdateArticle merges patch into the stored record.
func (r *FileRepository) UpdateArticle(_ context.Context, id string, patch domain.ArticlePatch) (domain.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	articles, err := r.read()
	if err != nil {
		return domain.Article{}, err
	}
	for i := range articles {
		if articles[i].ID != id {
			continue
		}
		articles[i] = patch.Apply(articles[i])
		if err := r.write(articles); err != nil {
			return domain.Article{}, err
		}
		return articles[i], nil
	}
	return domain.Article{}, domain.ErrNotFound
}

// DeleteArticle removes a record.
func (r *FileRepository) DeleteArticle(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	articles, err := r.read()
	if err != nil {
		return err
	}
	kept := articles[:0]
	for _, a := range articles {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(articles) {
		return domain.ErrNotFound
	}
	return r.write(kept)
}

// read treats a missing file as an empty store. A corrupt file is an error so
// that a later write cannot silently drop its records.
func (r *FileRepository) read() ([]domain.Article, error) {
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Article{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}

	var articles []domain.Article
	if err := json.Unmarshal(raw, &articles); err != nil {
		return nil, fmt.Errorf("decode data file: %w", err)
	}
	if articles == nil {
		articles = []domain.Article{}
	}
	for i := range articles {
		if articles[i].Citations == nil {
			articles[i].Citations = []string{}
		}
	}
	return articles, nil
}

// write replaces the file atomically via rename.
func (r *FileRepository) write(articles []domain.Article) error {
	raw, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return fmt.Errorf("encode articles: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write data file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}
