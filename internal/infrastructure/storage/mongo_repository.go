package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"BlogEnricher/internal/config"
	"BlogEnricher/internal/domain"
	"BlogEnricher/internal/ports"
)

// MongoRepository stores articles as documents keyed by _id.
type MongoRepository struct {
	client   *mongo.Client
	articles *mongo.Collection
}

var _ ports.ArticleStore = (*MongoRepository)(nil)

type mongoArticle struct {
	ID               string    `bson:"_id"`
	Title            string    `bson:"title"`
	URL              string    `bson:"url"`
	OriginalContent  string    `bson:"originalContent"`
	RewrittenContent string    `bson:"rewrittenContent"`
	Citations        []string  `bson:"citations"`
	Enriched         bool      `bson:"enriched"`
	CreatedAt        time.Time `bson:"createdAt"`
}

// NewMongoRepository connects, pings and ensures indexes.
func NewMongoRepository(ctx context.Context, cfg config.MongoConfig) (*MongoRepository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	r := &MongoRepository{
		client:   client,
		articles: client.Database(cfg.Database).Collection(cfg.Collection),
	}
	if err := r.createIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return r, nil
}

func (r *MongoRepository) createIndexes(ctx context.Context) error {
	_, err := r.articles.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (r *MongoRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// ListArticles returns every record, oldest first.
func (r *MongoRepository) ListArticles(ctx context.Context) ([]domain.Article, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.articles.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}
	defer cursor.Close(ctx)

	articles := make([]domain.Article, 0)
	for cursor.Next(ctx) {
		var doc mongoArticle
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode article: %w", err)
		}
		articles = append(articles, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}
	return articles, nil
}

// GetArticle loads one record by id.
func (r *MongoRepository) GetArticle(ctx context.Context, id string) (domain.Article, error) {
	var doc mongoArticle
	err := r.articles.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Article{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("find article %s: %w", id, err)
	}
	return doc.toDomain(), nil
}

// CreateArticle inserts a record with a fresh id and creation time.
func (r *MongoRepository) CreateArticle(ctx context.Context, article domain.Article) (domain.Article, error) {
	article = prepareNew(article)
	// Mongo keeps millisecond precision only.
	article.CreatedAt = article.CreatedAt.Truncate(time.Millisecond)

	if _, err := r.articles.InsertOne(ctx, fromDomain(article)); err != nil {
		return domain.Article{}, fmt.Errorf("insert article: %w", err)
	}
	return article, nil
}

// UpdateArticle merges patch into the stored record.
func (r *MongoRepository) UpdateArticle(ctx context.Context, id string, patch domain.ArticlePatch) (domain.Article, error) {
	set := patchDocument(patch)
	if len(set) == 0 {
		return r.GetArticle(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc mongoArticle
	err := r.articles.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Article{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("update article %s: %w", id, err)
	}
	return doc.toDomain(), nil
}

// DeleteArticle removes a record.
func (r *MongoRepository) DeleteArticle(ctx context.Context, id string) error {
	res, err := r.articles.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete article %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func patchDocument(p domain.ArticlePatch) bson.M {
	set := bson.M{}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.URL != nil {
		set["url"] = *p.URL
	}
	if p.OriginalContent != nil {
		set["originalContent"] = *p.OriginalContent
	}
	if p.RewrittenContent != nil {
		set["rewrittenContent"] = *p.RewrittenContent
	}
	if p.Citations != nil {
		set["citations"] = *p.Citations
	}
	if p.Enriched != nil {
		set["enriched"] = *p.Enriched
	}
	return set
}

func fromDomain(a domain.Article) mongoArticle {
	return mongoArticle{
		ID:               a.ID,
		Title:            a.Title,
		URL:              a.URL,
		OriginalContent:  a.OriginalContent,
		RewrittenContent: a.RewrittenContent,
		Citations:        a.Citations,
		Enriched:         a.Enriched,
		CreatedAt:        a.CreatedAt,
	}
}

func (m mongoArticle) toDomain() domain.Article {
	citations := m.Citations
	if citations == nil {
		citations = []string{}
	}
	return domain.Article{
		ID:               m.ID,
		Title:            m.Title,
		URL:              m.URL,
		OriginalContent:  m.OriginalContent,
		RewrittenContent: m.RewrittenContent,
		Citations:        citations,
		Enriched:         m.Enriched,
		CreatedAt:        m.CreatedAt.UTC(),
	}
}
