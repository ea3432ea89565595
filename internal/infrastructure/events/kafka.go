// Package events publishes enrichment events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"BlogEnricher/internal/config"
	"BlogEnricher/internal/domain"
	"BlogEnricher/internal/ports"
)

// EnrichedEvent is the message value written for each enriched article.
type EnrichedEvent struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Citations  []string  `json:"citations"`
	EnrichedAt time.Time `json:"enrichedAt"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements ports.EventPublisher.
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

var _ ports.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher writes to cfg.Topic on cfg.Brokers.
func NewKafkaPublisher(cfg config.EventsConfig) *KafkaPublisher {
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
	})
}

func newPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: time.Now}
}

// PublishEnriched writes one event keyed by article id.
func (p *KafkaPublisher) PublishEnriched(ctx context.Context, article domain.Article) error {
	value, err := json.Marshal(EnrichedEvent{
		ID:         article.ID,
		Title:      article.Title,
		URL:        article.URL,
		Citations:  article.Citations,
		EnrichedAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(article.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("article.enriched")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event %s: %w", article.ID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
