package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// NoReferencesCitation is stored as the only citation when enrichment found no references.
const NoReferencesCitation = "No external references used"

// PlaceholderMarker tags rewritten content left behind by early runs that never
// produced a real rewrite. Records carrying it are enriched again.
const PlaceholderMarker = "[REWRITTEN VERSION]"

var (
	// ErrNotFound is returned by stores when a record id is unknown.
	ErrNotFound = errors.New("article not found")
	// ErrQuotaExceeded marks provider errors caused by exhausted quota or rate limits.
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// Article is the persisted record flowing through ingestion and enrichment.
type Article struct {
	ID               string    `json:"_id"`
	Title            string    `json:"title"`
	URL              string    `json:"url"`
	OriginalContent  string    `json:"originalContent"`
	RewrittenContent string    `json:"rewrittenContent"`
	Citations        []string  `json:"citations"`
	Enriched         bool      `json:"enriched"`
	CreatedAt        time.Time `json:"createdAt"`
}

// ArticlePatch carries a partial update; nil fields are left untouched.
type ArticlePatch struct {
	Title            *string   `json:"title,omitempty"`
	URL              *string   `json:"url,omitempty"`
	OriginalContent  *string   `json:"originalContent,omitempty"`
	RewrittenContent *string   `json:"rewrittenContent,omitempty"`
	Citations        *[]string `json:"citations,omitempty"`
	Enriched         *bool     `json:"enriched,omitempty"`
}

// Apply merges the patch into a copy of the article.
func (p ArticlePatch) Apply(a Article) Article {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.URL != nil {
		a.URL = *p.URL
	}
	if p.OriginalContent != nil {
		a.OriginalContent = *p.OriginalContent
	}
	if p.RewrittenContent != nil {
		a.RewrittenContent = *p.RewrittenContent
	}
	if p.Citations != nil {
		a.Citations = append([]string(nil), (*p.Citations)...)
	}
	if p.Enriched != nil {
		a.Enriched = *p.Enriched
	}
	return a
}

// EnrichmentStatus classifies a record for the enrichment run.
type EnrichmentStatus string

const (
	StatusPending     EnrichmentStatus = "pending"
	StatusEnriched    EnrichmentStatus = "enriched"
	StatusLegacy      EnrichmentStatus = "legacy"
	StatusPlaceholder EnrichmentStatus = "placeholder"
)

// Status reports where the record sits in the enrichment lifecycle.
// Legacy records have rewritten content but predate the Enriched flag.
func (a Article) Status() EnrichmentStatus {
	switch {
	case a.Enriched:
		return StatusEnriched
	case strings.TrimSpace(a.RewrittenContent) == "":
		return StatusPending
	case strings.Contains(a.RewrittenContent, PlaceholderMarker):
		return StatusPlaceholder
	default:
		return StatusLegacy
	}
}

// Reference is a scraped external page backing a rewrite.
type Reference struct {
	URL  string
	Text string
}

// ReferenceSnapshot groups what was found for one query: the ranked URLs from
// search and the references whose content could be scraped.
type ReferenceSnapshot struct {
	Query      string
	URLs       []string
	References []Reference
}

// Citations returns the list persisted with an enriched article.
func (s ReferenceSnapshot) Citations() []string {
	if len(s.URLs) == 0 {
		return []string{NoReferencesCitation}
	}
	return append([]string(nil), s.URLs...)
}

// Footer renders the reference list appended to rewritten content.
func (s ReferenceSnapshot) Footer() string {
	var b strings.Builder
	b.WriteString("\n\n---\n\n**References:**\n")
	if len(s.URLs) == 0 {
		b.WriteString(NoReferencesCitation)
		return b.String()
	}
	for i, u := range s.URLs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strconv.Itoa(i+1) + ". " + u)
	}
	return b.String()
}

// RewriteTier names the rewriter state that produced the final text.
type RewriteTier string

const (
	TierConfigured  RewriteTier = "configured"
	TierFallback    RewriteTier = "fallback"
	TierSynthesized RewriteTier = "synthesized"
)

// RewriteResult is the outcome of a rewrite; Text is never empty.
type RewriteResult struct {
	Text   string
	Tier   RewriteTier
	Reason string
}
