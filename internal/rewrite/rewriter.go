// Package rewrite produces the enriched version of an article. It tries the
// configured LLM provider first and degrades to a local synthesis, so a rewrite
// always yields text.
package rewrite

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"BlogEnricher/internal/domain"
	"BlogEnricher/internal/metrics"
	"BlogEnricher/internal/ports"
)

// State is a step of the rewrite state machine.
type State = domain.RewriteTier

const (
	StateConfigured  = domain.TierConfigured
	StateFallback    = domain.TierFallback
	StateSynthesized = domain.TierSynthesized
)

const (
	reasonNoProvider = "no llm provider configured"
	reasonQuota      = "quota exceeded"
	reasonEmpty      = "empty provider response"
	reasonCancelled  = "context cancelled"
)

// Rewriter implements ports.Rewriter.
type Rewriter struct {
	generator ports.TextGenerator
	logger    *slog.Logger
}

var _ ports.Rewriter = (*Rewriter)(nil)

// New builds a rewriter; a nil generator always synthesizes.
func New(generator ports.TextGenerator, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Rewriter{generator: generator, logger: logger}
}

// Rewrite walks Configured -> Fallback -> Synthesized until a state yields text.
func (r *Rewriter) Rewrite(ctx context.Context, title, original string, refs []domain.Reference) domain.RewriteResult {
	state := StateConfigured
	reason := ""
	if r.generator == nil {
		reason = reasonNoProvider
		r.transition(StateConfigured, StateSynthesized, reason)
		state = StateSynthesized
	}

	for {
		switch state {
		case StateConfigured:
			text, err := r.generator.Generate(ctx, title, original, refs)
			if err == nil && strings.TrimSpace(text) != "" {
				metrics.ObserveRewrite(string(StateConfigured))
				return domain.RewriteResult{Text: text, Tier: StateConfigured}
			}
			reason = failureReason(err)
			r.transition(StateConfigured, StateFallback, reason, "provider", r.generator.Name(), "error", err)
			state = StateFallback

		case StateFallback:
			r.transition(StateFallback, StateSynthesized, reason)
			state = StateSynthesized

		default:
			metrics.ObserveRewrite(string(StateSynthesized))
			return domain.RewriteResult{Text: Synthesize(original), Tier: StateSynthesized, Reason: reason}
		}
	}
}

func (r *Rewriter) transition(from, to State, reason string, args ...any) {
	attrs := append([]any{"from", from, "to", to, "reason", reason}, args...)
	if from == StateConfigured && to == StateFallback {
		r.logger.Warn("rewrite provider failed", attrs...)
		return
	}
	r.logger.Info("rewrite state change", attrs...)
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return reasonEmpty
	case errors.Is(err, domain.ErrQuotaExceeded):
		return reasonQuota
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return reasonCancelled
	default:
		return err.Error()
	}
}
