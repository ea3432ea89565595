package parser

import (
	"context"
	"fmt"
	"log/slog"

	"BlogEnricher/internal/config"
	"BlogEnricher/internal/ports"
	"BlogEnricher/internal/scanner"
)

// StrategySource implements ArticleSource via a registered scanner strategy.
type StrategySource struct {
	registry *scanner.Registry
	blog     config.BlogConfig
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with the configured blog.
func NewStrategySource(reg *scanner.Registry, blog config.BlogConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		blog:     blog,
		logger:   log,
	}
}

// DiscoverOldest returns the last n URLs of the deduplicated backward walk,
// i.e. the oldest articles reachable within the crawl bounds.
func (s *StrategySource) DiscoverOldest(ctx context.Context, n int) ([]string, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(s.blog.Scanner)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", s.blog.Name, err)
	}

	s.debug("discover oldest", "site", s.blog.Name, "scanner", s.blog.Scanner, "n", n)

	candidates, err := strategy.Scan(ctx, scanner.Request{
		SiteName:     s.blog.Name,
		BaseURL:      s.blog.BaseURL,
		MaxPagesBack: s.blog.MaxPagesBack,
		CandidateCap: s.blog.CandidateCap,
	})
	if err != nil {
		return nil, fmt.Errorf("scan site %s: %w", s.blog.Name, err)
	}

	oldest := lastN(candidates, n)
	s.debug("strategy source done", "candidates", len(candidates), "selected", len(oldest))
	return oldest, nil
}

func lastN(items []string, n int) []string {
	if n <= 0 {
		return []string{}
	}
	if len(items) <= n {
		return append([]string{}, items...)
	}
	return append([]string{}, items[len(items)-n:]...)
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
