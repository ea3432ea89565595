package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownScanner is returned by Resolve for unregistered names.
var ErrUnknownScanner = errors.New("scanner is not registered")

// Request carries all parameters required to walk a blog index.
type Request struct {
	SiteName string
	// BaseURL is the index root; page k > 1 lives at BaseURL + "page/k/".
	BaseURL      string
	MaxPagesBack int
	CandidateCap int
}

// Scanner captures a single index-walking strategy.
// Scan returns candidate article URLs in walk order, deduplicated.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]string, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownScanner, name, r.Names())
}

// Names lists registered scanners in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
