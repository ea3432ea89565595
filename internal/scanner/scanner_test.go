package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type namedScanner string

func (n namedScanner) Name() string { return string(n) }

func (n namedScanner) Scan(context.Context, Request) ([]string, error) { return nil, nil }

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(namedScanner("paginated-blog"))
	reg.Register(namedScanner("archive"))

	s, err := reg.Resolve("paginated-blog")
	require.NoError(t, err)
	require.Equal(t, "paginated-blog", s.Name())
	require.Equal(t, []string{"archive", "paginated-blog"}, reg.Names())

	_, err = reg.Resolve("rss")
	require.ErrorIs(t, err, ErrUnknownScanner)
}
