package rewrite

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"BlogEnricher/internal/config"
	"BlogEnricher/internal/domain"
	"BlogEnricher/internal/infrastructure/llm"
)

type stubGenerator struct {
	text  string
	err   error
	calls int
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(context.Context, string, string, []domain.Reference) (string, error) {
	s.calls++
	return s.text, s.err
}

const sample = `Chatbots are software programs that simulate human conversation [1]. They help businesses
answer customer questions around the clock! Modern chatbots rely on large language models?
Short one. Companies deploy them on websites and messaging apps. Careful design keeps answers accurate and on brand.
A sixth sentence that should never appear in the synthesis output.`

func TestRewriteUsesConfiguredProvider(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{text: "Provider text"}
	res := New(gen, nil).Rewrite(context.Background(), "t", sample, nil)

	require.Equal(t, domain.RewriteResult{Text: "Provider text", Tier: StateConfigured}, res)
	require.Equal(t, 1, gen.calls)
}

func TestRewriteQuotaFallsBackToSynthesis(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{err: &llm.APIError{Provider: "openai", StatusCode: 429, Code: "insufficient_quota", Quota: true}}
	res := New(gen, nil).Rewrite(context.Background(), "t", sample, nil)

	require.Equal(t, StateSynthesized, res.Tier)
	require.Equal(t, reasonQuota, res.Reason)
	require.Contains(t, res.Text, "## Enhanced Overview")
	require.Contains(t, res.Text, "### Conclusion")
}

func TestRewriteAllRemotePathsFail(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := config.LLMConfig{
		APIKey: "k",
		Gemini: config.ProviderConfig{Endpoint: server.URL, Model: "m"},
		OpenAI: config.ProviderConfig{Endpoint: server.URL, Model: "m"},
	}

	inputs := []string{"", "   ", "[only an annotation]", sample, strings.Repeat("x", 10000)}
	for _, provider := range []string{config.ProviderGemini, config.ProviderOpenAI} {
		cfg.Provider = provider
		r := New(llm.NewGenerator(cfg), nil)
		for _, in := range inputs {
			res := r.Rewrite(context.Background(), "title", in, nil)
			require.NotEmpty(t, strings.TrimSpace(res.Text))
			require.Equal(t, StateSynthesized, res.Tier)
		}
	}
}

func TestRewriteWithoutProvider(t *testing.T) {
	t.Parallel()

	res := New(nil, nil).Rewrite(context.Background(), "t", sample, nil)
	require.Equal(t, StateSynthesized, res.Tier)
	require.Equal(t, reasonNoProvider, res.Reason)
}

func TestRewriteEmptyProviderText(t *testing.T) {
	t.Parallel()

	res := New(&stubGenerator{text: "  \n"}, nil).Rewrite(context.Background(), "t", sample, nil)
	require.Equal(t, StateSynthesized, res.Tier)
	require.Equal(t, reasonEmpty, res.Reason)
}

func TestRewriteGenericError(t *testing.T) {
	t.Parallel()

	res := New(&stubGenerator{err: errors.New("connection reset")}, nil).Rewrite(context.Background(), "t", sample, nil)
	require.Equal(t, StateSynthesized, res.Tier)
	require.Equal(t, "connection reset", res.Reason)
}

func TestKeyPoints(t *testing.T) {
	t.Parallel()

	points := KeyPoints(sample)
	require.Equal(t, []string{
		"Chatbots are software programs that simulate human conversation",
		"They help businesses answer customer questions around the clock",
		"Modern chatbots rely on large language models",
		"Companies deploy them on websites and messaging apps",
		"Careful design keeps answers accurate and on brand",
	}, points)
}

func TestSynthesizeTemplate(t *testing.T) {
	t.Parallel()

	out := Synthesize(sample)
	require.True(t, strings.HasPrefix(out, "## Enhanced Overview\n\nChatbots are software programs that simulate human conversation.\n\n"))
	require.Contains(t, out, "### Key Insights\n\n1. They help businesses answer customer questions around the clock.\n\n"+
		"2. Modern chatbots rely on large language models.\n\n3. Companies deploy them on websites and messaging apps.\n\n")
	require.Contains(t, out, "### Industry Perspective\n\n"+industryPerspective)
	require.Contains(t, out, "### Conclusion\n\nCareful design keeps answers accurate and on brand.\n\n")
	require.True(t, strings.HasSuffix(out, "*References: IBM Topics on Chatbots, Salesforce Blog*"))
	require.NotContains(t, out, "sixth sentence")

	empty := Synthesize("")
	require.Contains(t, empty, defaultOverview+".")
	require.Contains(t, empty, defaultConclusion+".")
}
