package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"BlogEnricher/internal/config"
	"BlogEnricher/internal/domain"
	"BlogEnricher/internal/ports"
)

// GeminiClient implements ports.TextGenerator against the generateContent API.
type GeminiClient struct {
	endpoint    string
	model       string
	apiKey      string
	temperature float64
	maxTokens   int
	origLimit   int
	refLimit    int
	httpClient  *http.Client
}

var _ ports.TextGenerator = (*GeminiClient)(nil)

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGeminiClient builds a client from configuration.
func NewGeminiClient(cfg config.LLMConfig) *GeminiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiClient{
		endpoint:    strings.TrimRight(cfg.Gemini.Endpoint, "/"),
		model:       cfg.Gemini.Model,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		origLimit:   cfg.Gemini.OriginalLimit,
		refLimit:    cfg.Gemini.ReferenceLimit,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Name identifies the provider in logs.
func (g *GeminiClient) Name() string {
	return config.ProviderGemini
}

// Generate sends the rewrite prompt and returns the first candidate part.
func (g *GeminiClient) Generate(ctx context.Context, title, original string, refs []domain.Reference) (string, error) {
	if g.apiKey == "" || g.endpoint == "" || g.model == "" {
		return "", fmt.Errorf("gemini: %w", ErrNotConfigured)
	}

	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": BuildPrompt(title, original, refs, g.origLimit, g.refLimit)}}},
		},
		"generationConfig": map[string]any{
			"temperature":     g.temperature,
			"maxOutputTokens": g.maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", g.endpoint, g.model, url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}

	var decoded geminiResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if decoded.Error != nil {
		return "", &APIError{
			Provider:   g.Name(),
			StatusCode: resp.StatusCode,
			Code:       decoded.Error.Status,
			Message:    decoded.Error.Message,
			Quota:      decoded.Error.Status == "RESOURCE_EXHAUSTED" || resp.StatusCode == http.StatusTooManyRequests,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", &APIError{
			Provider:   g.Name(),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw[:min(len(raw), 1024)])),
			Quota:      resp.StatusCode == http.StatusTooManyRequests,
		}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode gemini response: %w", decodeErr)
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	text := decoded.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
