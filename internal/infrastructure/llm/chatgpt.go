package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"BlogEnricher/internal/config"
	"BlogEnricher/internal/domain"
	"BlogEnricher/internal/ports"
)

// ChatGPTClient implements ports.TextGenerator backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	temperature  float64
	maxTokens    int
	origLimit    int
	refLimit     int
	httpClient   *http.Client
}

var _ ports.TextGenerator = (*ChatGPTClient)(nil)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.LLMConfig) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatGPTClient{
		endpoint:     cfg.OpenAI.Endpoint,
		model:        cfg.OpenAI.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.OpenAI.SystemPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		origLimit:    cfg.OpenAI.OriginalLimit,
		refLimit:     cfg.OpenAI.ReferenceLimit,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name identifies the provider in logs.
func (c *ChatGPTClient) Name() string {
	return config.ProviderOpenAI
}

// Generate posts the rewrite prompt as a chat completion and returns the first choice.
func (c *ChatGPTClient) Generate(ctx context.Context, title, original string, refs []domain.Reference) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("chatgpt: %w", ErrNotConfigured)
	}

	prompt := BuildPrompt(title, original, refs, c.origLimit, c.refLimit)
	messages := make([]map[string]string, 0, 2)
	if sp := strings.TrimSpace(c.systemPrompt); sp != "" {
		messages = append(messages, map[string]string{"role": "system", "content": sp})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read chatgpt response: %w", err)
	}

	var decoded chatResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if decoded.Error != nil {
		return "", &APIError{
			Provider:   c.Name(),
			StatusCode: resp.StatusCode,
			Code:       decoded.Error.Code,
			Message:    decoded.Error.Message,
			Quota:      decoded.Error.Code == "insufficient_quota" || resp.StatusCode == http.StatusTooManyRequests,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", &APIError{
			Provider:   c.Name(),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw[:min(len(raw), 1024)])),
			Quota:      resp.StatusCode == http.StatusTooManyRequests,
		}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode chatgpt response: %w", decodeErr)
	}

	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return decoded.Choices[0].Message.Content, nil
}
