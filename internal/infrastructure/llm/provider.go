package llm

import (
	"strings"

	"BlogEnricher/internal/config"
	"BlogEnricher/internal/ports"
)

// NewGenerator returns the configured provider, or nil when no API key is set.
func NewGenerator(cfg config.LLMConfig) ports.TextGenerator {
	if cfg.APIKey == "" {
		return nil
	}
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderOpenAI:
		return NewChatGPTClient(cfg)
	default:
		return NewGeminiClient(cfg)
	}
}
