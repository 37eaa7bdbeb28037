package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/certverify/internal/model"
)

// NewProvider creates a provider based on configuration
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "gemini", "vertex":
		return NewGeminiProvider(ctx, config)

	case "relay":
		return NewRelayProvider(config)

	case "":
		return nil, fmt.Errorf("no extraction provider configured (supported: openai, anthropic, ollama, gemini, relay)")

	default:
		return nil, fmt.Errorf("unknown extraction provider: %s (supported: openai, anthropic, ollama, gemini, relay)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	return Config{
		Provider:    modelConfig.Provider,
		Model:       modelConfig.Model,
		APIKey:      modelConfig.APIKey,
		BaseURL:     modelConfig.BaseURL,
		ProjectID:   modelConfig.ProjectID,
		Region:      modelConfig.Region,
		Timeout:     modelConfig.Timeout,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
	}
}
