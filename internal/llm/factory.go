package llm

import (
	"context"
	"fmt"

	"github.com/pbaille/holoself/internal/config"
)

// New creates the provider selected in cfg. It returns ErrNotConfigured when
// the provider is disabled or has no credentials.
func New(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "gemini", "":
		c, err := NewGeminiClient(ctx, GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openai":
		c, err := NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "none":
		return nil, ErrNotConfigured
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
