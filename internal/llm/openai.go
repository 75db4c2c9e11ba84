package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible provider (OpenAI, LocalAI, Ollama's /v1)
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAIClient talks to an OpenAI-compatible chat completions API. It only
// reads text lab reports.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-compatible provider
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai: %w", ErrNotConfigured)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// local servers accept any key
		apiKey = "sk-xxx"
	}
	config := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	config.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIClient{client: openai.NewClientWithConfig(config), model: model}, nil
}

// Model returns the model name
func (c *OpenAIClient) Model() string {
	return c.model
}

// Generate completes a single prompt
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	return c.complete(ctx, prompt, opts.MaxTokens, opts.Temperature)
}

// ExtractLabs reads markers from a text lab report
func (c *OpenAIClient) ExtractLabs(ctx context.Context, doc Document) (*OCRResult, error) {
	if doc.Text == "" {
		return nil, fmt.Errorf("openai extract %s: %w", doc.Name, ErrUnsupportedDocument)
	}

	text, err := c.complete(ctx, buildLabPrompt(doc.Text), 4096, 0.1)
	if err != nil {
		return nil, err
	}
	return parseLabResponse(text)
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty response")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai completion: empty response")
	}
	return text, nil
}
