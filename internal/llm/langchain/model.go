// Package langchain adapts tmc/langchaingo providers to llm.Client and
// to the knowledge store's embedder.
package langchain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"resume-workflow/internal/llm"
	"resume-workflow/internal/shared/config"
	"resume-workflow/internal/shared/telemetry"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

const systemPromptJSON = "Respond with a single JSON object only. No markdown, no commentary."

// Client wraps a langchaingo model.
type Client struct {
	model     llms.Model
	modelName string
	provider  string
}

// NewClient creates a generation client for cfg.LLMProvider.
func NewClient(cfg config.Config) (*Client, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return NewClientWithModel(model, cfg.LLMProvider, cfg.LLMModel), nil
}

// NewClientWithModel wraps an already constructed langchaingo model.
func NewClientWithModel(model llms.Model, provider, modelName string) *Client {
	return &Client{model: model, provider: provider, modelName: modelName}
}

// Complete generates free text for prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	return c.generate(ctx, messages, llms.WithTemperature(0))
}

// CompleteJSON generates a JSON object for prompt.
func (c *Client) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPromptJSON),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	opts := []llms.CallOption{llms.WithTemperature(0)}
	if c.provider != ProviderAnthropic {
		opts = append(opts, llms.WithJSONMode())
	}
	return c.generate(ctx, messages, opts...)
}

func (c *Client) generate(ctx context.Context, messages []llms.MessageContent, opts ...llms.CallOption) (string, error) {
	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}
	telemetry.Info("llm.response", map[string]any{
		"provider":   c.provider,
		"model":      c.modelName,
		"latency_ms": time.Since(start).Milliseconds(),
	})
	content := strings.TrimSpace(resp.Choices[0].Content)
	if content == "" {
		return "", llm.ErrEmptyResponse
	}
	return content, nil
}

// Model returns the model name.
func (c *Client) Model() string {
	return c.modelName
}

var _ llm.Client = (*Client)(nil)
