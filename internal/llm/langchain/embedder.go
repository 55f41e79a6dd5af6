package langchain

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"resume-workflow/internal/shared/config"
	"resume-workflow/internal/shared/telemetry"
)

// Embedder wraps langchaingo embeddings with dimension validation.
type Embedder struct {
	model     embeddings.Embedder
	dimension int
	modelName string
}

// NewEmbedder creates an embedder for cfg.EmbedProvider.
func NewEmbedder(cfg config.Config) (*Embedder, error) {
	var client embeddings.EmbedderClient

	switch cfg.EmbedProvider {
	case ProviderOllama:
		llm, err := ollama.New(
			ollama.WithModel(cfg.EmbedModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		client = llm

	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		llm, err := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithEmbeddingModel(cfg.EmbedModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		client = llm

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbedProvider)
	}

	model, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return NewEmbedderWithModel(model, cfg.EmbedModel, cfg.EmbedDimension), nil
}

// NewEmbedderWithModel wraps an existing langchaingo embedder.
func NewEmbedderWithModel(model embeddings.Embedder, modelName string, dimension int) *Embedder {
	return &Embedder{model: model, modelName: modelName, dimension: dimension}
}

// Embed generates an embedding vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := e.model.EmbedQuery(ctx, text)
	if err != nil {
		telemetry.Warn("embedding.failed", map[string]any{
			"model":       e.modelName,
			"text_len":    len(text),
			"duration_ms": time.Since(start).Milliseconds(),
			"error":       err.Error(),
		})
		return nil, fmt.Errorf("embed: %w", err)
	}
	if err := e.checkDimension(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := e.model.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if err := e.checkDimension(v); err != nil {
			return nil, fmt.Errorf("embedding %d: %w", i, err)
		}
	}
	return vectors, nil
}

func (e *Embedder) checkDimension(v []float32) error {
	if e.dimension > 0 && len(v) != e.dimension {
		return fmt.Errorf("dimension mismatch: got %d, want %d", len(v), e.dimension)
	}
	return nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.modelName
}
