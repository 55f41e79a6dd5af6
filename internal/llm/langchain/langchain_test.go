package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"resume-workflow/internal/llm"
	"resume-workflow/internal/shared/config"
)

type fakeModel struct {
	content string
	opts    llms.CallOptions
	msgs    []llms.MessageContent
}

func (m *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.msgs = msgs
	for _, opt := range options {
		opt(&m.opts)
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.content}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

type fakeEmbedder struct {
	dim int
}

func (f fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

func (f fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, f.dim), nil
}

func TestCompleteJSONUsesJSONMode(t *testing.T) {
	model := &fakeModel{content: ` {"name":"Ada"} `}
	client := NewClientWithModel(model, ProviderOpenAI, "gpt-4o-mini")

	out, err := client.CompleteJSON(context.Background(), "draft")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ada"}`, out)
	assert.True(t, model.opts.JSONMode)
	require.Len(t, model.msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.msgs[0].Role)
}

func TestCompleteJSONAnthropicSkipsJSONMode(t *testing.T) {
	model := &fakeModel{content: `{}`}
	client := NewClientWithModel(model, ProviderAnthropic, "claude")

	_, err := client.CompleteJSON(context.Background(), "draft")
	require.NoError(t, err)
	assert.False(t, model.opts.JSONMode)
}

func TestCompleteEmpty(t *testing.T) {
	client := NewClientWithModel(&fakeModel{content: "  "}, ProviderOllama, "llama3")

	_, err := client.Complete(context.Background(), "extract")
	assert.True(t, errors.Is(err, llm.ErrEmptyResponse))
}

func TestNewClientRejectsUnknownProvider(t *testing.T) {
	_, err := NewClient(config.Config{LLMProvider: "bogus"})
	assert.Error(t, err)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(config.Config{LLMProvider: ProviderAnthropic, LLMModel: "claude"})
	assert.ErrorContains(t, err, "Anthropic API key required")
}

func TestEmbedderChecksDimension(t *testing.T) {
	ok := NewEmbedderWithModel(fakeEmbedder{dim: 4}, "test", 4)
	vec, err := ok.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)

	batch, err := ok.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	bad := NewEmbedderWithModel(fakeEmbedder{dim: 3}, "test", 4)
	_, err = bad.Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "dimension mismatch")
}
