package llm

import (
	"context"
	"errors"
)

// Client abstracts the generation engine. Complete returns free text;
// CompleteJSON asks the provider for a single JSON object.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

var (
	// ErrEmptyResponse is returned when a provider answers with no content.
	ErrEmptyResponse = errors.New("empty llm response")
	// ErrNoStructuredResult is returned when no JSON object can be recovered.
	ErrNoStructuredResult = errors.New("no structured result")
	// ErrSchemaMismatch is returned when the JSON does not satisfy the schema.
	ErrSchemaMismatch = errors.New("llm output does not match schema")
)

type promptHashKey struct{}

// WithPromptHashSink returns a context that receives the SHA-256 of the
// prompt actually sent to the provider.
func WithPromptHashSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, promptHashKey{}, sink)
}

// PromptHashSinkFromContext returns the sink installed by WithPromptHashSink.
func PromptHashSinkFromContext(ctx context.Context) (*string, bool) {
	sink, ok := ctx.Value(promptHashKey{}).(*string)
	return sink, ok && sink != nil
}
