package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"resume-workflow/internal/llm"
)

func TestPromptHashDeterministic(t *testing.T) {
	messages := []chatMessage{{Role: "user", Content: "draft a resume"}}
	hash1 := hashPromptString(promptStringFromMessages(messages))
	hash2 := hashPromptString(promptStringFromMessages(messages))
	if hash1 != hash2 {
		t.Fatalf("expected deterministic prompt hash, got %q and %q", hash1, hash2)
	}

	alt := []chatMessage{{Role: "user", Content: "draft a different resume"}}
	if hash1 == hashPromptString(promptStringFromMessages(alt)) {
		t.Fatalf("expected prompt hash to change when input changes")
	}
}

func TestPromptHashSinkReceivesHash(t *testing.T) {
	oldURL := apiURL
	t.Cleanup(func() { apiURL = oldURL })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()
	apiURL = server.URL

	client, err := NewClient("test-key", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	var hash string
	ctx := llm.WithPromptHashSink(context.Background(), &hash)
	if _, err := client.Complete(ctx, "hello"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	want := hashPromptString(promptStringFromMessages([]chatMessage{{Role: "user", Content: "hello"}}))
	if hash != want {
		t.Fatalf("expected hash %q, got %q", want, hash)
	}
}
