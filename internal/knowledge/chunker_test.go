package knowledge

import (
	"strings"
	"testing"
)

func TestChunkTextPacksParagraphs(t *testing.T) {
	text := "alpha beta\n\ngamma delta\n\n\n\nepsilon"
	got := ChunkText(text, ChunkConfig{MaxSize: 25})
	want := []string{"alpha beta\n\ngamma delta", "epsilon"}
	if len(got) != len(want) {
		t.Fatalf("got %d chunks %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunkTextSplitsLongParagraphAtSentences(t *testing.T) {
	para := "Led the platform team. Shipped the billing system! Was it hard? Yes. Reviewed by J. Smith today."
	got := ChunkText(para, ChunkConfig{MaxSize: 40, TargetSize: 30})
	if len(got) < 3 {
		t.Fatalf("expected sentence split, got %q", got)
	}
	for _, c := range got {
		if strings.HasPrefix(c, "Smith") {
			t.Fatalf("initials should not end a sentence: %q", got)
		}
	}
	if strings.Join(got, " ") != para {
		t.Fatalf("sentence chunks should cover the paragraph in order: %q", got)
	}
}

func TestChunkTextOverlap(t *testing.T) {
	text := "one two three four five six\n\nseven eight"
	got := ChunkText(text, ChunkConfig{MaxSize: 30, Overlap: 10})
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %q", got)
	}
	if got[1] != "five six seven eight" {
		t.Fatalf("expected whole-word overlap, got %q", got[1])
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if got := ChunkText(" \n\n \r\n", DefaultChunkConfig()); len(got) != 0 {
		t.Fatalf("expected no chunks, got %q", got)
	}
}
