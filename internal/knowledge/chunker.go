package knowledge

import (
	"strings"
	"unicode"
)

// ChunkConfig defines chunking parameters in characters.
type ChunkConfig struct {
	// MaxSize: paragraphs are packed until adding one would exceed it.
	MaxSize int
	// TargetSize: oversized paragraphs are split at sentences near this size.
	TargetSize int
	// Overlap: trailing text of the previous chunk prefixed to the next.
	Overlap int
}

// DefaultChunkConfig returns the defaults used for candidate documents.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxSize:    1024,
		TargetSize: 768,
		Overlap:    128,
	}
}

// ChunkText splits text into paragraph-packed chunks, splitting oversized
// paragraphs at sentence boundaries, then applies overlap.
func ChunkText(text string, cfg ChunkConfig) []string {
	if cfg.MaxSize <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.TargetSize <= 0 || cfg.TargetSize > cfg.MaxSize {
		cfg.TargetSize = cfg.MaxSize
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if current.Len()+len(para) > cfg.MaxSize && current.Len() > 0 {
			flush()
		}

		if len(para) > cfg.MaxSize {
			flush()
			chunks = append(chunks, chunkBySentences(para, cfg.TargetSize)...)
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return applyOverlap(chunks, cfg.Overlap)
}

func chunkBySentences(text string, target int) []string {
	var chunks []string
	var current strings.Builder

	for _, sentence := range splitSentences(text) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if current.Len()+len(sentence) > target && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		// initials such as "J."
		if i > 1 && unicode.IsUpper(runes[i-1]) {
			continue
		}
		sentences = append(sentences, current.String())
		current.Reset()
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

// applyOverlap prefixes each chunk with the trailing words of the previous
// one, up to overlap characters.
func applyOverlap(chunks []string, overlap int) []string {
	if overlap <= 0 || len(chunks) <= 1 {
		return chunks
	}

	out := make([]string, len(chunks))
	copy(out, chunks)
	for i := 1; i < len(out); i++ {
		tail := trailingWords(chunks[i-1], overlap)
		if tail != "" {
			out[i] = tail + " " + chunks[i]
		}
	}
	return out
}

func trailingWords(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return ""
	}
	tail := string(runes[len(runes)-limit:])
	if idx := strings.IndexFunc(tail, unicode.IsSpace); idx >= 0 {
		tail = tail[idx:]
	}
	return strings.TrimSpace(tail)
}
