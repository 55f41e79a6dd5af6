package knowledge

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDuplicate    = errors.New("document already indexed")
	ErrNoContent    = errors.New("document has no text content")
)

// Document statuses.
const (
	StatusPending = "pending"
	StatusIndexed = "indexed"
	StatusFailed  = "failed"
)

// Document is a candidate file registered in the knowledge index.
type Document struct {
	ID         string     `json:"id"`
	FileName   string     `json:"fileName"`
	MimeType   string     `json:"mimeType"`
	SizeBytes  int64      `json:"sizeBytes"`
	StorageKey string     `json:"-"`
	Status     string     `json:"status"`
	ChunkCount int        `json:"chunkCount"`
	CreatedAt  time.Time  `json:"createdAt"`
	IndexedAt  *time.Time `json:"indexedAt,omitempty"`
}

// Chunk is one embedded slice of a document's text.
type Chunk struct {
	ID         string
	DocumentID string
	Position   int
	Content    string
	Embedding  []float32
}
