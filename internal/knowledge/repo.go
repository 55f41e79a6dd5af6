package knowledge

import (
	"context"
	"time"
)

// Repo persists documents and their chunks.
type Repo interface {
	CreateDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, id string) (Document, error)
	GetByFileName(ctx context.Context, fileName string) (Document, error)
	ListDocuments(ctx context.Context) ([]Document, error)
	// ReplaceChunks swaps the chunks of a document and marks it indexed.
	ReplaceChunks(ctx context.Context, documentID string, chunks []Chunk, indexedAt time.Time) error
	UpdateStatus(ctx context.Context, documentID, status string) error
	ListChunks(ctx context.Context) ([]Chunk, error)
	DeleteDocument(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}
