package knowledge

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo for dev and tests.
type MemoryRepo struct {
	mu     sync.RWMutex
	docs   map[string]Document
	chunks map[string][]Chunk
}

// NewMemoryRepo returns an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		docs:   make(map[string]Document),
		chunks: make(map[string][]Chunk),
	}
}

func (r *MemoryRepo) CreateDocument(_ context.Context, doc Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.docs {
		if existing.FileName == doc.FileName {
			return ErrDuplicate
		}
	}
	r.docs[doc.ID] = doc
	return nil
}

func (r *MemoryRepo) GetDocument(_ context.Context, id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (r *MemoryRepo) GetByFileName(_ context.Context, fileName string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, doc := range r.docs {
		if doc.FileName == fileName {
			return doc, nil
		}
	}
	return Document{}, ErrNotFound
}

func (r *MemoryRepo) ListDocuments(_ context.Context) ([]Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Document, 0, len(r.docs))
	for _, doc := range r.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) ReplaceChunks(_ context.Context, documentID string, chunks []Chunk, indexedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return ErrNotFound
	}
	stored := make([]Chunk, len(chunks))
	copy(stored, chunks)
	for i := range stored {
		stored[i].DocumentID = documentID
	}
	r.chunks[documentID] = stored
	doc.Status = StatusIndexed
	doc.ChunkCount = len(chunks)
	doc.IndexedAt = &indexedAt
	r.docs[documentID] = doc
	return nil
}

func (r *MemoryRepo) UpdateStatus(_ context.Context, documentID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return ErrNotFound
	}
	doc.Status = status
	r.docs[documentID] = doc
	return nil
}

func (r *MemoryRepo) ListChunks(_ context.Context) ([]Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.chunks))
	for id := range r.chunks {
		if r.docs[id].Status == StatusIndexed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var out []Chunk
	for _, id := range ids {
		out = append(out, r.chunks[id]...)
	}
	return out, nil
}

func (r *MemoryRepo) DeleteDocument(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return ErrNotFound
	}
	delete(r.docs, id)
	delete(r.chunks, id)
	return nil
}

func (r *MemoryRepo) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = make(map[string]Document)
	r.chunks = make(map[string][]Chunk)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
