package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-workflow/internal/extract"
	"resume-workflow/internal/shared/storage/object"
	"resume-workflow/internal/shared/telemetry"
)

// DefaultTopK is the number of chunks joined into a retrieval answer.
const DefaultTopK = 5

const storageNamespace = "knowledge"

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Service indexes candidate documents and answers semantic queries over them.
type Service struct {
	Store    object.ObjectStore
	Repo     Repo
	Embedder Embedder
	TopK     int
	Chunking ChunkConfig
	Now      func() time.Time
}

// File is a named upload handed to AddFiles.
type File struct {
	Name string
	Body io.Reader
}

// AddResult reports which files were indexed and which were skipped because
// a document with the same name already exists.
type AddResult struct {
	Added   []Document `json:"added"`
	Skipped []string   `json:"skipped"`
}

// Upload stores the original and registers a pending document without
// indexing it.
func (s *Service) Upload(ctx context.Context, fileName string, r io.Reader) (Document, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" || r == nil {
		return Document{}, ErrInvalidInput
	}
	if _, err := s.Repo.GetByFileName(ctx, fileName); err == nil {
		return Document{}, ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return Document{}, err
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, storageNamespace, fileName, r)
	if err != nil {
		return Document{}, fmt.Errorf("store %s: %w", fileName, err)
	}
	if !extract.Supported(mimeType, fileName) {
		_ = s.Store.Delete(ctx, storageKey)
		return Document{}, fmt.Errorf("%s: %w: %s", fileName, extract.ErrUnsupported, mimeType)
	}

	doc := Document{
		ID:         uuid.NewString(),
		FileName:   fileName,
		MimeType:   mimeType,
		SizeBytes:  size,
		StorageKey: storageKey,
		Status:     StatusPending,
		CreatedAt:  s.now(),
	}
	if err := s.Repo.CreateDocument(ctx, doc); err != nil {
		_ = s.Store.Delete(ctx, storageKey)
		return Document{}, err
	}
	return doc, nil
}

// IndexDocument extracts, chunks and embeds a registered document. The
// document is marked failed when indexing does not complete.
func (s *Service) IndexDocument(ctx context.Context, id string) (Document, error) {
	doc, err := s.Repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}

	start := time.Now()
	count, err := s.index(ctx, doc)
	if err != nil {
		if statusErr := s.Repo.UpdateStatus(context.WithoutCancel(ctx), doc.ID, StatusFailed); statusErr != nil {
			telemetry.Warn("knowledge.status_update_failed", map[string]any{"document_id": doc.ID, "error": statusErr.Error()})
		}
		telemetry.Warn("knowledge.index_failed", map[string]any{
			"document_id": doc.ID,
			"file_name":   doc.FileName,
			"error":       err.Error(),
		})
		return Document{}, err
	}

	telemetry.Info("knowledge.indexed", map[string]any{
		"document_id": doc.ID,
		"file_name":   doc.FileName,
		"chunks":      count,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return s.Repo.GetDocument(ctx, doc.ID)
}

func (s *Service) index(ctx context.Context, doc Document) (int, error) {
	text, err := extract.ExtractText(ctx, s.Store, doc.StorageKey, doc.MimeType, doc.FileName)
	if err != nil {
		return 0, err
	}
	pieces := ChunkText(text, s.Chunking)
	if len(pieces) == 0 {
		return 0, ErrNoContent
	}

	vectors, err := s.Embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(pieces) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(pieces))
	}

	chunks := make([]Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Position:   i,
			Content:    piece,
			Embedding:  vectors[i],
		}
	}
	if err := s.Repo.ReplaceChunks(ctx, doc.ID, chunks, s.now()); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// AddDocument uploads and indexes a file synchronously. A file that cannot
// be indexed is removed again so it can be retried under the same name.
func (s *Service) AddDocument(ctx context.Context, fileName string, r io.Reader) (Document, error) {
	doc, err := s.Upload(ctx, fileName, r)
	if err != nil {
		return Document{}, err
	}
	indexed, err := s.IndexDocument(ctx, doc.ID)
	if err != nil {
		if delErr := s.DeleteFile(context.WithoutCancel(ctx), doc.ID); delErr != nil {
			telemetry.Warn("knowledge.cleanup_failed", map[string]any{"document_id": doc.ID, "error": delErr.Error()})
		}
		return Document{}, err
	}
	return indexed, nil
}

// AddFiles indexes each file, skipping names that are already indexed.
func (s *Service) AddFiles(ctx context.Context, files []File) (AddResult, error) {
	result := AddResult{Added: []Document{}, Skipped: []string{}}
	for _, f := range files {
		doc, err := s.AddDocument(ctx, f.Name, f.Body)
		if errors.Is(err, ErrDuplicate) {
			telemetry.Info("knowledge.duplicate_skipped", map[string]any{"file_name": f.Name})
			result.Skipped = append(result.Skipped, f.Name)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("add %s: %w", f.Name, err)
		}
		result.Added = append(result.Added, doc)
	}
	return result, nil
}

// Retrieve answers query with the most similar stored chunks, best first.
func (s *Service) Retrieve(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrInvalidInput
	}

	chunks, err := s.Repo.ListChunks(ctx)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		telemetry.Warn("knowledge.empty_index", map[string]any{"query_len": len(query)})
		return "", nil
	}

	vector, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return "", err
	}

	type scored struct {
		chunk Chunk
		score float64
	}
	ranked := make([]scored, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) != len(vector) {
			continue
		}
		ranked = append(ranked, scored{chunk: c, score: cosine(vector, c.Embedding)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	k := s.TopK
	if k <= 0 {
		k = DefaultTopK
	}
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	parts := make([]string, len(ranked))
	for i, r := range ranked {
		parts[i] = r.chunk.Content
	}
	return strings.Join(parts, "\n\n"), nil
}

// ListFiles returns every registered document.
func (s *Service) ListFiles(ctx context.Context) ([]Document, error) {
	docs, err := s.Repo.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

// GetFile returns one document.
func (s *Service) GetFile(ctx context.Context, id string) (Document, error) {
	return s.Repo.GetDocument(ctx, id)
}

// DeleteFile removes a document, its chunks and its stored objects.
func (s *Service) DeleteFile(ctx context.Context, id string) error {
	doc, err := s.Repo.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.deleteObjects(ctx, doc)
	return nil
}

// DeleteCollection drops every document and chunk.
func (s *Service) DeleteCollection(ctx context.Context) error {
	docs, err := s.Repo.ListDocuments(ctx)
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteAll(ctx); err != nil {
		return err
	}
	for _, doc := range docs {
		s.deleteObjects(ctx, doc)
	}
	telemetry.Info("knowledge.collection_deleted", map[string]any{"documents": len(docs)})
	return nil
}

func (s *Service) deleteObjects(ctx context.Context, doc Document) {
	for _, key := range []string{doc.StorageKey, extract.ExtractedKey(doc.StorageKey)} {
		if err := s.Store.Delete(ctx, key); err != nil && !errors.Is(err, object.ErrNotFound) {
			telemetry.Warn("knowledge.object_delete_failed", map[string]any{"key": key, "error": err.Error()})
		}
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
