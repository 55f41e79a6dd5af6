package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"resume-workflow/internal/shared/storage/object/local"
)

var vocabulary = []string{"python", "kafka", "lisbon", "degree", "golang"}

// keywordEmbedder counts vocabulary hits so similarity follows shared words.
type keywordEmbedder struct {
	fail  bool
	calls int
}

func (e *keywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(vocabulary))
	for i, word := range vocabulary {
		v[i] = float32(strings.Count(lower, word))
	}
	return v
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("embedding backend down")
	}
	return e.vector(text), nil
}

func (e *keywordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("embedding backend down")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *keywordEmbedder, *MemoryRepo) {
	t.Helper()
	embedder := &keywordEmbedder{}
	repo := NewMemoryRepo()
	return &Service{
		Store:    local.New(t.TempDir()),
		Repo:     repo,
		Embedder: embedder,
		TopK:     1,
		Chunking: ChunkConfig{MaxSize: 40, TargetSize: 40},
	}, embedder, repo
}

func TestAddDocumentAndRetrieve(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	text := "Built Python services at scale.\n\nRan Kafka clusters for payments.\n\nLives in Lisbon, Portugal."
	doc, err := svc.AddDocument(ctx, "cv.txt", strings.NewReader(text))
	if err != nil {
		t.Fatalf("add document: %v", err)
	}
	if doc.Status != StatusIndexed || doc.ChunkCount != 3 {
		t.Fatalf("unexpected document: %+v", doc)
	}

	answer, err := svc.Retrieve(ctx, "Which kafka experience?")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if answer != "Ran Kafka clusters for payments." {
		t.Fatalf("unexpected answer %q", answer)
	}
}

func TestRetrieveJoinsTopK(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.TopK = 2
	ctx := context.Background()

	if _, err := svc.AddDocument(ctx, "cv.md", strings.NewReader("Python and Kafka in production systems.\n\nPython only in this paragraph here.\n\nLisbon.")); err != nil {
		t.Fatalf("add document: %v", err)
	}
	answer, err := svc.Retrieve(ctx, "python kafka")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	parts := strings.Split(answer, "\n\n")
	if len(parts) != 2 || !strings.Contains(parts[0], "Kafka") {
		t.Fatalf("expected best match first, got %q", answer)
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	svc, embedder, _ := newTestService(t)

	answer, err := svc.Retrieve(context.Background(), "anything")
	if err != nil || answer != "" {
		t.Fatalf("expected empty answer, got %q %v", answer, err)
	}
	if embedder.calls != 0 {
		t.Fatalf("query should not be embedded when nothing is indexed")
	}
	if _, err := svc.Retrieve(context.Background(), "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank query, got %v", err)
	}
}

func TestAddFilesSkipsDuplicates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.AddFiles(ctx, []File{{Name: "cv.txt", Body: strings.NewReader("Golang developer.")}})
	if err != nil {
		t.Fatalf("add files: %v", err)
	}
	if len(first.Added) != 1 || len(first.Skipped) != 0 {
		t.Fatalf("unexpected first result: %+v", first)
	}

	second, err := svc.AddFiles(ctx, []File{
		{Name: "cv.txt", Body: strings.NewReader("changed")},
		{Name: "degree.txt", Body: strings.NewReader("Degree in computing.")},
	})
	if err != nil {
		t.Fatalf("add files: %v", err)
	}
	if len(second.Added) != 1 || second.Added[0].FileName != "degree.txt" {
		t.Fatalf("expected only the new file to be added: %+v", second)
	}
	if len(second.Skipped) != 1 || second.Skipped[0] != "cv.txt" {
		t.Fatalf("expected cv.txt to be skipped: %+v", second)
	}

	files, err := svc.ListFiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
}

func TestAddDocumentRollsBackOnEmbeddingFailure(t *testing.T) {
	svc, embedder, repo := newTestService(t)
	embedder.fail = true
	ctx := context.Background()

	if _, err := svc.AddDocument(ctx, "cv.txt", strings.NewReader("Python")); err == nil {
		t.Fatal("expected embedding failure")
	}
	docs, _ := repo.ListDocuments(ctx)
	if len(docs) != 0 {
		t.Fatalf("failed document should be removed, got %d", len(docs))
	}

	embedder.fail = false
	if _, err := svc.AddDocument(ctx, "cv.txt", strings.NewReader("Python")); err != nil {
		t.Fatalf("retry under the same name should work: %v", err)
	}
}

func TestIndexDocumentMarksEmptyFileFailed(t *testing.T) {
	svc, _, repo := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, "empty.txt", strings.NewReader("   \n\n  "))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if doc.Status != StatusPending {
		t.Fatalf("uploaded document should be pending, got %q", doc.Status)
	}
	if _, err := svc.IndexDocument(ctx, doc.ID); !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected no content error, got %v", err)
	}
	stored, err := repo.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != StatusFailed {
		t.Fatalf("expected failed status, got %q", stored.Status)
	}
}

func TestDeleteCollection(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddDocument(ctx, "cv.txt", strings.NewReader("Python")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.DeleteCollection(ctx); err != nil {
		t.Fatalf("delete collection: %v", err)
	}
	files, _ := svc.ListFiles(ctx)
	if len(files) != 0 {
		t.Fatalf("collection should be empty, got %d", len(files))
	}
	answer, err := svc.Retrieve(ctx, "python")
	if err != nil || answer != "" {
		t.Fatalf("expected empty retrieval after delete, got %q %v", answer, err)
	}
}

func TestDeleteFileUnknown(t *testing.T) {
	svc, _, _ := newTestService(t)
	if err := svc.DeleteFile(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUploadRequiresName(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Upload(context.Background(), " ", strings.NewReader("x")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestCosine(t *testing.T) {
	if got := cosine([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Fatalf("identical vectors should score 1, got %f", got)
	}
	if got := cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Fatalf("orthogonal vectors should score 0, got %f", got)
	}
	if got := cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Fatalf("zero vector should score 0, got %f", got)
	}
}
