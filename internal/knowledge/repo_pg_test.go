package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateDocumentDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	doc := Document{
		ID:         "doc-1",
		FileName:   "cv.pdf",
		MimeType:   "application/pdf",
		SizeBytes:  42,
		StorageKey: "knowledge/cv.pdf",
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO knowledge_documents").
		WithArgs(doc.ID, doc.FileName, doc.MimeType, doc.SizeBytes, doc.StorageKey, doc.Status, 0, doc.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.CreateDocument(context.Background(), doc); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetDocumentNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM knowledge_documents WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetDocument(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListDocuments(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	cols := []string{"id", "file_name", "mime_type", "size_bytes", "storage_key", "status", "chunk_count", "created_at", "indexed_at"}
	mock.ExpectQuery("FROM knowledge_documents ORDER BY").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("doc-1", "cv.pdf", "application/pdf", int64(10), "k1", StatusIndexed, 3, created, created).
			AddRow("doc-2", "notes.md", "text/markdown", int64(5), "k2", StatusPending, 0, created, nil))

	docs, err := repo.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].IndexedAt == nil || docs[0].ChunkCount != 3 {
		t.Fatalf("unexpected first document %+v", docs[0])
	}
	if docs[1].IndexedAt != nil {
		t.Fatalf("pending document should have no indexed time")
	}
}

func TestPGRepoReplaceChunks(t *testing.T) {
	repo, mock := newMockRepo(t)
	indexedAt := time.Now().UTC()
	chunks := []Chunk{
		{ID: "c1", Position: 0, Content: "first", Embedding: []float32{0.5, 1}},
		{ID: "c2", Position: 1, Content: "second", Embedding: []float32{1, 0}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM knowledge_chunks").WithArgs("doc-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO knowledge_chunks").
		WithArgs("c1", "doc-1", 0, "first", []byte(`[0.5,1]`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO knowledge_chunks").
		WithArgs("c2", "doc-1", 1, "second", []byte(`[1,0]`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE knowledge_documents").
		WithArgs(StatusIndexed, 2, indexedAt, "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.ReplaceChunks(context.Background(), "doc-1", chunks, indexedAt); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoReplaceChunksRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM knowledge_chunks").WithArgs("doc-1").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	if err := repo.ReplaceChunks(context.Background(), "doc-1", nil, time.Now()); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListChunksDecodesEmbeddings(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM knowledge_chunks").
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "position", "content", "embedding"}).
			AddRow("c1", "doc-1", 0, "first", []byte(`[0.25,0.75]`)))

	chunks, err := repo.ListChunks(context.Background())
	if err != nil {
		t.Fatalf("ListChunks: %v", err)
	}
	if len(chunks) != 1 || len(chunks[0].Embedding) != 2 || chunks[0].Embedding[1] != 0.75 {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
}

func TestPGRepoDeleteDocumentNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM knowledge_documents WHERE id").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.DeleteDocument(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
