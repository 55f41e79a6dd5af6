package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, file_name, mime_type, size_bytes, storage_key, status, chunk_count, created_at, indexed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var indexedAt sql.NullTime
	if err := row.Scan(
		&doc.ID,
		&doc.FileName,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.StorageKey,
		&doc.Status,
		&doc.ChunkCount,
		&doc.CreatedAt,
		&indexedAt,
	); err != nil {
		return Document{}, err
	}
	if indexedAt.Valid {
		doc.IndexedAt = &indexedAt.Time
	}
	return doc, nil
}

// CreateDocument inserts a new document row.
func (r *PGRepo) CreateDocument(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO knowledge_documents (
    id,
    file_name,
    mime_type,
    size_bytes,
    storage_key,
    status,
    chunk_count,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (file_name) DO NOTHING`

	res, err := r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		doc.StorageKey,
		doc.Status,
		doc.ChunkCount,
		doc.CreatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicate
	}
	return nil
}

// GetDocument fetches a document by id.
func (r *PGRepo) GetDocument(ctx context.Context, id string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM knowledge_documents WHERE id = $1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// GetByFileName fetches a document by its original file name.
func (r *PGRepo) GetByFileName(ctx context.Context, fileName string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM knowledge_documents WHERE file_name = $1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, fileName))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

// ListDocuments lists documents oldest-first.
func (r *PGRepo) ListDocuments(ctx context.Context) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM knowledge_documents ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// ReplaceChunks deletes the existing chunks of a document, inserts the new
// ones and marks the document indexed in one transaction.
func (r *PGRepo) ReplaceChunks(ctx context.Context, documentID string, chunks []Chunk, indexedAt time.Time) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM knowledge_chunks WHERE document_id = $1`, documentID); err != nil {
		return err
	}

	const insert = `
INSERT INTO knowledge_chunks (id, document_id, position, content, embedding)
VALUES ($1, $2, $3, $4, $5)`
	for _, c := range chunks {
		embedding, mErr := json.Marshal(c.Embedding)
		if mErr != nil {
			err = fmt.Errorf("encode embedding: %w", mErr)
			return err
		}
		if _, err = tx.ExecContext(ctx, insert, c.ID, documentID, c.Position, c.Content, embedding); err != nil {
			return err
		}
	}

	const update = `
UPDATE knowledge_documents
SET status = $1, chunk_count = $2, indexed_at = $3
WHERE id = $4`
	res, err := tx.ExecContext(ctx, update, StatusIndexed, len(chunks), indexedAt, documentID)
	if err != nil {
		return err
	}
	if n, rErr := res.RowsAffected(); rErr == nil && n == 0 {
		err = ErrNotFound
		return err
	}
	return tx.Commit()
}

// UpdateStatus sets the indexing status of a document.
func (r *PGRepo) UpdateStatus(ctx context.Context, documentID, status string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE knowledge_documents SET status = $1 WHERE id = $2`, status, documentID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListChunks returns every stored chunk with its embedding.
func (r *PGRepo) ListChunks(ctx context.Context) ([]Chunk, error) {
	const query = `
SELECT c.id, c.document_id, c.position, c.content, c.embedding
FROM knowledge_chunks c
JOIN knowledge_documents d ON d.id = c.document_id
WHERE d.status = 'indexed'
ORDER BY c.document_id, c.position`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var raw []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Position, &c.Content, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &c.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding of chunk %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document; its chunks cascade.
func (r *PGRepo) DeleteDocument(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM knowledge_documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every document and chunk.
func (r *PGRepo) DeleteAll(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM knowledge_documents`)
	return err
}

var _ Repo = (*PGRepo)(nil)
