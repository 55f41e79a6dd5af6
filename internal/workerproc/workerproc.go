// Package workerproc holds the index-job handling shared by the SQS worker,
// the Lambda consumer and the in-process queue.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"resume-workflow/internal/knowledge"
	"resume-workflow/internal/queue"
)

// Indexer indexes a registered knowledge document.
type Indexer interface {
	IndexDocument(ctx context.Context, id string) (knowledge.Document, error)
}

// Digest identifies a raw body in logs without printing it.
type Digest struct {
	Len    int
	SHA256 string
}

func digest(body string) Digest {
	if body == "" {
		return Digest{}
	}
	sum := sha256.Sum256([]byte(body))
	return Digest{Len: len(body), SHA256: hex.EncodeToString(sum[:8])}
}

// Fields adds the digest to a log field map.
func (d Digest) Fields(fields map[string]any) map[string]any {
	fields["body_len"] = d.Len
	if d.SHA256 != "" {
		fields["body_sha256"] = d.SHA256
	}
	return fields
}

// IndexError wraps an indexing failure with the job it belonged to.
type IndexError struct {
	DocumentID string
	RequestID  string
	Err        error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index document %s: %v", e.DocumentID, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Parse decodes a queue body. Failures wrap queue.ErrInvalidMessage.
func Parse(body string) (queue.Message, Digest, error) {
	d := digest(body)
	msg, err := queue.DecodeMessage([]byte(body))
	return msg, d, err
}

// Index runs one decoded job.
func Index(ctx context.Context, indexer Indexer, msg queue.Message) error {
	if indexer == nil {
		return errors.New("knowledge service not configured")
	}
	if _, err := indexer.IndexDocument(ctx, msg.DocumentID); err != nil {
		return &IndexError{DocumentID: msg.DocumentID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}

// HandleMessage parses body and indexes the document it names.
func HandleMessage(ctx context.Context, indexer Indexer, body string) error {
	msg, _, err := Parse(body)
	if err != nil {
		return err
	}
	return Index(ctx, indexer, msg)
}

// Unrecoverable reports whether a failed job should be dropped instead of
// retried: malformed payloads and documents that are gone or empty.
func Unrecoverable(err error) bool {
	return errors.Is(err, queue.ErrInvalidMessage) ||
		errors.Is(err, knowledge.ErrNotFound) ||
		errors.Is(err, knowledge.ErrNoContent)
}
