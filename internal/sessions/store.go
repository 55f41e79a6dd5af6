// Package sessions persists suspended workflow runs between requests.
package sessions

import (
	"context"
	"errors"
	"time"
)

const (
	keyPrefix  = "workflow-session:"
	lockPrefix = "workflow-session-lock:"

	// DefaultTTL bounds how long an unreviewed session is kept.
	DefaultTTL = 7 * 24 * time.Hour
)

var (
	ErrNotFound = errors.New("session not found")
	ErrLocked   = errors.New("session locked")
	ErrConflict = errors.New("session revision conflict")
)

// Key returns the store key for a session id.
func Key(id string) string {
	return keyPrefix + id
}

func lockKey(id string) string {
	return lockPrefix + id
}

// Record is the stored form of a suspended run. Payload is a JSON object;
// when it carries a top-level "revision" field it must equal Revision.
type Record struct {
	Payload  []byte
	Revision int64
}

// Unlock releases a lock obtained from Store.Lock.
type Unlock func(ctx context.Context) error

// Store is the persistence medium for suspended workflow contexts.
//
// Set with Revision 0 writes unconditionally. A positive Revision is only
// written when the stored record holds Revision-1, otherwise ErrConflict.
type Store interface {
	Get(ctx context.Context, id string) (Record, error)
	Set(ctx context.Context, id string, rec Record) error
	Delete(ctx context.Context, id string) error
	Lock(ctx context.Context, id string, ttl time.Duration) (Unlock, error)
}
