package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryLock struct {
	token string
	until time.Time
}

type memoryEntry struct {
	rec       Record
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Dev and tests only.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
	locks   map[string]memoryLock
}

// NewMemoryStore returns an empty store with the given TTL (0 disables expiry).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
		locks:   make(map[string]memoryLock),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[Key(id)]
	if !ok || s.expired(entry) {
		delete(s.entries, Key(id))
		return Record{}, ErrNotFound
	}
	rec := entry.rec
	rec.Payload = append([]byte(nil), rec.Payload...)
	return rec, nil
}

func (s *MemoryStore) Set(_ context.Context, id string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Revision > 0 {
		current, ok := s.entries[Key(id)]
		if !ok || s.expired(current) || current.rec.Revision != rec.Revision-1 {
			return ErrConflict
		}
	}
	entry := memoryEntry{rec: Record{Payload: append([]byte(nil), rec.Payload...), Revision: rec.Revision}}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.entries[Key(id)] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, Key(id))
	return nil
}

func (s *MemoryStore) Lock(_ context.Context, id string, ttl time.Duration) (Unlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	key := lockKey(id)
	if held, ok := s.locks[key]; ok && now.Before(held.until) {
		return nil, ErrLocked
	}
	token := uuid.NewString()
	s.locks[key] = memoryLock{token: token, until: now.Add(ttl)}
	return func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if held, ok := s.locks[key]; ok && held.token == token {
			delete(s.locks, key)
		}
		return nil
	}, nil
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, entry := range s.entries {
		if !s.expired(entry) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt)
}

var _ Store = (*MemoryStore)(nil)
