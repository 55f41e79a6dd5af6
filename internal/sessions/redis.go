package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// setScript stores the payload as a plain string. ARGV[2] is the expected
// revision of the stored payload, or -1 for an unconditional write.
var setScript = redis.NewScript(`
local expected = tonumber(ARGV[2])
if expected >= 0 then
  local current = redis.call('GET', KEYS[1])
  if not current then
    return 0
  end
  local ok, doc = pcall(cjson.decode, current)
  if not ok or type(doc) ~= 'table' or tonumber(doc.revision or 0) ~= expected then
    return 0
  end
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'EX', ttl)
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore keeps each session as a JSON string under workflow-session:<id>.
// The revision is read from the payload's top-level "revision" field.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps client. A non-positive ttl falls back to DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, id string) (Record, error) {
	payload, err := s.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("redis get session: %w", err)
	}
	revision, err := payloadRevision(payload)
	if err != nil {
		return Record{}, fmt.Errorf("redis session revision: %w", err)
	}
	return Record{Payload: payload, Revision: revision}, nil
}

func (s *RedisStore) Set(ctx context.Context, id string, rec Record) error {
	revision, err := payloadRevision(rec.Payload)
	if err != nil {
		return fmt.Errorf("redis session revision: %w", err)
	}
	if revision != rec.Revision {
		return fmt.Errorf("redis session revision: payload holds %d, record %d", revision, rec.Revision)
	}
	expected := int64(-1)
	if rec.Revision > 0 {
		expected = rec.Revision - 1
	}
	ok, err := setScript.Run(ctx, s.client,
		[]string{Key(id)},
		string(rec.Payload), expected, int64(s.ttl/time.Second),
	).Int()
	if err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	if ok == 0 {
		return ErrConflict
	}
	return nil
}

// payloadRevision reads the top-level revision of a JSON payload. A missing
// field is revision 0.
func payloadRevision(payload []byte) (int64, error) {
	var doc struct {
		Revision int64 `json:"revision"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return 0, err
	}
	return doc.Revision, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, Key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) Lock(ctx context.Context, id string, ttl time.Duration) (Unlock, error) {
	token := uuid.NewString()
	acquired, err := s.client.SetNX(ctx, lockKey(id), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock session: %w", err)
	}
	if !acquired {
		return nil, ErrLocked
	}
	return func(ctx context.Context) error {
		err := unlockScript.Run(ctx, s.client, []string{lockKey(id)}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis unlock session: %w", err)
		}
		return nil
	}, nil
}

var _ Store = (*RedisStore)(nil)
