package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SubmissionField is the hidden form field carrying a modal's one-time key.
const SubmissionField = "submission_id"

// IdempotencyStore remembers processed submission keys in redis.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore constructs the store. Keys expire after ttl.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

var (
	// ErrIdempotencyConflict indicates a duplicate key.
	ErrIdempotencyConflict = errors.New("idempotent request already processed")
	// ErrIdempotencyKeyMissing indicates a submission without key.
	ErrIdempotencyKeyMissing = errors.New("idempotency key required")
)

// NewSubmissionKey returns a fresh key for a rendered form.
func NewSubmissionKey() string {
	return uuid.NewString()
}

// CheckAndInsert records key for module, failing when it was already seen.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return ErrIdempotencyKeyMissing
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	ok, err := s.client.SetNX(ctx, s.redisKey(key, module), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrIdempotencyConflict
	}
	return nil
}

// Delete removes a key so a failed submission can be retried.
func (s *IdempotencyStore) Delete(ctx context.Context, key, module string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return ErrIdempotencyKeyMissing
	}
	if err := s.client.Del(ctx, s.redisKey(key, module)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (s *IdempotencyStore) redisKey(key, module string) string {
	return "ecclesia:submission:" + module + ":" + key
}
