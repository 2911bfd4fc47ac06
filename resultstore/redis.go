package resultstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/theralink/sessionkit/types"
)

// RedisStore provides a Redis-backed implementation of the Store interface.
// Each modality maps to a Redis list capped with LTRIM, newest first. This
// implementation is suitable when results must survive client restarts or be
// shared with the platform's dashboard processes.
type RedisStore struct {
	client   *redis.Client
	capacity int
	ttl      time.Duration
	prefix   string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisCapacity overrides the per-modality retention cap.
func WithRedisCapacity(capacity int) RedisOption {
	return func(s *RedisStore) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

// WithTTL sets the time-to-live for each modality's log. The expiry is
// refreshed on every append. Zero (the default) means no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for Redis keys. Default is "sessionkit".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a new Redis-backed result store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(24 * time.Hour),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client:   client,
		capacity: DefaultCapacity,
		prefix:   "sessionkit",
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Append pushes one result and trims the log to capacity. The push and trim
// are pipelined into a single round-trip.
func (s *RedisStore) Append(ctx context.Context, modality types.Modality, result *types.AnalysisResult) error {
	if modality == "" {
		return ErrInvalidModality
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	key := s.modalityKey(modality)
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(s.capacity-1))
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append failed: %w", err)
	}
	return nil
}

// Recent returns up to n results, newest first.
func (s *RedisStore) Recent(ctx context.Context, modality types.Modality, n int) ([]*types.AnalysisResult, error) {
	if modality == "" {
		return nil, ErrInvalidModality
	}
	if n <= 0 || n > s.capacity {
		n = s.capacity
	}

	raw, err := s.client.LRange(ctx, s.modalityKey(modality), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis range failed: %w", err)
	}

	out := make([]*types.AnalysisResult, 0, len(raw))
	for _, item := range raw {
		var result types.AnalysisResult
		if err := json.Unmarshal([]byte(item), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		out = append(out, &result)
	}
	return out, nil
}

// Count returns the number of retained results for the modality.
func (s *RedisStore) Count(ctx context.Context, modality types.Modality) (int, error) {
	if modality == "" {
		return 0, ErrInvalidModality
	}

	count, err := s.client.LLen(ctx, s.modalityKey(modality)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen failed: %w", err)
	}
	return int(count), nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) modalityKey(modality types.Modality) string {
	return fmt.Sprintf("%s:results:%s", s.prefix, modality)
}
