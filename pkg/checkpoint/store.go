// Package checkpoint persists pagination cursors per source so an
// interrupted walk resumes mid-sequence instead of re-fetching pages it has
// already seen. A saved cursor with HasMore false marks a completed walk.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/openlegis/govharvest/pkg/pagination"
)

// ErrNoCheckpoint indicates no cursor has been saved for the source.
var ErrNoCheckpoint = errors.New("checkpoint: not found")

// Store persists and recalls cursors keyed by source.
type Store interface {
	Save(ctx context.Context, sourceKey string, cur pagination.Cursor) error
	Load(ctx context.Context, sourceKey string) (pagination.Cursor, error)
	Clear(ctx context.Context, sourceKey string) error
}

const redisKeyPrefix = "govharvest:checkpoint:"

// RedisStore keeps cursors in Redis as JSON, sharing the instance the Redis
// ledger uses.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed checkpoint store.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("checkpoint: redis client is required")
	}
	return &RedisStore{client: client}, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, sourceKey string, cur pagination.Cursor) error {
	data, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+sourceKey, data, 0).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, sourceKey string) (pagination.Cursor, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+sourceKey).Bytes()
	if err == redis.Nil {
		return pagination.Cursor{}, ErrNoCheckpoint
	}
	if err != nil {
		return pagination.Cursor{}, fmt.Errorf("load checkpoint: %w", err)
	}

	var cur pagination.Cursor
	if err := json.Unmarshal(data, &cur); err != nil {
		return pagination.Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	return cur, nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, sourceKey string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+sourceKey).Err(); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// MemoryStore is an in-process checkpoint store for tests and single runs.
type MemoryStore struct {
	mu      sync.RWMutex
	cursors map[string]pagination.Cursor
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: make(map[string]pagination.Cursor)}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, sourceKey string, cur pagination.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[sourceKey] = cur
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, sourceKey string) (pagination.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.cursors[sourceKey]
	if !ok {
		return pagination.Cursor{}, ErrNoCheckpoint
	}
	return cur, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(ctx context.Context, sourceKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, sourceKey)
	return nil
}
