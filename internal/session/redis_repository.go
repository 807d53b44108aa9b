package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// kvStore is the subset of the platform redis client used for sessions.
type kvStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	ClientSessionKey(clientID string) string
}

// RedisRepository stores sessions as JSON documents in Redis.
type RedisRepository struct {
	store kvStore
}

// NewRedisRepository wraps the provided redis client.
func NewRedisRepository(store kvStore) *RedisRepository {
	return &RedisRepository{store: store}
}

// Load fetches and decodes the session for clientID.
func (r *RedisRepository) Load(ctx context.Context, clientID string) (*Session, error) {
	raw, err := r.store.Get(ctx, r.store.ClientSessionKey(clientID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// Save encodes s and writes it with the provided ttl.
func (r *RedisRepository) Save(ctx context.Context, clientID string, s *Session, ttl time.Duration) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.store.Set(ctx, r.store.ClientSessionKey(clientID), string(payload), ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the stored session.
func (r *RedisRepository) Delete(ctx context.Context, clientID string) error {
	if err := r.store.Del(ctx, r.store.ClientSessionKey(clientID)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
