package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the shared cache tier backed by a Redis server. Values are
// stored as JSON envelopes carrying their expiry so readers in other
// processes can promote hits into their local tier with the remaining
// TTL. The Redis key TTL mirrors the envelope expiry, so Redis itself
// reclaims expired entries.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string

	now func() time.Time
}

// NewRedis wraps an existing Redis client. The prefix, if non-empty, is
// prepended to every key so several services can share one server.
func NewRedis(rdb redis.UniversalClient, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, now: time.Now}
}

// Get returns the entry for key, ErrMiss when absent or expired, or a
// wrapped error when the tier is unreachable.
func (r *Redis) Get(ctx context.Context, key string) (*Entry, error) {
	b, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: redis get: %w", err)
	}

	var ent Entry
	if err := json.Unmarshal(b, &ent); err != nil {
		// Corrupt payload, treat as a miss so it gets rewritten.
		return nil, ErrMiss
	}
	if ent.Expired(r.now()) {
		return nil, ErrMiss
	}
	return &ent, nil
}

// Set stores value under key for ttl. Non-positive TTLs are ignored.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	ent := Entry{Value: value, ExpiresAt: r.now().Add(ttl)}
	b, err := json.Marshal(ent)
	if err != nil {
		return fmt.Errorf("cache: redis marshal: %w", err)
	}
	if err := r.rdb.Set(ctx, r.prefix+key, b, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// Delete removes key. Idempotent.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("cache: redis del: %w", err)
	}
	return nil
}

var _ SharedStore = (*Redis)(nil)
