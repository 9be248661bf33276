// Package cache provides the keyed response cache used by the request
// pipeline: deterministic key construction, a bounded in-process LRU+TTL
// store, an optional Redis-backed shared tier, and a tiered store that
// composes the two with get-or-compute semantics.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by shared-tier reads when the key is absent or
// expired. Any other error from a SharedStore means the tier itself
// failed and the caller should degrade to local-only operation.
var ErrMiss = errors.New("cache: miss")

// Store is the process-local cache contract.
//
// Get never errors; a miss or an expired entry is (nil, false).
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SharedStore is the cross-process cache tier contract. Unlike Store,
// reads return an error so callers can tell a miss (ErrMiss) apart from
// an unreachable tier.
type SharedStore interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Entry is a cached value together with its expiry, as stored in the
// shared tier. The expiry travels with the value so a shared-tier hit
// can be promoted into the local tier with the remaining TTL.
type Entry struct {
	Value     []byte    `json:"v"`
	ExpiresAt time.Time `json:"exp"`
}

// Expired reports whether the entry is past its expiry at time now.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
