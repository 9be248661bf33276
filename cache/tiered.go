package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Tiered composes a local store with an optional shared tier.
// Lookup order is local, then shared, then compute. Writes populate
// both tiers. A shared-tier failure is logged and absorbed: the store
// degrades to local-only operation rather than failing the request.
type Tiered struct {
	local  Store
	shared SharedStore // nil means local-only
	log    zerolog.Logger

	now func() time.Time
}

// NewTiered creates a tiered store. shared may be nil to run local-only.
func NewTiered(local Store, shared SharedStore, log zerolog.Logger) *Tiered {
	return &Tiered{local: local, shared: shared, log: log, now: time.Now}
}

// Get probes the local tier, then the shared tier. A shared hit is
// promoted into the local tier with its remaining TTL.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := t.local.Get(ctx, key); ok {
		return v, true
	}
	if t.shared == nil {
		return nil, false
	}

	ent, err := t.shared.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			t.log.Warn().Err(err).Str("key", key).Msg("shared cache tier read failed, degrading to local")
		}
		return nil, false
	}

	if remaining := ent.ExpiresAt.Sub(t.now()); remaining > 0 {
		_ = t.local.Set(ctx, key, ent.Value, remaining)
	}
	return ent.Value, true
}

// Set writes to both tiers. Shared-tier write failures are absorbed.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.local.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if t.shared != nil {
		if err := t.shared.Set(ctx, key, value, ttl); err != nil {
			t.log.Warn().Err(err).Str("key", key).Msg("shared cache tier write failed, degrading to local")
		}
	}
	return nil
}

// Delete removes key from both tiers.
func (t *Tiered) Delete(ctx context.Context, key string) error {
	if err := t.local.Delete(ctx, key); err != nil {
		return err
	}
	if t.shared != nil {
		if err := t.shared.Delete(ctx, key); err != nil {
			t.log.Warn().Err(err).Str("key", key).Msg("shared cache tier delete failed")
		}
	}
	return nil
}

// GetOrCompute returns the cached value for key, or invokes compute and
// stores its result for ttl. Failures are never cached, so every miss
// is eligible to retry on the next call.
//
// There is no per-key single-flight: concurrent misses for the same key
// may each invoke compute. The workloads behind this cache are
// idempotent, side-effect-free reads, so duplicate fetches are an
// accepted tradeoff over cross-goroutine coordination.
func (t *Tiered) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if v, ok := t.Get(ctx, key); ok {
		return v, nil
	}

	v, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if err := t.Set(ctx, key, v, ttl); err != nil {
		t.log.Warn().Err(err).Str("key", key).Msg("cache write after compute failed")
	}
	return v, nil
}

var _ Store = (*Tiered)(nil)
