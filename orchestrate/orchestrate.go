// Package orchestrate composes the request pipeline for one logical
// call: rate-limit check, cache key construction, and cache-aside
// get-or-compute around a caller-supplied fetch function.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rainmanjam/social-flood/cache"
	"github.com/rainmanjam/social-flood/ratelimit"
)

// ErrTimeout is returned when the whole operation exceeded its
// deadline. In-flight fan-out tasks observe the same context and stop.
var ErrTimeout = errors.New("orchestrate: operation timed out")

// ErrUnknownOperation is returned for operation names with no
// registered cache policy.
var ErrUnknownOperation = errors.New("orchestrate: unknown operation")

// RateLimitedError means the caller exceeded its window and must back
// off; the orchestrator never retries on its behalf.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("orchestrate: rate limited, retry after %s", e.RetryAfter)
}

// UpstreamError wraps a fetch failure. The cache is left untouched so a
// subsequent call can retry.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("orchestrate: upstream fetch failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Fetch produces the value for an operation on cache miss. It should be
// a pure read against the upstream with no other side effects; it may
// fan out internally through the fanout package.
type Fetch func(ctx context.Context) ([]byte, error)

// Operation is the per-operation cache policy. TTL is a property of
// the operation, not the call site: stable content like transcripts
// gets a long TTL, volatile content like trends a short one.
type Operation struct {
	Namespace string
	TTL       time.Duration
}

// Orchestrator wires the limiter, key builder and tiered cache into one
// execute path. Construct once at startup and inject where needed.
type Orchestrator struct {
	limiter *ratelimit.Limiter
	store   *cache.Tiered
	ops     map[string]Operation
	log     zerolog.Logger
}

// New creates an Orchestrator with the given per-operation policies.
func New(limiter *ratelimit.Limiter, store *cache.Tiered, ops map[string]Operation, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{limiter: limiter, store: store, ops: ops, log: log}
}

// Execute runs one logical call for the given caller identity.
//
// Order: rate limit first (a blocked caller never touches the cache or
// the upstream), then key build, then get-or-compute. Errors are typed:
// *RateLimitedError, *UpstreamError, or ErrTimeout when the caller's
// deadline expired.
func (o *Orchestrator) Execute(ctx context.Context, identity, operation string, params []cache.Param, fetch Fetch) ([]byte, error) {
	op, ok := o.ops[operation]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, operation)
	}

	if d := o.limiter.Check(identity); !d.Allowed {
		return nil, &RateLimitedError{RetryAfter: d.RetryAfter}
	}

	key := cache.Build(op.Namespace, operation, params...)
	callID := uuid.NewString()

	fetched := false
	value, err := o.store.GetOrCompute(ctx, key, op.TTL, func(ctx context.Context) ([]byte, error) {
		fetched = true
		return fetch(ctx)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, &UpstreamError{Err: err}
	}

	o.log.Debug().
		Str("call_id", callID).
		Str("op", operation).
		Str("identity", identity).
		Bool("cache_hit", !fetched).
		Msg("operation executed")

	return value, nil
}
