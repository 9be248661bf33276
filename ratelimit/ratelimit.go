// Package ratelimit implements a fixed-window request limiter keyed by
// caller identity.
//
// The policy is deliberately approximate: a fresh window opens the first
// time an identity is seen after the previous window ends, so a burst
// straddling two windows can briefly exceed the nominal rate. Sliding
// windows and token buckets trade that slack for more bookkeeping; the
// upstreams behind this service only need coarse per-caller fairness.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a single Check call.
type Decision struct {
	Allowed    bool
	Remaining  int           // calls left in the current window, 0 when blocked
	RetryAfter time.Duration // time until the window rolls over, 0 when allowed
}

type window struct {
	start time.Time
	count int
}

// Limiter counts calls per identity within fixed windows. Safe for
// concurrent use; check-and-increment is atomic under one mutex.
type Limiter struct {
	limit  int
	length time.Duration

	mu        sync.Mutex
	windows   map[string]*window
	lastPrune time.Time

	now func() time.Time
}

// New creates a limiter allowing limit calls per identity in each
// window of the given length.
func New(limit int, length time.Duration) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	if length <= 0 {
		length = time.Minute
	}
	return &Limiter{
		limit:   limit,
		length:  length,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Check records one call for identity and reports whether it is allowed
// under the current window. When blocked, RetryAfter is the time until
// the window rolls over, never negative.
func (l *Limiter) Check(identity string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)

	w, ok := l.windows[identity]
	if !ok || now.Sub(w.start) >= l.length {
		w = &window{start: now}
		l.windows[identity] = w
	}

	if w.count >= l.limit {
		retryAfter := w.start.Add(l.length).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}

	w.count++
	return Decision{Allowed: true, Remaining: l.limit - w.count}
}

// pruneLocked drops identities whose window ended more than one window
// ago. Runs at most once per window length to keep Check cheap.
func (l *Limiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < l.length {
		return
	}
	l.lastPrune = now
	for id, w := range l.windows {
		if now.Sub(w.start) >= 2*l.length {
			delete(l.windows, id)
		}
	}
}
