package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeShared is an in-memory SharedStore whose failure mode can be
// toggled to simulate an unreachable tier.
type fakeShared struct {
	entries map[string]Entry
	down    bool

	gets, sets int
}

func newFakeShared() *fakeShared {
	return &fakeShared{entries: make(map[string]Entry)}
}

func (f *fakeShared) Get(_ context.Context, key string) (*Entry, error) {
	f.gets++
	if f.down {
		return nil, errors.New("connection refused")
	}
	ent, ok := f.entries[key]
	if !ok || ent.Expired(time.Now()) {
		return nil, ErrMiss
	}
	return &ent, nil
}

func (f *fakeShared) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.sets++
	if f.down {
		return errors.New("connection refused")
	}
	f.entries[key] = Entry{Value: value, ExpiresAt: time.Now().Add(ttl)}
	return nil
}

func (f *fakeShared) Delete(_ context.Context, key string) error {
	delete(f.entries, key)
	return nil
}

func TestTieredGetOrComputeHit(t *testing.T) {
	ctx := context.Background()
	tiered := NewTiered(NewMemory(10), nil, zerolog.Nop())

	calls := 0
	compute := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("value"), nil
	}

	for i := 0; i < 3; i++ {
		v, err := tiered.GetOrCompute(ctx, "k", time.Minute, compute)
		if err != nil {
			t.Fatalf("GetOrCompute: %v", err)
		}
		if string(v) != "value" {
			t.Fatalf("GetOrCompute = %q", v)
		}
	}
	if calls != 1 {
		t.Fatalf("compute invoked %d times, want 1", calls)
	}
}

func TestTieredFailureNotCached(t *testing.T) {
	ctx := context.Background()
	tiered := NewTiered(NewMemory(10), nil, zerolog.Nop())

	calls := 0
	boom := errors.New("boom")
	compute := func(ctx context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return []byte("ok"), nil
	}

	if _, err := tiered.GetOrCompute(ctx, "k", time.Minute, compute); !errors.Is(err, boom) {
		t.Fatalf("first call err = %v, want boom", err)
	}
	v, err := tiered.GetOrCompute(ctx, "k", time.Minute, compute)
	if err != nil || string(v) != "ok" {
		t.Fatalf("second call = %q, %v; failure was cached", v, err)
	}
	if calls != 2 {
		t.Fatalf("compute invoked %d times, want 2", calls)
	}
}

func TestTieredSharedPromotion(t *testing.T) {
	ctx := context.Background()
	shared := newFakeShared()

	// Another process populated the shared tier.
	if err := shared.Set(ctx, "k", []byte("remote"), time.Minute); err != nil {
		t.Fatalf("seed shared: %v", err)
	}
	shared.sets, shared.gets = 0, 0

	local := NewMemory(10)
	tiered := NewTiered(local, shared, zerolog.Nop())

	v, ok := tiered.Get(ctx, "k")
	if !ok || string(v) != "remote" {
		t.Fatalf("Get = %q, %v; want remote hit", v, ok)
	}
	if shared.gets != 1 {
		t.Fatalf("shared tier read %d times, want 1", shared.gets)
	}

	// Promoted into the local tier: the next read stays local.
	if _, ok := tiered.Get(ctx, "k"); !ok {
		t.Fatal("promoted entry missing")
	}
	if shared.gets != 1 {
		t.Fatalf("second read reached shared tier (%d reads)", shared.gets)
	}
}

func TestTieredDegradesWhenSharedDown(t *testing.T) {
	ctx := context.Background()
	shared := newFakeShared()
	shared.down = true
	tiered := NewTiered(NewMemory(10), shared, zerolog.Nop())

	calls := 0
	compute := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("value"), nil
	}

	// Tier failure must never surface to the caller.
	v, err := tiered.GetOrCompute(ctx, "k", time.Minute, compute)
	if err != nil || string(v) != "value" {
		t.Fatalf("GetOrCompute with shared tier down = %q, %v", v, err)
	}

	// Local tier still serves the value.
	if _, err := tiered.GetOrCompute(ctx, "k", time.Minute, compute); err != nil {
		t.Fatalf("second GetOrCompute: %v", err)
	}
	if calls != 1 {
		t.Fatalf("compute invoked %d times, want 1", calls)
	}
}

func TestTieredWritesBothTiers(t *testing.T) {
	ctx := context.Background()
	shared := newFakeShared()
	local := NewMemory(10)
	tiered := NewTiered(local, shared, zerolog.Nop())

	if err := tiered.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := local.Get(ctx, "k"); !ok {
		t.Fatal("local tier missing write")
	}
	if ent, err := shared.Get(ctx, "k"); err != nil || string(ent.Value) != "v" {
		t.Fatalf("shared tier missing write: %v", err)
	}
}
