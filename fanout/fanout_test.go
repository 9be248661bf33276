package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunAllPreservesOrder(t *testing.T) {
	ctx := context.Background()

	tasks := make([]Task[int], 20)
	for i := range tasks {
		i := i
		tasks[i] = func(ctx context.Context) (int, error) {
			// Finish in roughly reverse order to make sure results
			// are slotted by index, not by completion.
			time.Sleep(time.Duration(len(tasks)-i) * time.Millisecond)
			return i * 10, nil
		}
	}

	results := RunAll(ctx, 4, tasks)
	if len(results) != len(tasks) {
		t.Fatalf("got %d results, want %d", len(results), len(tasks))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("task %d failed: %v", i, r.Err)
		}
		if r.Value != i*10 {
			t.Fatalf("results[%d] = %d, want %d", i, r.Value, i*10)
		}
	}
}

func TestRunAllFailureIsolated(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	for _, limit := range []int{1, 3, 10} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			tasks := make([]Task[string], 10)
			for i := range tasks {
				i := i
				tasks[i] = func(ctx context.Context) (string, error) {
					if i == 3 {
						return "", boom
					}
					return fmt.Sprintf("v%d", i), nil
				}
			}

			results := RunAll(ctx, limit, tasks)
			if len(results) != 10 {
				t.Fatalf("got %d results, want 10", len(results))
			}
			for i, r := range results {
				if i == 3 {
					if !errors.Is(r.Err, boom) {
						t.Fatalf("results[3].Err = %v, want boom", r.Err)
					}
					continue
				}
				if r.Err != nil {
					t.Fatalf("sibling task %d affected by failure: %v", i, r.Err)
				}
				if r.Value != fmt.Sprintf("v%d", i) {
					t.Fatalf("results[%d] = %q", i, r.Value)
				}
			}
		})
	}
}

func TestRunAllBoundsConcurrency(t *testing.T) {
	ctx := context.Background()
	const limit = 3

	var active, peak int64
	tasks := make([]Task[struct{}], 24)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (struct{}, error) {
			n := atomic.AddInt64(&active, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&active, -1)
			return struct{}{}, nil
		}
	}

	RunAll(ctx, limit, tasks)
	if peak > limit {
		t.Fatalf("observed %d concurrent tasks, limit %d", peak, limit)
	}
}

func TestRunAllCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var ran int64
	tasks := make([]Task[int], 5)
	tasks[0] = func(ctx context.Context) (int, error) {
		atomic.AddInt64(&ran, 1)
		cancel()
		return 0, nil
	}
	for i := 1; i < len(tasks); i++ {
		tasks[i] = func(ctx context.Context) (int, error) {
			atomic.AddInt64(&ran, 1)
			return i, nil
		}
	}

	// limit 1 serializes the batch, so everything after the
	// cancelling task must be refused a slot.
	results := RunAll(ctx, 1, tasks)
	if results[0].Err != nil {
		t.Fatalf("task 0 failed: %v", results[0].Err)
	}
	for i := 1; i < len(results); i++ {
		if !errors.Is(results[i].Err, context.Canceled) {
			t.Fatalf("results[%d].Err = %v, want context.Canceled", i, results[i].Err)
		}
	}
	if ran != 1 {
		t.Fatalf("%d tasks ran after cancellation, want 1", ran)
	}
}

func TestRunAllEmpty(t *testing.T) {
	if results := RunAll[int](context.Background(), 3, nil); len(results) != 0 {
		t.Fatalf("got %d results for empty batch", len(results))
	}
}

func TestValues(t *testing.T) {
	boom := errors.New("boom")
	results := []Result[int]{{Value: 1}, {Err: boom}, {Value: 3}}

	values, err := Values(results)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(values) != 2 || values[0] != 1 || values[1] != 3 {
		t.Fatalf("values = %v", values)
	}
}
