// Package fanout provides a bounded-concurrency executor for batches of
// independent sub-requests.
package fanout

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Task is one unit of work in a batch.
type Task[T any] func(ctx context.Context) (T, error)

// Result holds the outcome of a single task.
type Result[T any] struct {
	Value T
	Err   error
}

// RunAll executes tasks with at most limit running concurrently and
// returns one result per task, in input order. A failing task never
// cancels its siblings; each result is independently Ok or Err, and the
// caller decides whether a partial batch is acceptable.
//
// Cancelling ctx stops new tasks from starting: tasks that never ran
// get the context error as their result, already-running tasks observe
// ctx themselves, and every acquired slot is released either way.
// RunAll imposes no timeout of its own.
func RunAll[T any](ctx context.Context, limit int, tasks []Task[T]) []Result[T] {
	if limit <= 0 || limit > len(tasks) {
		limit = len(tasks)
	}
	if limit == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(int64(limit))
	results := make([]Result[T], len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = Result[T]{Err: err}
			continue
		}
		wg.Add(1)
		go func(i int, task Task[T]) {
			defer wg.Done()
			defer sem.Release(1)
			v, err := task(ctx)
			results[i] = Result[T]{Value: v, Err: err}
		}(i, task)
	}
	wg.Wait()

	return results
}

// Values extracts the successful values from a batch, dropping failed
// entries. Returns the values and the first error encountered, if any.
func Values[T any](results []Result[T]) ([]T, error) {
	var firstErr error
	values := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		values = append(values, r.Value)
	}
	return values, firstErr
}
