// Package pool runs independent jobs on a bounded number of goroutines.
package pool

import (
	"context"
	"runtime"
	"sync"
)

// Workers resolves a configured worker count: values below one mean one
// worker per available CPU.
func Workers(n int) int {
	if n < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// Map applies fn to every item using at most workers goroutines and returns
// the results in input order.
//
// All items are processed even when some fail; the returned error is the one
// from the lowest failing index. When ctx is cancelled, items not yet started
// are skipped and their slots hold ctx.Err().
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, index int, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	sem := make(chan struct{}, Workers(workers))

	for i := range items {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}

		wg.Add(1)
		sem <- struct{}{} // Acquire semaphore

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore

			if err := ctx.Err(); err != nil {
				errs[idx] = err
				return
			}
			results[idx], errs[idx] = fn(ctx, idx, items[idx])
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
