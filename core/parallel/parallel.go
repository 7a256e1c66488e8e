// Package parallel splits index ranges across goroutines.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/casebook/pkg/errors"
)

// ForEach calls fn(i) for every i in [0, n) with at most workers calls in flight and
// returns the first error. A panic inside fn is recovered in its own goroutine and
// returned as a *errors.PanicError naming op. Once a call fails, indices that have
// not started yet are skipped. workers <= 0 means NumCPU.
func ForEach(op string, workers, n int, fn func(i int) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			defer errors.Recover(&err, op)
			if ctx.Err() != nil {
				return nil
			}
			return fn(i)
		})
	}
	return g.Wait()
}

// Parallelize splits [0, items) into one contiguous chunk per CPU and calls fn for each
// chunk concurrently. It returns once every chunk is done.
func Parallelize(op string, items int, fn func(start, end int)) error {
	return ParallelizeN(op, runtime.NumCPU(), items, fn)
}

// ParallelizeN is Parallelize with an explicit worker cap. workers <= 0 means NumCPU.
// A panicking chunk is reported as a *errors.PanicError.
func ParallelizeN(op string, workers, items int, fn func(start, end int)) error {
	if items <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}

	chunkSize := (items + workers - 1) / workers
	chunks := (items + chunkSize - 1) / chunkSize
	return ForEach(op, workers, chunks, func(c int) error {
		start := c * chunkSize
		fn(start, min(start+chunkSize, items))
		return nil
	})
}

// ParallelizeWithThreshold runs fn(0, items) inline when items <= threshold.
func ParallelizeWithThreshold(op string, items int, threshold int, fn func(start, end int)) error {
	if items <= threshold {
		return errors.SafeExecute(op, func() error {
			fn(0, items)
			return nil
		})
	}
	return Parallelize(op, items, fn)
}
