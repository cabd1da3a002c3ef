package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// splitBatches cuts items into consecutive slices of at most size elements
func splitBatches[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var batches [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

// runBatches calls fn once per batch index. With concurrency <= 1 batches run in order on the
// calling goroutine. Otherwise they run on an ants pool of that size, and the first error
// cancels the batches that have not started yet.
func runBatches(ctx context.Context, n, concurrency int, fn func(ctx context.Context, i int) error) error {
	if concurrency <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return fmt.Errorf("failed to create batch pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := fn(ctx, i); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("failed to submit batch: %w", err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
