// Package forkjoin runs independent parts of a job concurrently and joins the
// results back in part order.
//
// Every part runs to completion; there is no early cancellation between
// parts. When any part fails, Run reports the failure with the lowest index
// and discards all results, so the outcome never depends on scheduling.
package forkjoin

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// PartError identifies the part that failed.
type PartError struct {
	Index int
	Err   error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("part %d: %v", e.Index, e.Err)
}

func (e *PartError) Unwrap() error { return e.Err }

// Split divides n items into k contiguous ranges whose sizes differ by at
// most one, larger ranges first. k is clamped to [1, n]. Each range is
// returned as [lo, hi).
func Split(n, k int) [][2]int {
	if n <= 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	size, extra := n/k, n%k
	ranges := make([][2]int, 0, k)
	lo := 0
	for i := 0; i < k; i++ {
		hi := lo + size
		if i < extra {
			hi++
		}
		ranges = append(ranges, [2]int{lo, hi})
		lo = hi
	}
	return ranges
}

// Run calls fn for every part with at most limit parts in flight and returns
// the results indexed like parts. Each fn owns its result until Run returns;
// parts must not share mutable state.
func Run[T, R any](ctx context.Context, parts []T, limit int, fn func(ctx context.Context, index int, part T) (R, error)) ([]R, error) {
	if len(parts) == 0 {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}

	results := make([]R, len(parts))
	errs := make([]error, len(parts))

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range parts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			r, err := fn(ctx, i, parts[i])
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait() // goroutines record failures in errs and never return one

	for i, err := range errs {
		if err != nil {
			return nil, &PartError{Index: i, Err: err}
		}
	}
	return results, nil
}
