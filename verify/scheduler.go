// Package verify reconstructs and PoW-verifies the header sequence carried
// in a peer's HdrPack response.
package verify

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"
)

var errInvalidHeader = errors.New("verify: header failed PoW check")

// Scheduler runs a PoW-check function over the index range [0, n) in
// however many shards it likes. It exists so tests can install a
// single-threaded scheduler and production code can use the parallel
// default without the verification logic caring which.
type Scheduler interface {
	Run(n int, check func(i int) bool) bool
}

// ErrgroupScheduler is the default Scheduler: it partitions [0, n) into
// runtime.GOMAXPROCS(0) equal shards and runs them concurrently with
// golang.org/x/sync/errgroup, so a single failing header cancels the rest
// of the pack's verification immediately instead of running it to
// completion.
type ErrgroupScheduler struct{}

// Run implements Scheduler.
func (ErrgroupScheduler) Run(n int, check func(i int) bool) bool {
	if n == 0 {
		return true
	}
	shards := runtime.GOMAXPROCS(0)
	if shards > n {
		shards = n
	}
	if shards < 1 {
		shards = 1
	}

	chunk := (n + shards - 1) / shards
	g, ctx := errgroup.WithContext(context.Background())
	for s := 0; s < shards; s++ {
		start := s * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if !check(i) {
					return errInvalidHeader
				}
			}
			return nil
		})
	}
	return g.Wait() == nil
}
