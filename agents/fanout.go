// Package agents implements the concrete task-specific agents from spec
// §4.8: paper-structure extraction, summarization, concept explanation,
// citation verification, metadata enhancement, and related-paper discovery.
package agents

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/docagents/substrate/types"
	"github.com/docagents/substrate/workerpool"
)

// FanOut submits each task onto pool and joins all of them with an
// unordered collection — callers must not assume ordering among results,
// per spec §5. Cancelling ctx propagates to every pending child future via
// errgroup's shared context; an already-admitted work item that cannot be
// preempted still runs to completion and its result is simply discarded by
// the join.
func FanOut(ctx context.Context, pool *workerpool.Pool, tasks []workerpool.Task) ([]types.Value, error) {
	results := make([]types.Value, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	futures := make([]*workerpool.Future, len(tasks))

	for i, task := range tasks {
		future, err := pool.Submit(gctx, task)
		if err != nil {
			return nil, err
		}
		futures[i] = future
	}

	for i := range futures {
		i := i
		g.Go(func() error {
			value, err := futures[i].Wait(gctx)
			if err != nil {
				return err
			}
			results[i] = value
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
