package handlers

import (
	"context"

	"github.com/modelyard/modelyard/pkg/worker"
)

// RunFunc executes a pipeline or a suite study by id. Satisfied by
// pipeline.Orchestrator.Run and search.Controller.Run.
type RunFunc func(ctx context.Context, id string) error

// dispatch hands the run to the worker pool. The request's own context
// is not used: the run outlives the HTTP exchange.
func dispatch(pool *worker.Pool, id string, run RunFunc) error {
	_, err := pool.Enqueue(func(ctx context.Context, _ any) (any, error) {
		return nil, run(ctx, id)
	})
	return err
}
