package runner

import (
	"context"
	"fmt"

	"github.com/signalnine/scriptgate/internal/result"
	"golang.org/x/sync/errgroup"
)

type Job func(ctx context.Context) error

// RunPool executes jobs with at most maxWorkers concurrently and waits for
// every one of them to return. One job failing does not stop the others.
// Errors are returned in job order.
func RunPool(ctx context.Context, maxWorkers int, jobs []Job) []error {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	errs := make([]error, len(jobs))
	var g errgroup.Group
	g.SetLimit(maxWorkers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = job(ctx)
			return nil
		})
	}
	_ = g.Wait() // errors captured per job

	var out []error
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// ScriptEvaluator evaluates a single script.
type ScriptEvaluator interface {
	Evaluate(ctx context.Context, path string) (result.ScriptResult, error)
}

// EvaluateAll evaluates paths concurrently and returns results in input
// order. It returns only after every evaluation has terminated; any error
// fails the whole batch.
func EvaluateAll(ctx context.Context, ev ScriptEvaluator, paths []string, workers int) ([]result.ScriptResult, error) {
	results := make([]result.ScriptResult, len(paths))
	jobs := make([]Job, len(paths))
	for i, p := range paths {
		jobs[i] = func(ctx context.Context) error {
			r, err := ev.Evaluate(ctx, p)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		}
	}
	if errs := RunPool(ctx, workers, jobs); len(errs) > 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(errs) == 1 {
			return nil, errs[0]
		}
		return nil, fmt.Errorf("%w (and %d more)", errs[0], len(errs)-1)
	}
	return results, nil
}
