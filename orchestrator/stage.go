package orchestrator

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/orchestra/core"
)

// runStage executes the invocations of one stage and returns their settled
// results in invocation order. trigger is the first terminal failure when the
// run is strict, nil otherwise.
//
// All invocations of the stage observe the same snapshot, taken when the
// stage starts. Results are returned to the caller instead of being written
// to the ExecutionContext, so the context is only mutated after every
// invocation of the stage has settled.
func (r *run) runStage(ctx context.Context, index int, stage core.Stage) ([]core.Result, *core.Failure) {
	view := r.ec.Snapshot()

	if r.cfg.ExecutionMode == core.ExecutionParallel && len(stage.Invocations) > 1 {
		return r.runParallel(ctx, index, stage, view)
	}

	return r.runSequential(ctx, index, stage, view)
}

func (r *run) runSequential(ctx context.Context, index int, stage core.Stage, view core.ContextView) ([]core.Result, *core.Failure) {
	results := make([]core.Result, len(stage.Invocations))

	var trigger *core.Failure
	for i, inv := range stage.Invocations {
		if trigger != nil {
			results[i] = notStarted(inv, core.KindCancelled)
			continue
		}

		results[i] = r.invoke(ctx, index, stage, inv, view)

		if r.strict() && results[i].Status == core.StatusFailed {
			trigger = results[i].Failure
		}
	}

	return results, trigger
}

func (r *run) runParallel(ctx context.Context, index int, stage core.Stage, view core.ContextView) ([]core.Result, *core.Failure) {
	stageCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	results := make([]core.Result, len(stage.Invocations))

	var (
		once    sync.Once
		trigger *core.Failure
	)

	g := new(errgroup.Group)
	if r.cfg.MaxConcurrency > 0 {
		g.SetLimit(r.cfg.MaxConcurrency)
	}

	for i, inv := range stage.Invocations {
		g.Go(func() error {
			if stageCtx.Err() != nil {
				results[i] = notStarted(inv, causeKind(stageCtx))
				return nil
			}

			res := r.invoke(stageCtx, index, stage, inv, view)
			results[i] = res

			if r.strict() && res.Status == core.StatusFailed {
				once.Do(func() {
					trigger = res.Failure
					if r.cfg.CancelSiblings {
						cancel(errSiblingFailed)
					}
				})
			}

			return nil
		})
	}

	// invocation goroutines never return errors; failures live in results
	_ = g.Wait()

	return results, trigger
}

func (r *run) strict() bool { return r.cfg.ErrorMode != core.ErrorModeLenient }
