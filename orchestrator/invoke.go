package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/orchestra/core"
)

// retryState lives for the duration of one invocation's retry loop.
type retryState struct {
	attempts  int
	lastKind  core.FailureKind
	nextDelay time.Duration
}

// invoke resolves the agent of inv and runs it under the retry policy until
// it succeeds, fails terminally or is cancelled.
func (r *run) invoke(ctx context.Context, stageIndex int, stage core.Stage, inv core.Invocation, view core.ContextView) core.Result {
	key := inv.ResultKey()
	start := time.Now()

	base := r.event("")
	base.Stage, base.StageName, base.Role, base.Key = stageIndex, stage.Name, inv.Role, key

	agent, err := r.o.resolver.Resolve(inv.Role)
	if err != nil {
		f := core.AsFailure(err)
		if f.Kind == core.KindAgentError {
			f.Kind = core.KindUnknownRole
		}
		return r.settle(base, core.Failed(key, inv.Role, f, 0, time.Since(start)))
	}

	policy := inv.Retry
	if policy == nil {
		policy = r.policy
	}

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = r.cfg.InvocationTimeout
	}

	var state retryState
	for {
		if ctx.Err() != nil {
			return r.settle(base, r.interrupted(ctx, inv, state, start))
		}

		state.attempts++

		ev := base
		ev.Type, ev.Attempt, ev.Time = core.EventInvocationStarted, state.attempts, time.Now().UTC()
		ev.Status = core.StatusRunning
		r.o.emit(ev)

		attemptStart := time.Now()
		value, f := r.attempt(ctx, agent, inv, view, timeout)
		if f == nil {
			return r.settle(base, core.Succeeded(key, inv.Role, value, state.attempts, time.Since(start)))
		}

		state.lastKind = f.Kind

		if f.Kind == core.KindCancelled || f.Kind == core.KindRunTimeout {
			if ctx.Err() != nil {
				return r.settle(base, core.Cancelled(key, inv.Role, f, state.attempts, time.Since(start)))
			}
			// the agent gave up on its own while the run is live
			return r.settle(base, core.Failed(key, inv.Role, f, state.attempts, time.Since(start)))
		}

		decision := policy.Decide(state.attempts, f.Kind)
		if !decision.Retry {
			return r.settle(base, core.Failed(key, inv.Role, f, state.attempts, time.Since(start)))
		}

		state.nextDelay = decision.Delay

		retried := base
		retried.Type, retried.Time = core.EventInvocationRetried, time.Now().UTC()
		retried.Attempt, retried.Delay, retried.Duration = state.attempts, state.nextDelay, time.Since(attemptStart)
		retried.FailureKind, retried.Err = f.Kind, f
		retried.Status = core.StatusPending
		r.o.emit(retried)

		r.logger.Debug("Retrying invocation",
			"run_id", r.runID, "role", inv.Role, "key", key,
			"attempt", state.attempts, "kind", f.Kind, "delay", state.nextDelay)

		if !sleep(ctx, state.nextDelay) {
			return r.settle(base, r.interrupted(ctx, inv, state, start))
		}
	}
}

// interrupted builds the result of an invocation whose context was cancelled
// before or between attempts.
func (r *run) interrupted(ctx context.Context, inv core.Invocation, state retryState, start time.Time) core.Result {
	kind := causeKind(ctx)
	if kind == core.KindTimeout {
		kind = core.KindCancelled
	}

	f := &core.Failure{Kind: kind, Message: causeMessage(ctx), Err: context.Cause(ctx)}
	if state.attempts > 0 {
		f.Message = fmt.Sprintf("%s after %s", f.Message, state.lastKind)
	}

	return core.Cancelled(inv.ResultKey(), inv.Role, f, state.attempts, time.Since(start))
}

// settle emits the terminal event of an invocation and returns res.
func (r *run) settle(base core.Event, res core.Result) core.Result {
	ev := base
	ev.Time = time.Now().UTC()
	ev.Attempt, ev.Duration, ev.Status = res.Attempts, res.Duration, res.Status

	switch res.Status {
	case core.StatusSucceeded:
		ev.Type = core.EventInvocationSucceeded
	case core.StatusCancelled:
		ev.Type = core.EventInvocationCancelled
		ev.FailureKind, ev.Err = res.Failure.Kind, res.Failure
	default:
		ev.Type = core.EventInvocationFailed
		ev.FailureKind, ev.Err = res.Failure.Kind, res.Failure
		r.logger.Warn("Invocation failed",
			"run_id", r.runID, "role", res.Role, "key", res.Key,
			"kind", res.Failure.Kind, "attempts", res.Attempts, "error", res.Failure.Error())
	}

	r.o.emit(ev)

	return res
}

// attempt runs a single attempt under its own timeout and classifies the outcome.
func (r *run) attempt(ctx context.Context, agent core.Agent, inv core.Invocation, view core.ContextView, timeout time.Duration) (any, *core.Failure) {
	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeoutCause(ctx, timeout, errInvocationTimeout)
	}
	defer cancel()

	value, err := safeInvoke(attemptCtx, agent, inv.Input, view)

	if attemptCtx.Err() != nil {
		kind := causeKind(attemptCtx)
		// a late success is still a timeout of this attempt; success that
		// races with run level cancellation is kept
		if err != nil || kind == core.KindTimeout {
			return nil, &core.Failure{Kind: kind, Message: causeMessage(attemptCtx), Err: err}
		}
	}

	if err != nil {
		return nil, core.AsFailure(err)
	}

	if v, ok := agent.(core.OutputValidator); ok {
		if verr := v.ValidateOutput(value); verr != nil {
			return nil, &core.Failure{Kind: core.KindContractViolation, Message: verr.Error(), Err: verr}
		}
	}

	return value, nil
}

// safeInvoke calls the agent and converts a panic into a Panic failure.
func safeInvoke(ctx context.Context, agent core.Agent, input any, view core.ContextView) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value = nil
			err = &core.Failure{Kind: core.KindPanic, Message: fmt.Sprintf("agent panicked: %v", rec)}
		}
	}()

	return agent.Invoke(ctx, input, view)
}

// sleep waits for d or until ctx is done. It reports whether the full delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
