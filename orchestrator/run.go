package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/orchestra/core"
	"github.com/hupe1980/orchestra/logging"
)

// run is the state of one Submit call. It is owned by the submitting
// goroutine; invocation goroutines only read from it.
type run struct {
	o         *Orchestrator
	plan      core.Plan
	cfg       Config
	policy    core.RetryPolicy
	runID     string
	requestID string
	logger    logging.Logger
	start     time.Time
	state     core.RunState
	ec        *core.ExecutionContext
}

func (o *Orchestrator) newRun(ctx context.Context, plan core.Plan, cfg Config, policy core.RetryPolicy) *run {
	runID := o.newID()

	requestID, ok := core.RequestIDFromContext(ctx)
	if !ok {
		requestID = runID
	}

	return &run{
		o:         o,
		plan:      plan,
		cfg:       cfg,
		policy:    policy,
		runID:     runID,
		requestID: requestID,
		logger:    o.logger,
		start:     time.Now(),
		state:     core.RunPlanning,
	}
}

func (r *run) event(t core.EventType) core.Event {
	return core.NewEvent(t, r.runID, r.requestID)
}

func (r *run) execute(ctx context.Context) (*FinalResult, error) {
	r.logger.Debug("Run started", "run_id", r.runID, "request_id", r.requestID, "stages", len(r.plan.Stages), "invocations", r.plan.Size())

	ev := r.event(core.EventRunStarted)
	ev.State = core.RunPlanning
	r.o.emit(ev)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if r.cfg.RunTimeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeoutCause(runCtx, r.cfg.RunTimeout, errRunTimeout)
		defer cancelTimeout()
	}

	r.o.track(r.runID, cancel)
	defer r.o.untrack(r.runID)

	deadline, _ := runCtx.Deadline()
	r.ec = core.NewExecutionContext(r.runID, func(o *core.ExecutionContextOptions) {
		o.RequestID = r.requestID
		o.Deadline = deadline
		o.ErrorMode = r.cfg.ErrorMode
		o.Metadata = core.MetadataFromContext(ctx)
	})

	if err := r.cfg.Validate(); err != nil {
		return nil, r.abort(-1, &core.Failure{Kind: core.KindInvalidConfig, Message: err.Error(), Err: err})
	}

	if err := r.plan.Validate(); err != nil {
		return nil, r.abort(-1, core.AsFailure(err))
	}

	r.state = core.RunExecuting

	for i, stage := range r.plan.Stages {
		if runCtx.Err() != nil {
			return nil, r.abortCancelled(runCtx, i)
		}

		stageStart := time.Now()
		results, trigger := r.runStage(runCtx, i, stage)

		failed := 0
		for _, res := range results {
			r.ec.Record(res.Key, res)
			if !res.OK() {
				failed++
			}
		}

		ev := r.event(core.EventStageCompleted)
		ev.Stage, ev.StageName, ev.Duration = i, stage.Name, time.Since(stageStart)
		r.o.emit(ev)
		r.logger.Debug("Stage completed", "run_id", r.runID, "stage", i, "stage_name", stage.Name, "failed", failed, "duration", ev.Duration)

		if runCtx.Err() != nil {
			return nil, r.abortCancelled(runCtx, i)
		}
		if trigger != nil {
			return nil, r.abort(i, trigger)
		}
	}

	r.state = core.RunSynthesizing

	value, err := r.o.synthesizer.Synthesize(runCtx, r.ec.Snapshot())
	if runCtx.Err() != nil {
		return nil, r.abortCancelled(runCtx, -1)
	}
	if err != nil {
		return nil, r.abort(-1, core.AsFailure(err))
	}

	r.state = core.RunCompleted
	dur := time.Since(r.start)
	results := r.ec.Results()

	done := r.event(core.EventRunCompleted)
	done.State, done.Duration, done.Results = r.state, dur, results
	r.o.emit(done)
	r.logger.Debug("Run completed", "run_id", r.runID, "duration", dur)

	return &FinalResult{
		RunID:     r.runID,
		RequestID: r.requestID,
		Value:     value,
		Results:   results,
		Duration:  dur,
	}, nil
}

// abortCancelled aborts because the run context is done: run timeout, caller
// cancellation or Stop.
func (r *run) abortCancelled(runCtx context.Context, stage int) *RunFailure {
	kind := causeKind(runCtx)
	return r.abort(stage, &core.Failure{Kind: kind, Message: causeMessage(runCtx), Err: context.Cause(runCtx)})
}

// abort finalizes an aborted run. Invocations of stages that never started
// are recorded as cancelled so the partial results cover the whole plan.
func (r *run) abort(stage int, trigger *core.Failure) *RunFailure {
	r.state = core.RunAborted

	recorded := r.ec.Results()
	for _, s := range r.plan.Stages {
		for _, inv := range s.Invocations {
			key := inv.ResultKey()
			if _, ok := recorded[key]; ok {
				continue
			}
			recorded[key] = notStarted(inv, trigger.Kind)
			r.ec.Record(key, recorded[key])
		}
	}

	results := r.ec.Results()
	failures := triggerFirst(trigger, collectFailures(r.plan, results))

	rf := &RunFailure{
		RunID:     r.runID,
		RequestID: r.requestID,
		Kind:      trigger.Kind,
		Stage:     stage,
		Failures:  failures,
		Results:   results,
		Duration:  time.Since(r.start),
		Err:       trigger,
	}

	ev := r.event(core.EventRunAborted)
	ev.State, ev.Stage, ev.Duration, ev.Results = r.state, stage, rf.Duration, results
	ev.FailureKind, ev.Err = rf.Kind, rf
	r.o.emit(ev)
	r.logger.Warn("Run aborted", "run_id", r.runID, "kind", rf.Kind, "stage", stage, "error", trigger.Error())

	return rf
}

// collectFailures returns, in plan order, the failures of invocations that
// failed terminally or were interrupted while running.
func collectFailures(plan core.Plan, results map[string]core.Result) []*core.Failure {
	var out []*core.Failure
	for _, key := range plan.Keys() {
		res, ok := results[key]
		if !ok || res.Failure == nil {
			continue
		}
		if res.Status == core.StatusFailed || res.Attempts > 0 {
			out = append(out, res.Failure)
		}
	}
	return out
}

// triggerFirst puts trigger at index 0 and drops the entries it already
// reports: the trigger itself and the invocation failure it wraps.
func triggerFirst(trigger *core.Failure, failures []*core.Failure) []*core.Failure {
	var wrapped *core.Failure
	_ = errors.As(trigger.Err, &wrapped)

	out := make([]*core.Failure, 0, len(failures)+1)
	out = append(out, trigger)
	for _, f := range failures {
		if f == trigger || f == wrapped {
			continue
		}
		out = append(out, f)
	}
	return out
}

func notStarted(inv core.Invocation, kind core.FailureKind) core.Result {
	if kind != core.KindRunTimeout {
		kind = core.KindCancelled
	}
	return core.Cancelled(inv.ResultKey(), inv.Role, &core.Failure{Kind: kind, Message: "not started"}, 0, 0)
}
