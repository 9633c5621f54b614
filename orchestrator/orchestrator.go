package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/orchestra/core"
	"github.com/hupe1980/orchestra/logging"
	"github.com/hupe1980/orchestra/synth"
)

// Synthesizer combines the results of a run into the final value.
type Synthesizer interface {
	Synthesize(ctx context.Context, view core.ContextView) (any, error)
}

// Cancellation causes. They let the invocation loop tell its own deadline
// from the run deadline and from cooperative cancellation.
var (
	errInvocationTimeout = errors.New("invocation timeout")
	errRunTimeout        = errors.New("run timeout")
	errSiblingFailed     = errors.New("sibling invocation failed")
	errStopped           = errors.New("run stopped")
)

// Options configures an Orchestrator instance using the functional options pattern.
type Options struct {
	// Config contains the run-wide policy. Defaults to DefaultConfig.
	Config Config

	// RetryPolicy decides whether failed attempts are retried. Defaults to
	// an exponential policy built from Config. Invocations may override it.
	RetryPolicy core.RetryPolicy

	// Synthesizer builds the final value. Defaults to synth.New(), which
	// requires every result and returns the values keyed by result key.
	Synthesizer Synthesizer

	// Hooks receive lifecycle events. They are called synchronously from
	// invocation goroutines and must be safe for concurrent use.
	Hooks []core.Hook

	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger

	// IDGenerator generates run ids. Defaults to uuid.NewString.
	IDGenerator func() string
}

// Orchestrator executes plans against the agents of a Resolver.
//
// An Orchestrator holds no per-run state besides the set of active runs, so
// one instance can serve any number of concurrent Submit calls. Every run
// gets its own ExecutionContext which is owned by the goroutine executing the
// run and mutated only between stages.
//
// Run lifecycle:
//
//	planning -> executing -> synthesizing -> completed
//	                     \-> aborted     \-> aborted
//
// Example:
//
//	reg := registry.New()
//	reg.MustRegister("research", researchAgent)
//	reg.MustRegister("analysis", analysisAgent)
//
//	orch := orchestrator.New(reg, func(o *orchestrator.Options) {
//	    o.Config.ErrorMode = core.ErrorModeLenient
//	})
//
//	res, err := orch.Submit(ctx, core.Sequence(
//	    core.Invoke("research", "quantum networking"),
//	    core.Invoke("analysis", nil),
//	))
type Orchestrator struct {
	resolver    core.Resolver
	config      Config
	retry       core.RetryPolicy
	customRetry bool
	synthesizer Synthesizer
	hooks       core.Hooks
	logger      logging.Logger
	newID       func() string

	// Active run tracking - protected by runsMu
	activeRuns map[string]context.CancelCauseFunc
	runsMu     sync.RWMutex
}

// New creates an Orchestrator that resolves roles through resolver.
func New(resolver core.Resolver, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Config:      DefaultConfig,
		Synthesizer: synth.New(),
		Logger:      logging.NoOpLogger{},
		IDGenerator: uuid.NewString,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	o := &Orchestrator{
		resolver:    resolver,
		config:      opts.Config,
		retry:       opts.RetryPolicy,
		customRetry: opts.RetryPolicy != nil,
		synthesizer: opts.Synthesizer,
		hooks:       core.Hooks(opts.Hooks),
		logger:      opts.Logger,
		newID:       opts.IDGenerator,
		activeRuns:  make(map[string]context.CancelCauseFunc),
	}

	if o.synthesizer == nil {
		o.synthesizer = synth.New()
	}
	if o.logger == nil {
		o.logger = logging.NoOpLogger{}
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	if !o.customRetry {
		o.retry = o.config.RetryPolicy()
	}

	return o
}

// Config returns a copy of the orchestrator configuration.
func (o *Orchestrator) Config() Config { return o.config }

// AddHook registers an additional hook. It must be called before runs start.
func (o *Orchestrator) AddHook(h core.Hook) { o.hooks = append(o.hooks, h) }

// Submit executes plan and returns the synthesized result.
//
// Submit is synchronous; invocations inside a parallel stage run
// concurrently. The error is always a *RunFailure. The context carries
// cancellation, an optional caller deadline (treated like the run timeout),
// and optionally a request id and metadata (core.WithRequestID,
// core.WithMetadata). optFns override the configuration for this run only.
func (o *Orchestrator) Submit(ctx context.Context, plan core.Plan, optFns ...func(c *Config)) (*FinalResult, error) {
	cfg := o.config
	for _, fn := range optFns {
		fn(&cfg)
	}

	policy := o.retry
	if !o.customRetry && len(optFns) > 0 {
		policy = cfg.RetryPolicy()
	}

	r := o.newRun(ctx, plan, cfg, policy)

	return r.execute(ctx)
}

// ActiveRuns returns the ids of the runs currently executing.
func (o *Orchestrator) ActiveRuns() []string {
	o.runsMu.RLock()
	ids := make([]string, 0, len(o.activeRuns))
	for id := range o.activeRuns {
		ids = append(ids, id)
	}
	o.runsMu.RUnlock()

	slices.Sort(ids)

	return ids
}

// Stop cancels a running plan cooperatively. The run aborts with a
// Cancelled failure once its in-flight agents return.
func (o *Orchestrator) Stop(runID string) error {
	o.runsMu.RLock()
	cancel, exists := o.activeRuns[runID]
	o.runsMu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel(errStopped)
	return nil
}

func (o *Orchestrator) track(runID string, cancel context.CancelCauseFunc) {
	o.runsMu.Lock()
	o.activeRuns[runID] = cancel
	o.runsMu.Unlock()
}

func (o *Orchestrator) untrack(runID string) {
	o.runsMu.Lock()
	delete(o.activeRuns, runID)
	o.runsMu.Unlock()
}

func (o *Orchestrator) emit(ev core.Event) {
	if len(o.hooks) == 0 {
		return
	}
	o.hooks.OnEvent(ev)
}

// causeKind maps the cancellation cause of a done context to a failure kind.
func causeKind(ctx context.Context) core.FailureKind {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, errInvocationTimeout):
		return core.KindTimeout
	case errors.Is(cause, errRunTimeout), errors.Is(cause, context.DeadlineExceeded):
		return core.KindRunTimeout
	default:
		return core.KindCancelled
	}
}

func causeMessage(ctx context.Context) string {
	if cause := context.Cause(ctx); cause != nil {
		return cause.Error()
	}
	return "cancelled"
}
