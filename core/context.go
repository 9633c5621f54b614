package core

import (
	"maps"
	"slices"
	"time"
)

// ContextView is the read-only view of an ExecutionContext handed to agents
// and to the synthesizer. A view is a snapshot: it never changes after it has
// been taken, even while the orchestrator keeps recording results.
type ContextView interface {
	RunID() string
	RequestID() string
	Deadline() (time.Time, bool)
	ErrorMode() ErrorMode
	// Get returns the settled result recorded under key.
	Get(key string) (Result, bool)
	// Value returns the value of a successful result recorded under key.
	Value(key string) (any, bool)
	// Keys returns the recorded keys in recording order.
	Keys() []string
	// Results returns a copy of all recorded results.
	Results() map[string]Result
	Metadata(key string) (any, bool)
}

// ExecutionContext carries the results of one orchestrator run plus
// run-scoped metadata (request id, deadline, error mode).
//
// It is owned by exactly one run and mutated only by the orchestrator, between
// stages, after invocations have settled. It is therefore not synchronized;
// agents only ever see immutable snapshots.
type ExecutionContext struct {
	runID     string
	requestID string
	deadline  time.Time
	errorMode ErrorMode
	metadata  map[string]any
	results   map[string]Result
	order     []string
}

// ExecutionContextOptions configures NewExecutionContext.
type ExecutionContextOptions struct {
	RequestID string
	Deadline  time.Time
	ErrorMode ErrorMode
	Metadata  map[string]any
}

// NewExecutionContext constructs an empty ExecutionContext for a run.
func NewExecutionContext(runID string, optFns ...func(o *ExecutionContextOptions)) *ExecutionContext {
	opts := ExecutionContextOptions{
		RequestID: runID,
		ErrorMode: ErrorModeStrict,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ExecutionContext{
		runID:     runID,
		requestID: opts.RequestID,
		deadline:  opts.Deadline,
		errorMode: opts.ErrorMode,
		metadata:  maps.Clone(opts.Metadata),
		results:   map[string]Result{},
	}
}

// Record stores the settled result for key. Recording a key twice replaces
// the earlier result but keeps its original position.
func (ec *ExecutionContext) Record(key string, r Result) {
	if _, exists := ec.results[key]; !exists {
		ec.order = append(ec.order, key)
	}
	ec.results[key] = r
}

// Len returns the number of recorded results.
func (ec *ExecutionContext) Len() int { return len(ec.results) }

// Snapshot returns an immutable view of the current state.
func (ec *ExecutionContext) Snapshot() ContextView {
	return &snapshot{
		runID:     ec.runID,
		requestID: ec.requestID,
		deadline:  ec.deadline,
		errorMode: ec.errorMode,
		metadata:  maps.Clone(ec.metadata),
		results:   maps.Clone(ec.results),
		order:     slices.Clone(ec.order),
	}
}

// Results returns a copy of all recorded results.
func (ec *ExecutionContext) Results() map[string]Result { return maps.Clone(ec.results) }

// snapshot is the ContextView implementation. Result values are shared with
// the ExecutionContext; Results are immutable after recording so this is safe.
type snapshot struct {
	runID     string
	requestID string
	deadline  time.Time
	errorMode ErrorMode
	metadata  map[string]any
	results   map[string]Result
	order     []string
}

func (s *snapshot) RunID() string     { return s.runID }
func (s *snapshot) RequestID() string { return s.requestID }

func (s *snapshot) Deadline() (time.Time, bool) { return s.deadline, !s.deadline.IsZero() }

func (s *snapshot) ErrorMode() ErrorMode { return s.errorMode }

func (s *snapshot) Get(key string) (Result, bool) {
	r, ok := s.results[key]
	return r, ok
}

func (s *snapshot) Value(key string) (any, bool) {
	r, ok := s.results[key]
	if !ok || !r.OK() {
		return nil, false
	}
	return r.Value, true
}

func (s *snapshot) Keys() []string { return slices.Clone(s.order) }

func (s *snapshot) Results() map[string]Result { return maps.Clone(s.results) }

func (s *snapshot) Metadata(key string) (any, bool) {
	v, ok := s.metadata[key]
	return v, ok
}

// Successes returns the values of all successful results in view keyed by
// result key.
func Successes(view ContextView) map[string]any {
	out := map[string]any{}
	for _, k := range view.Keys() {
		if v, ok := view.Value(k); ok {
			out[k] = v
		}
	}
	return out
}
