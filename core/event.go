package core

import (
	"time"
)

// EventType identifies the lifecycle point an Event describes.
type EventType string

const (
	EventRunStarted          EventType = "run_started"
	EventInvocationStarted   EventType = "invocation_started"
	EventInvocationRetried   EventType = "invocation_retried"
	EventInvocationSucceeded EventType = "invocation_succeeded"
	EventInvocationFailed    EventType = "invocation_failed"
	EventInvocationCancelled EventType = "invocation_cancelled"
	EventStageCompleted      EventType = "stage_completed"
	EventRunCompleted        EventType = "run_completed"
	EventRunAborted          EventType = "run_aborted"
)

// Event is an immutable observability record emitted by the orchestrator.
// Fields that do not apply to a given Type are left at their zero value:
//   - Invocation events carry Role, Key, Attempt, the invocation Status
//     after the transition and (when settled) Duration
//   - Retry events carry the Delay before the next attempt
//   - Failure events carry FailureKind and Err
//   - Run end events carry State, Duration and the final Results
type Event struct {
	Type        EventType
	RunID       string
	RequestID   string
	Stage       int
	StageName   string
	Role        Role
	Key         string
	Attempt     int
	Status      Status
	Duration    time.Duration
	Delay       time.Duration
	FailureKind FailureKind
	Err         error
	State       RunState
	Results     map[string]Result
	Time        time.Time
}

// NewEvent creates an event of type t for run runID stamped with the current UTC time.
func NewEvent(t EventType, runID, requestID string) Event {
	return Event{Type: t, RunID: runID, RequestID: requestID, Time: time.Now().UTC()}
}

// IsInvocation reports whether the event describes a single invocation.
func (e Event) IsInvocation() bool {
	switch e.Type {
	case EventInvocationStarted, EventInvocationRetried, EventInvocationSucceeded,
		EventInvocationFailed, EventInvocationCancelled:
		return true
	}
	return false
}

// IsRunEnd reports whether the event terminates a run.
func (e Event) IsRunEnd() bool {
	return e.Type == EventRunCompleted || e.Type == EventRunAborted
}

// Hook consumes orchestrator events. OnEvent is called synchronously from
// the goroutine running the invocation, so implementations must be safe for
// concurrent use and should return quickly.
type Hook interface {
	OnEvent(ev Event)
}

// HookFunc is a functional adapter for Hook.
type HookFunc func(ev Event)

// OnEvent implements Hook.
func (f HookFunc) OnEvent(ev Event) { f(ev) }

// Hooks fans an event out to several hooks in order.
type Hooks []Hook

// OnEvent implements Hook.
func (hs Hooks) OnEvent(ev Event) {
	for _, h := range hs {
		if h != nil {
			h.OnEvent(ev)
		}
	}
}
