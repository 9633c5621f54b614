package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/orchestra/core"
)

// ErrScripted is the default transient error returned by scripted failures.
var ErrScripted = errors.New("scripted failure")

// ScriptedAgent is a configurable fake agent. It fails the first Failures
// attempts with Err, then returns Value (or the result of Fn when set).
// Every attempt sleeps Delay while honoring cancellation. It records the
// inputs and views it received.
type ScriptedAgent struct {
	Value    any
	Failures int
	Err      error
	Delay    time.Duration
	// IgnoreCancel makes the agent sleep the full Delay even after its
	// context is done, modelling an agent that violates the contract.
	IgnoreCancel bool
	Fn           func(ctx context.Context, input any, view core.ContextView) (any, error)

	calls atomic.Int32
	mu    sync.Mutex
	views []core.ContextView
	input []any
}

var _ core.Agent = (*ScriptedAgent)(nil)

// Succeed returns an agent that always succeeds with value.
func Succeed(value any) *ScriptedAgent { return &ScriptedAgent{Value: value} }

// FailTimes returns an agent that fails k times with a transient error and then succeeds with value.
func FailTimes(k int, value any) *ScriptedAgent { return &ScriptedAgent{Value: value, Failures: k} }

// AlwaysFail returns an agent that always fails with err.
func AlwaysFail(err error) *ScriptedAgent { return &ScriptedAgent{Failures: 1 << 30, Err: err} }

// Sleep returns an agent that succeeds with value after d.
func Sleep(d time.Duration, value any) *ScriptedAgent { return &ScriptedAgent{Value: value, Delay: d} }

// Invoke implements core.Agent.
func (a *ScriptedAgent) Invoke(ctx context.Context, input any, view core.ContextView) (any, error) {
	n := int(a.calls.Add(1))

	a.mu.Lock()
	a.views = append(a.views, view)
	a.input = append(a.input, input)
	a.mu.Unlock()

	if a.Delay > 0 {
		if a.IgnoreCancel {
			time.Sleep(a.Delay)
		} else {
			t := time.NewTimer(a.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}

	if n <= a.Failures {
		if a.Err != nil {
			return nil, a.Err
		}
		return nil, ErrScripted
	}

	if a.Fn != nil {
		return a.Fn(ctx, input, view)
	}

	return a.Value, nil
}

// Calls returns the number of attempts made.
func (a *ScriptedAgent) Calls() int { return int(a.calls.Load()) }

// Views returns the views observed, one per attempt.
func (a *ScriptedAgent) Views() []core.ContextView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.ContextView(nil), a.views...)
}

// Inputs returns the inputs received, one per attempt.
func (a *ScriptedAgent) Inputs() []any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]any(nil), a.input...)
}

// BlockingAgent blocks until its context is done and reports whether it was
// cancelled. Started is closed on the first invocation.
type BlockingAgent struct {
	Started   chan struct{}
	once      sync.Once
	cancelled atomic.Bool
}

// NewBlockingAgent creates a BlockingAgent.
func NewBlockingAgent() *BlockingAgent { return &BlockingAgent{Started: make(chan struct{})} }

// Invoke implements core.Agent.
func (a *BlockingAgent) Invoke(ctx context.Context, _ any, _ core.ContextView) (any, error) {
	a.once.Do(func() { close(a.Started) })
	<-ctx.Done()
	a.cancelled.Store(true)
	return nil, ctx.Err()
}

// Cancelled reports whether the agent observed cancellation.
func (a *BlockingAgent) Cancelled() bool { return a.cancelled.Load() }

// ConcurrencyTracker records the peak number of agents running at once.
type ConcurrencyTracker struct {
	current atomic.Int32
	peak    atomic.Int32
}

// Agent returns an agent that holds a slot for d and succeeds with value.
func (c *ConcurrencyTracker) Agent(d time.Duration, value any) core.Agent {
	return core.AgentFunc(func(ctx context.Context, _ any, _ core.ContextView) (any, error) {
		n := c.current.Add(1)
		defer c.current.Add(-1)

		for {
			p := c.peak.Load()
			if n <= p || c.peak.CompareAndSwap(p, n) {
				break
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
			return value, nil
		}
	})
}

// Peak returns the highest observed concurrency.
func (c *ConcurrencyTracker) Peak() int { return int(c.peak.Load()) }

// Roles is a tiny map-backed core.Resolver for tests that do not need a registry.
type Roles map[core.Role]core.Agent

// Resolve implements core.Resolver.
func (r Roles) Resolve(role core.Role) (core.Agent, error) {
	a, ok := r[role]
	if !ok {
		return nil, &core.Failure{Kind: core.KindUnknownRole, Role: role, Message: "no agent registered"}
	}
	return a, nil
}

// EventRecorder is a concurrency-safe core.Hook that stores events.
type EventRecorder struct {
	mu     sync.Mutex
	events []core.Event
}

// OnEvent implements core.Hook.
func (r *EventRecorder) OnEvent(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns the recorded events.
func (r *EventRecorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}

// Types returns the recorded event types.
func (r *EventRecorder) Types() []core.EventType {
	evs := r.Events()
	out := make([]core.EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

// Count returns how many events of type t were recorded.
func (r *EventRecorder) Count(t core.EventType) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Type == t {
			n++
		}
	}
	return n
}
