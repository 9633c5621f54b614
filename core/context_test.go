package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionContext_SnapshotIsolation(t *testing.T) {
	deadline := time.Now().Add(time.Minute)
	ec := NewExecutionContext("run-1", func(o *ExecutionContextOptions) {
		o.RequestID = "req-1"
		o.Deadline = deadline
		o.ErrorMode = ErrorModeLenient
		o.Metadata = map[string]any{"tenant": "acme"}
	})

	ec.Record("research", Succeeded("research", "research", "V", 1, time.Millisecond))
	view := ec.Snapshot()

	ec.Record("analysis", Succeeded("analysis", "analysis", "A", 1, time.Millisecond))

	assert.Equal(t, []string{"research"}, view.Keys())
	_, ok := view.Get("analysis")
	assert.False(t, ok, "snapshot must not observe later writes")

	v, ok := view.Value("research")
	require.True(t, ok)
	assert.Equal(t, "V", v)

	assert.Equal(t, "run-1", view.RunID())
	assert.Equal(t, "req-1", view.RequestID())
	assert.Equal(t, ErrorModeLenient, view.ErrorMode())
	d, ok := view.Deadline()
	assert.True(t, ok)
	assert.Equal(t, deadline, d)
	md, ok := view.Metadata("tenant")
	assert.True(t, ok)
	assert.Equal(t, "acme", md)

	assert.Equal(t, 2, ec.Len())
}

func TestExecutionContext_ValueHidesFailures(t *testing.T) {
	ec := NewExecutionContext("run-1")
	ec.Record("a", Failed("a", "a", &Failure{Kind: KindTimeout}, 2, time.Second))
	ec.Record("b", Succeeded("b", "b", 42, 1, 0))

	view := ec.Snapshot()

	r, ok := view.Get("a")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, 2, r.Failure.Attempts)
	assert.ErrorIs(t, r.Err(), ErrTimeout)

	_, ok = view.Value("a")
	assert.False(t, ok)

	assert.Equal(t, map[string]any{"b": 42}, Successes(view))
	_, ok = view.Deadline()
	assert.False(t, ok)
	assert.Equal(t, "run-1", view.RequestID(), "request id defaults to run id")
}

func TestContextHelpers(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-9")
	ctx = WithMetadata(ctx, map[string]any{"a": 1, "b": 1})
	ctx = WithMetadata(ctx, map[string]any{"b": 2})

	id, ok := RequestIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-9", id)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, MetadataFromContext(ctx))

	_, ok = RequestIDFromContext(context.Background())
	assert.False(t, ok)
}

func TestHooks_FanOut(t *testing.T) {
	var got []EventType
	h := Hooks{
		HookFunc(func(ev Event) { got = append(got, ev.Type) }),
		nil,
		HookFunc(func(ev Event) { got = append(got, ev.Type) }),
	}

	h.OnEvent(NewEvent(EventRunStarted, "r", "r"))
	assert.Equal(t, []EventType{EventRunStarted, EventRunStarted}, got)

	ev := NewEvent(EventInvocationFailed, "r", "r")
	ev.Err = errors.New("x")
	assert.True(t, ev.IsInvocation())
	assert.False(t, ev.IsRunEnd())
	assert.True(t, NewEvent(EventRunAborted, "r", "r").IsRunEnd())
}
