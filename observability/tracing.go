package observability

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/orchestra/core"
)

// Tracer is a core.Hook that turns orchestrator events into OpenTelemetry
// spans: one span per run with one child span per invocation. Retries are
// recorded as span events on the invocation span.
type Tracer struct {
	tracer trace.Tracer

	mu          sync.Mutex
	runs        map[string]runSpan
	invocations map[string]trace.Span
}

type runSpan struct {
	ctx  context.Context
	span trace.Span
}

var _ core.Hook = (*Tracer)(nil)

// NewTracer creates a tracing hook on top of tp.
func NewTracer(tp trace.TracerProvider) *Tracer {
	return &Tracer{
		tracer:      tp.Tracer(DefaultServiceName),
		runs:        make(map[string]runSpan),
		invocations: make(map[string]trace.Span),
	}
}

// OnEvent implements core.Hook.
func (t *Tracer) OnEvent(ev core.Event) {
	switch {
	case ev.Type == core.EventRunStarted:
		t.startRun(ev)
	case ev.Type == core.EventInvocationStarted:
		t.startInvocation(ev)
	case ev.Type == core.EventInvocationRetried:
		t.retry(ev)
	case ev.IsInvocation():
		t.endInvocation(ev)
	case ev.IsRunEnd():
		t.endRun(ev)
	}
}

func (t *Tracer) startRun(ev core.Event) {
	ctx, span := t.tracer.Start(context.Background(), SpanRun,
		trace.WithTimestamp(ev.Time),
		trace.WithAttributes(
			attribute.String(AttrRunID, ev.RunID),
			attribute.String(AttrRequestID, ev.RequestID),
		),
	)

	t.mu.Lock()
	t.runs[ev.RunID] = runSpan{ctx: ctx, span: span}
	t.mu.Unlock()
}

func (t *Tracer) startInvocation(ev core.Event) {
	// later attempts share the span opened by the first one
	if ev.Attempt != 1 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	parent := context.Background()
	if rs, ok := t.runs[ev.RunID]; ok {
		parent = rs.ctx
	}

	_, span := t.tracer.Start(parent, SpanInvocation,
		trace.WithTimestamp(ev.Time),
		trace.WithAttributes(
			attribute.String(AttrRole, string(ev.Role)),
			attribute.String(AttrKey, ev.Key),
			attribute.Int(AttrStage, ev.Stage),
			attribute.String(AttrStageName, ev.StageName),
		),
	)
	t.invocations[spanKey(ev)] = span
}

func (t *Tracer) retry(ev core.Event) {
	t.mu.Lock()
	span, ok := t.invocations[spanKey(ev)]
	t.mu.Unlock()

	if !ok {
		return
	}

	span.AddEvent(EventRetry, trace.WithTimestamp(ev.Time), trace.WithAttributes(
		attribute.Int(AttrAttempts, ev.Attempt),
		attribute.String(AttrFailureKind, string(ev.FailureKind)),
		attribute.Int64(AttrDelay, ev.Delay.Milliseconds()),
	))
}

func (t *Tracer) endInvocation(ev core.Event) {
	key := spanKey(ev)

	t.mu.Lock()
	span, ok := t.invocations[key]
	delete(t.invocations, key)
	parent, hasRun := t.runs[ev.RunID]
	t.mu.Unlock()

	if !ok {
		// settled without ever starting, e.g. an unknown role
		ctx := context.Background()
		if hasRun {
			ctx = parent.ctx
		}
		_, span = t.tracer.Start(ctx, SpanInvocation, trace.WithTimestamp(ev.Time), trace.WithAttributes(
			attribute.String(AttrRole, string(ev.Role)),
			attribute.String(AttrKey, ev.Key),
			attribute.Int(AttrStage, ev.Stage),
		))
	}

	span.SetAttributes(attribute.Int(AttrAttempts, ev.Attempt))

	if ev.Type == core.EventInvocationSucceeded {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetAttributes(attribute.String(AttrFailureKind, string(ev.FailureKind)))
		if ev.Err != nil {
			span.RecordError(ev.Err)
		}
		span.SetStatus(codes.Error, string(ev.FailureKind))
	}

	span.End(trace.WithTimestamp(ev.Time))
}

func (t *Tracer) endRun(ev core.Event) {
	t.mu.Lock()
	rs, ok := t.runs[ev.RunID]
	delete(t.runs, ev.RunID)
	t.mu.Unlock()

	if !ok {
		return
	}

	rs.span.SetAttributes(attribute.String(AttrRunState, string(ev.State)))

	if ev.Type == core.EventRunAborted {
		rs.span.SetAttributes(attribute.String(AttrFailureKind, string(ev.FailureKind)))
		if ev.Err != nil {
			rs.span.RecordError(ev.Err)
		}
		rs.span.SetStatus(codes.Error, string(ev.FailureKind))
	} else {
		rs.span.SetStatus(codes.Ok, "")
	}

	rs.span.End(trace.WithTimestamp(ev.Time))
}

func spanKey(ev core.Event) string { return ev.RunID + "/" + ev.Key }

// NewStdoutTracerProvider creates a tracer provider that writes finished
// spans as pretty-printed JSON to w. Callers must Shutdown the provider to
// flush pending spans.
func NewStdoutTracerProvider(w io.Writer, serviceVersion string) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", DefaultServiceName),
		attribute.String("service.version", serviceVersion),
	)

	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	), nil
}
