package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/hupe1980/orchestra/core"
	"github.com/hupe1980/orchestra/model"
)

func viewWith(results ...core.Result) core.ContextView {
	ec := core.NewExecutionContext("run-1", func(o *core.ExecutionContextOptions) { o.RequestID = "req-1" })
	for _, r := range results {
		ec.Record(r.Key, r)
	}
	return ec.Snapshot()
}

func TestModelAgent_RendersUpstreamResults(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.AddResponse("Analyze: findings about Go (req-1)", "  Go is great.  ")

	a := NewModelAgent("analyst", llm, func(o *ModelAgentOptions) {
		o.Prompt = "{{.input}}: {{.results.research}} ({{.request_id}})"
	})

	view := viewWith(core.Succeeded("research", "research", "findings about Go", 1, time.Millisecond))

	out, err := a.Invoke(context.Background(), "Analyze", view)
	require.NoError(t, err)
	assert.Equal(t, "Go is great.", out)
	assert.NoError(t, a.ValidateOutput(out))
}

func TestModelAgent_ModelError(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	boom := errors.New("503 service unavailable")
	llm.SetError(boom)

	a := NewModelAgent("writer", llm)

	_, err := a.Invoke(context.Background(), "x", viewWith())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, core.KindAgentError, core.Classify(err))
}

func TestModelAgent_CancelledContext(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	a := NewModelAgent("writer", llm, func(o *ModelAgentOptions) { o.EnableStreaming = true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Invoke(ctx, "x", viewWith())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestModelAgent_BadTemplateIsContractViolation(t *testing.T) {
	a := NewModelAgent("writer", model.NewMockModel("mock", "test"), func(o *ModelAgentOptions) {
		o.Prompt = "{{.input"
	})

	_, err := a.Invoke(context.Background(), "x", viewWith())
	assert.ErrorIs(t, err, core.ErrContractViolation)
}

func TestModelAgent_ValidateOutput(t *testing.T) {
	a := NewModelAgent("writer", model.NewMockModel("mock", "test"), func(o *ModelAgentOptions) { o.MinLength = 5 })

	assert.ErrorIs(t, a.ValidateOutput(""), core.ErrContractViolation)
	assert.ErrorIs(t, a.ValidateOutput("abc"), core.ErrContractViolation)
	assert.ErrorIs(t, a.ValidateOutput(42), core.ErrContractViolation)
	assert.NoError(t, a.ValidateOutput("abcdef"))
}

func TestModelAgent_RateLimiter(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	limiter := rate.NewLimiter(rate.Every(40*time.Millisecond), 1)

	a := NewModelAgent("writer", llm, func(o *ModelAgentOptions) { o.RateLimiter = limiter })

	start := time.Now()
	for range 3 {
		_, err := a.Invoke(context.Background(), "x", viewWith())
		require.NoError(t, err)
	}

	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond, "burst of one spaces calls by the interval")
	assert.Equal(t, 3, llm.Calls())
}

func TestModelAgent_RateLimitWaitExceedsDeadline(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	a := NewModelAgent("writer", llm, func(o *ModelAgentOptions) { o.RateLimiter = PerMinute(1) })

	_, err := a.Invoke(context.Background(), "x", viewWith())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = a.Invoke(ctx, "x", viewWith())
	require.Error(t, err)
	assert.Equal(t, core.KindTimeout, core.Classify(err))
	assert.Equal(t, 1, llm.Calls(), "the model is not called while rate limited")
}

func TestModelAgent_RateLimitCancelled(t *testing.T) {
	a := NewModelAgent("writer", model.NewMockModel("mock", "test"), func(o *ModelAgentOptions) {
		o.RateLimiter = rate.NewLimiter(rate.Every(time.Hour), 0)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Invoke(ctx, "x", viewWith())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPerMinute(t *testing.T) {
	l := PerMinute(60)
	assert.Equal(t, rate.Every(time.Second), l.Limit())
	assert.Equal(t, 1, l.Burst())

	assert.Equal(t, rate.Inf, PerMinute(0).Limit())
}
