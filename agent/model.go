package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/orchestra/core"
	internalutil "github.com/hupe1980/orchestra/internal/util"
	"github.com/hupe1980/orchestra/logging"
	"github.com/hupe1980/orchestra/model"
)

// DefaultPrompt renders the invocation input as the user message.
const DefaultPrompt = "{{.input}}"

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	// Instruction is sent as the system prompt. It is rendered as a template.
	Instruction Instruction

	// Prompt is the user message template. The template data is:
	//   .input       the invocation input
	//   .results     successful upstream values keyed by result key
	//   .request_id  the run's request id
	//   .run_id      the run id
	Prompt string

	// EnableStreaming requests streamed generation from the model.
	EnableStreaming bool

	// MinLength rejects completions shorter than MinLength runes as a
	// contract violation. Zero only rejects empty completions.
	MinLength int

	// RateLimiter, when set, is waited on before every model call. Share one
	// limiter between agents to rate limit a provider account as a whole.
	RateLimiter *rate.Limiter

	Logger logging.Logger
}

// ModelAgent adapts a language model to the capability contract: it renders
// a prompt from the invocation input and the upstream results, calls the
// model and returns the completion text.
//
// ModelAgent is stateless between invocations and safe for concurrent use as
// long as the underlying model is.
type ModelAgent struct {
	name            string
	llm             model.Model
	instruction     Instruction
	prompt          string
	enableStreaming bool
	minLength       int
	limiter         *rate.Limiter
	logger          logging.Logger
}

var (
	_ core.Agent           = (*ModelAgent)(nil)
	_ core.OutputValidator = (*ModelAgent)(nil)
)

// NewModelAgent creates a new model-based agent with sensible defaults.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction: NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		Prompt:      DefaultPrompt,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{
		name:            name,
		llm:             llm,
		instruction:     opts.Instruction,
		prompt:          opts.Prompt,
		enableStreaming: opts.EnableStreaming,
		minLength:       opts.MinLength,
		limiter:         opts.RateLimiter,
		logger:          opts.Logger,
	}
}

// Name returns the agent name.
func (a *ModelAgent) Name() string { return a.name }

// Model returns the language model instance.
func (a *ModelAgent) Model() model.Model { return a.llm }

// Invoke implements core.Agent.
func (a *ModelAgent) Invoke(ctx context.Context, input any, view core.ContextView) (any, error) {
	req, err := a.buildRequest(input, view)
	if err != nil {
		return nil, err
	}

	if err := a.wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := model.Collect(ctx, a.llm, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Warn("Model call failed", "agent", a.name, "model", a.llm.Info().Name, "error", err)
		return nil, fmt.Errorf("agent %s: %w", a.name, err)
	}

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	a.logger.Debug("Model call completed",
		"agent", a.name,
		"model", a.llm.Info().Name,
		"tokens", tokens,
		"duration", time.Since(start),
	)

	return strings.TrimSpace(resp.Text), nil
}

// PerMinute returns a limiter admitting n calls per minute, evenly spaced.
func PerMinute(n int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
}

// wait blocks until the rate limiter admits the next model call.
func (a *ModelAgent) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}

	start := time.Now()
	if err := a.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// the wait would outlast the deadline of this attempt
		return &core.Failure{Kind: core.KindTimeout, Message: "rate limit wait exceeds deadline", Err: err}
	}

	if waited := time.Since(start); waited > time.Millisecond {
		a.logger.Debug("Rate limited", "agent", a.name, "waited", waited)
	}
	return nil
}

// ValidateOutput implements core.OutputValidator.
func (a *ModelAgent) ValidateOutput(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: expected string output, got %T", core.ErrContractViolation, value)
	}
	if s == "" {
		return fmt.Errorf("%w: empty completion", core.ErrContractViolation)
	}
	if n := len([]rune(s)); n < a.minLength {
		return fmt.Errorf("%w: completion has %d characters, want at least %d", core.ErrContractViolation, n, a.minLength)
	}
	return nil
}

func (a *ModelAgent) buildRequest(input any, view core.ContextView) (model.Request, error) {
	data := TemplateData(input, view)

	instructions, err := a.instruction.Resolve(view)
	if err != nil {
		return model.Request{}, fmt.Errorf("agent %s: resolve instruction: %w", a.name, err)
	}
	instructions, err = internalutil.RenderTemplate(instructions, data)
	if err != nil {
		return model.Request{}, &core.Failure{Kind: core.KindContractViolation, Message: "render instruction", Err: err}
	}

	prompt, err := internalutil.RenderTemplate(a.prompt, data)
	if err != nil {
		return model.Request{}, &core.Failure{Kind: core.KindContractViolation, Message: "render prompt", Err: err}
	}

	return model.Request{
		Instructions: instructions,
		Messages:     []model.Message{model.UserMessage(prompt)},
		Stream:       a.enableStreaming,
	}, nil
}

// TemplateData builds the data map prompt templates are rendered with.
func TemplateData(input any, view core.ContextView) map[string]any {
	return map[string]any{
		"input":      input,
		"results":    core.Successes(view),
		"request_id": view.RequestID(),
		"run_id":     view.RunID(),
	}
}
