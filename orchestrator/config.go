package orchestrator

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hupe1980/orchestra/core"
	"github.com/hupe1980/orchestra/retry"
)

// Config defines the run-wide policy of an Orchestrator.
//
// Config is copied at the start of every run, so changing it between runs
// (through Submit options) never affects a run in progress.
type Config struct {
	// ExecutionMode selects sequential or parallel scheduling inside a stage.
	ExecutionMode core.ExecutionMode `mapstructure:"execution_mode" yaml:"execution_mode" json:"execution_mode" validate:"required,oneof=sequential parallel"`

	// ErrorMode selects whether a terminal invocation failure aborts the run
	// (strict) or is handed to the synthesizer (lenient).
	ErrorMode core.ErrorMode `mapstructure:"error_mode" yaml:"error_mode" json:"error_mode" validate:"required,oneof=strict lenient"`

	// MaxRetries is the number of retries after the first attempt, so an
	// invocation makes at most MaxRetries+1 attempts. It parameterizes the
	// default retry policy; a custom RetryPolicy decides on its own.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries" validate:"gte=0,lte=100"`

	// InvocationTimeout bounds every single attempt. Zero disables it.
	InvocationTimeout time.Duration `mapstructure:"invocation_timeout" yaml:"invocation_timeout" json:"invocation_timeout" validate:"gte=0"`

	// RunTimeout bounds the whole run including synthesis. Zero disables it.
	RunTimeout time.Duration `mapstructure:"run_timeout" yaml:"run_timeout" json:"run_timeout" validate:"gte=0"`

	// MaxConcurrency caps the number of simultaneously running invocations
	// of a parallel stage. Zero means unbounded.
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency" json:"max_concurrency" validate:"gte=0"`

	// CancelSiblings cancels the running siblings of a parallel stage as soon
	// as one of them fails terminally in strict mode. When false the stage
	// runs to completion before the run aborts.
	CancelSiblings bool `mapstructure:"cancel_siblings" yaml:"cancel_siblings" json:"cancel_siblings"`

	// BaseDelay, MaxDelay and Jitter parameterize the default exponential
	// backoff.
	BaseDelay time.Duration `mapstructure:"base_delay" yaml:"base_delay" json:"base_delay" validate:"gte=0"`
	MaxDelay  time.Duration `mapstructure:"max_delay" yaml:"max_delay" json:"max_delay" validate:"gte=0"`
	Jitter    float64       `mapstructure:"jitter" yaml:"jitter" json:"jitter" validate:"gte=0,lte=1"`
}

// DefaultConfig provides production-ready default configuration values.
//
// Configuration values:
//   - ExecutionMode: sequential
//   - ErrorMode: strict
//   - MaxRetries: 3
//   - InvocationTimeout: 300s
//   - MaxConcurrency: 3 (bounds pressure on rate-limited providers)
//   - CancelSiblings: true
var DefaultConfig = Config{
	ExecutionMode:     core.ExecutionSequential,
	ErrorMode:         core.ErrorModeStrict,
	MaxRetries:        3,
	InvocationTimeout: 300 * time.Second,
	MaxConcurrency:    3,
	CancelSiblings:    true,
	BaseDelay:         500 * time.Millisecond,
	MaxDelay:          30 * time.Second,
	Jitter:            0.2,
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration values.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid orchestrator config: %w", err)
	}
	return nil
}

// RetryPolicy builds the default exponential policy from the configuration.
func (c Config) RetryPolicy() core.RetryPolicy {
	return retry.NewExponential(func(o *retry.Options) {
		o.MaxRetries = c.MaxRetries
		o.BaseDelay = c.BaseDelay
		o.MaxDelay = c.MaxDelay
		o.Jitter = c.Jitter
	})
}
