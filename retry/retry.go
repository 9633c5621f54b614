package retry

import (
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/hupe1980/orchestra/core"
)

// DefaultNonRetryable lists the failure kinds that give up on first
// occurrence regardless of the remaining budget.
var DefaultNonRetryable = []core.FailureKind{
	core.KindContractViolation,
	core.KindUnknownRole,
	core.KindDuplicateRole,
	core.KindCancelled,
	core.KindRunTimeout,
	core.KindPanic,
	core.KindInvalidPlan,
	core.KindInvalidConfig,
	core.KindIncompleteResult,
	core.KindQualityRejected,
}

// IsRetryable reports whether kind is retryable under the default
// classification. Timeouts and generic agent errors are retryable.
func IsRetryable(kind core.FailureKind) bool {
	return !slices.Contains(DefaultNonRetryable, kind)
}

// Options configures the built-in policies.
type Options struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the computed delay. Zero disables the cap.
	MaxDelay time.Duration
	// Multiplier is the exponential growth factor. Values below 1 are treated as 1.
	Multiplier float64
	// Jitter spreads each delay uniformly within +/- Jitter*delay. Clamped to [0,1].
	Jitter float64
	// NonRetryable overrides DefaultNonRetryable when non-nil.
	NonRetryable []core.FailureKind
	// Rand returns a float in [0,1). Defaults to math/rand/v2. Tests inject a fixed source.
	Rand func() float64
}

// DefaultOptions mirrors the defaults of the orchestrator configuration.
var DefaultOptions = Options{
	MaxRetries: 3,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   30 * time.Second,
	Multiplier: 2,
	Jitter:     0.2,
}

func buildOptions(optFns []func(o *Options)) Options {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.NonRetryable == nil {
		opts.NonRetryable = DefaultNonRetryable
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if opts.Multiplier < 1 {
		opts.Multiplier = 1
	}
	opts.Jitter = min(max(opts.Jitter, 0), 1)
	opts.MaxRetries = max(opts.MaxRetries, 0)

	return opts
}

// Exponential retries with exponentially growing, jittered, capped delays.
type Exponential struct {
	opts Options
}

var _ core.RetryPolicy = (*Exponential)(nil)

// NewExponential creates an exponential backoff policy.
func NewExponential(optFns ...func(o *Options)) *Exponential {
	return &Exponential{opts: buildOptions(optFns)}
}

// Decide implements core.RetryPolicy.
func (p *Exponential) Decide(attempt int, kind core.FailureKind) core.Decision {
	if !allowed(p.opts, attempt, kind) {
		return core.GiveUp()
	}

	d := float64(p.opts.BaseDelay) * math.Pow(p.opts.Multiplier, float64(attempt-1))
	if p.opts.Jitter > 0 {
		// uniform in [d*(1-j), d*(1+j))
		d += d * p.opts.Jitter * (2*p.opts.Rand() - 1)
	}

	return core.Retry(clamp(d, p.opts.MaxDelay))
}

// Fixed retries after a constant delay.
type Fixed struct {
	opts Options
}

var _ core.RetryPolicy = (*Fixed)(nil)

// NewFixed creates a constant-delay policy. Only MaxRetries, BaseDelay and
// NonRetryable are used.
func NewFixed(maxRetries int, delay time.Duration, optFns ...func(o *Options)) *Fixed {
	fns := append([]func(o *Options){func(o *Options) {
		o.MaxRetries = maxRetries
		o.BaseDelay = delay
	}}, optFns...)

	return &Fixed{opts: buildOptions(fns)}
}

// Decide implements core.RetryPolicy.
func (p *Fixed) Decide(attempt int, kind core.FailureKind) core.Decision {
	if !allowed(p.opts, attempt, kind) {
		return core.GiveUp()
	}
	return core.Retry(p.opts.BaseDelay)
}

// None never retries.
var None core.RetryPolicy = core.RetryPolicyFunc(func(int, core.FailureKind) core.Decision {
	return core.GiveUp()
})

func allowed(opts Options, attempt int, kind core.FailureKind) bool {
	if slices.Contains(opts.NonRetryable, kind) {
		return false
	}
	return attempt >= 1 && attempt <= opts.MaxRetries
}

func clamp(d float64, maxDelay time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if maxDelay > 0 && d > float64(maxDelay) {
		return maxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
