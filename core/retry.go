package core

import "time"

// Decision is the outcome of a RetryPolicy: retry after Delay, or give up.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Retry returns a decision to retry after d.
func Retry(d time.Duration) Decision { return Decision{Retry: true, Delay: d} }

// GiveUp returns a decision to stop retrying.
func GiveUp() Decision { return Decision{} }

// RetryPolicy decides whether a failed attempt is retried.
//
// attempt is the number of attempts made so far (1 after the first failure).
// Implementations must be pure with respect to the orchestrator: they must not
// sleep or keep per-invocation state, so one policy can serve many concurrent
// invocations.
type RetryPolicy interface {
	Decide(attempt int, kind FailureKind) Decision
}

// RetryPolicyFunc is a functional adapter for RetryPolicy.
type RetryPolicyFunc func(attempt int, kind FailureKind) Decision

// Decide implements RetryPolicy.
func (f RetryPolicyFunc) Decide(attempt int, kind FailureKind) Decision { return f(attempt, kind) }
