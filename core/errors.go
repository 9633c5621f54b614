package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies why an invocation, a synthesis step or a whole run failed.
type FailureKind string

const (
	// KindUnknownRole is reported when no agent is registered for a role.
	KindUnknownRole FailureKind = "unknown_role"
	// KindDuplicateRole is reported when a role is registered twice.
	KindDuplicateRole FailureKind = "duplicate_role"
	// KindTimeout is reported when a single attempt exceeded its own timeout.
	KindTimeout FailureKind = "timeout"
	// KindRunTimeout is reported when the whole run exceeded its deadline.
	KindRunTimeout FailureKind = "run_timeout"
	// KindContractViolation is reported for malformed input or output.
	KindContractViolation FailureKind = "contract_violation"
	// KindCancelled is reported when work was cancelled cooperatively.
	KindCancelled FailureKind = "cancelled"
	// KindIncompleteResult is reported when a required role has no usable result.
	KindIncompleteResult FailureKind = "incomplete_result"
	// KindQualityRejected is reported when the synthesized value fails the quality check.
	KindQualityRejected FailureKind = "quality_rejected"
	// KindAgentError is a generic, transient error reported by an agent.
	KindAgentError FailureKind = "agent_error"
	// KindPanic is reported when an agent panicked.
	KindPanic FailureKind = "panic"
	// KindInvalidPlan is reported when a plan is structurally unusable.
	KindInvalidPlan FailureKind = "invalid_plan"
	// KindInvalidConfig is reported when a run is submitted with an invalid configuration.
	KindInvalidConfig FailureKind = "invalid_config"
)

// Sentinel errors, one per FailureKind. A *Failure matches the sentinel of
// its kind with errors.Is.
var (
	ErrUnknownRole       = errors.New("unknown role")
	ErrDuplicateRole     = errors.New("duplicate role")
	ErrTimeout           = errors.New("invocation timeout")
	ErrRunTimeout        = errors.New("run timeout")
	ErrContractViolation = errors.New("contract violation")
	ErrCancelled         = errors.New("cancelled")
	ErrIncompleteResult  = errors.New("incomplete result")
	ErrQualityRejected   = errors.New("quality rejected")
	ErrAgent             = errors.New("agent error")
	ErrPanic             = errors.New("agent panic")
	ErrInvalidPlan       = errors.New("invalid plan")
	ErrInvalidConfig     = errors.New("invalid config")
)

var kindSentinels = map[FailureKind]error{
	KindUnknownRole:       ErrUnknownRole,
	KindDuplicateRole:     ErrDuplicateRole,
	KindTimeout:           ErrTimeout,
	KindRunTimeout:        ErrRunTimeout,
	KindContractViolation: ErrContractViolation,
	KindCancelled:         ErrCancelled,
	KindIncompleteResult:  ErrIncompleteResult,
	KindQualityRejected:   ErrQualityRejected,
	KindAgentError:        ErrAgent,
	KindPanic:             ErrPanic,
	KindInvalidPlan:       ErrInvalidPlan,
	KindInvalidConfig:     ErrInvalidConfig,
}

// Sentinel returns the sentinel error for a kind (nil for unknown kinds).
func (k FailureKind) Sentinel() error { return kindSentinels[k] }

// Failure is the structured error used across Orchestra. It names the
// failing role and result key, the failure kind and the number of attempts
// consumed. Err holds the underlying agent error, if any.
type Failure struct {
	Kind     FailureKind `json:"kind"`
	Role     Role        `json:"role,omitempty"`
	Key      string      `json:"key,omitempty"`
	Message  string      `json:"message,omitempty"`
	Attempts int         `json:"attempts"`
	Err      error       `json:"-"`
}

// NewFailure creates a Failure of the given kind with a formatted message.
func NewFailure(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Error implements error.
func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(string(f.Kind))
	if f.Role != "" {
		fmt.Fprintf(&b, " role=%s", f.Role)
	}
	if f.Key != "" && f.Key != string(f.Role) {
		fmt.Fprintf(&b, " key=%s", f.Key)
	}
	if f.Attempts > 0 {
		fmt.Fprintf(&b, " attempts=%d", f.Attempts)
	}
	switch {
	case f.Message != "":
		b.WriteString(": ")
		b.WriteString(f.Message)
	case f.Err != nil:
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error { return f.Err }

// Is reports whether target is the sentinel of this failure's kind.
func (f *Failure) Is(target error) bool {
	s := f.Kind.Sentinel()
	return s != nil && s == target
}

// Classify maps an arbitrary error returned by an agent to a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}

	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}

	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindAgentError
	}
}

// AsFailure converts err into a fresh *Failure. When err already wraps a
// *Failure, a copy of it is returned so callers may annotate it freely.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		c := *f
		if c.Err == nil && err != error(f) {
			c.Err = err
		}
		return &c
	}

	return &Failure{Kind: Classify(err), Message: err.Error(), Err: err}
}
