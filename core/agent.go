package core

import "context"

// Role names a logical capability ("research", "analysis", "execution").
// It is the registry key and, unless an invocation overrides it, the key
// under which results are stored in the ExecutionContext.
type Role string

// String returns the role name.
func (r Role) String() string { return string(r) }

// Agent defines the capability contract every agent must implement.
//
// Invoke receives the invocation input and a read-only view of the results
// produced by earlier stages. The context carries cancellation: agents must
// observe ctx.Done() and return promptly once it is closed. The orchestrator
// cannot interrupt an agent that ignores it.
//
// Implementations report failures by returning an error. A *Failure (or one
// of the kind sentinels such as ErrContractViolation) selects the failure
// kind explicitly; any other error is treated as a transient AgentError.
type Agent interface {
	Invoke(ctx context.Context, input any, view ContextView) (any, error)
}

// AgentFunc is a functional adapter to allow ordinary functions to be used as Agents.
type AgentFunc func(ctx context.Context, input any, view ContextView) (any, error)

// Invoke implements Agent.
func (f AgentFunc) Invoke(ctx context.Context, input any, view ContextView) (any, error) {
	return f(ctx, input, view)
}

// OutputValidator is implemented by agents that can check their own output.
// The orchestrator calls ValidateOutput after every successful attempt; a
// non-nil error turns the attempt into a ContractViolation failure.
type OutputValidator interface {
	ValidateOutput(value any) error
}

// Resolver looks up the agent bound to a role.
type Resolver interface {
	Resolve(role Role) (Agent, error)
}
