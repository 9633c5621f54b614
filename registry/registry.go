package registry

import (
	"slices"
	"sync"

	"github.com/hupe1980/orchestra/core"
	"github.com/hupe1980/orchestra/logging"
)

// Options configures a Registry.
type Options struct {
	// Logger receives registration events. Defaults to NoOp.
	Logger logging.Logger
}

// RegisterOptions configures a single Register call.
type RegisterOptions struct {
	// Replace allows overwriting an existing binding.
	Replace bool
}

// WithReplace allows Register to overwrite an existing binding.
func WithReplace() func(o *RegisterOptions) {
	return func(o *RegisterOptions) { o.Replace = true }
}

// Registry maps roles to agents. It is safe for concurrent use; lookups take
// a read lock only, so concurrent Resolve calls never block each other.
type Registry struct {
	agents map[core.Role]core.Agent
	mu     sync.RWMutex
	logger logging.Logger
}

var _ core.Resolver = (*Registry)(nil)

// New creates an empty Registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		agents: make(map[core.Role]core.Agent),
		logger: opts.Logger,
	}
}

// Register binds role to agent. It fails with a DuplicateRole failure when
// the role is already bound, unless WithReplace is given.
func (r *Registry) Register(role core.Role, agent core.Agent, optFns ...func(o *RegisterOptions)) error {
	if role == "" {
		return core.NewFailure(core.KindContractViolation, "role must not be empty")
	}
	if agent == nil {
		return &core.Failure{Kind: core.KindContractViolation, Role: role, Message: "agent must not be nil"}
	}

	var opts RegisterOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[role]; exists {
		if !opts.Replace {
			return &core.Failure{Kind: core.KindDuplicateRole, Role: role, Message: "role already registered"}
		}
		r.logger.Info("Replacing agent binding", "role", role)
	}

	r.agents[role] = agent
	r.logger.Debug("Registered agent", "role", role)

	return nil
}

// MustRegister is like Register but panics on error. Intended for static
// bootstrap code.
func (r *Registry) MustRegister(role core.Role, agent core.Agent, optFns ...func(o *RegisterOptions)) {
	if err := r.Register(role, agent, optFns...); err != nil {
		panic(err)
	}
}

// Resolve returns the agent bound to role, or an UnknownRole failure.
func (r *Registry) Resolve(role core.Role) (core.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[role]
	if !ok {
		return nil, &core.Failure{Kind: core.KindUnknownRole, Role: role, Message: "no agent registered"}
	}

	return a, nil
}

// Unregister removes the binding for role and reports whether it existed.
func (r *Registry) Unregister(role core.Role) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.agents[role]
	delete(r.agents, role)

	return ok
}

// List returns the registered roles in lexical order.
func (r *Registry) List() []core.Role {
	r.mu.RLock()
	roles := make([]core.Role, 0, len(r.agents))
	for role := range r.agents {
		roles = append(roles, role)
	}
	r.mu.RUnlock()

	slices.Sort(roles)

	return roles
}

// Len returns the number of bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
