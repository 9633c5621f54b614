// Package orchestra provides a high-level facade over the agent registry,
// the orchestrator and run history. Most applications interact with this
// package by:
//  1. Creating an Orchestra via New() (optionally overriding defaults)
//  2. Registering one agent per role
//  3. Submitting plans (Submit) and inspecting finished runs (Status, History)
//
// The facade delegates execution to orchestrator.Orchestrator while keeping
// setup concise. All defaults are safe for local development and testing;
// production deployments typically supply a durable history store
// (history.SQLiteStore), observability hooks and a structured logger.
package orchestra

import (
	"context"
	"fmt"

	"github.com/hupe1980/orchestra/core"
	"github.com/hupe1980/orchestra/history"
	"github.com/hupe1980/orchestra/logging"
	"github.com/hupe1980/orchestra/orchestrator"
	"github.com/hupe1980/orchestra/registry"
)

// Options configures the Orchestra instance.
type Options struct {
	// Config is the run-wide orchestrator policy.
	Config orchestrator.Config

	// RetryPolicy overrides the exponential policy derived from Config.
	RetryPolicy core.RetryPolicy

	// Synthesizer builds the final value (defaults to synth.New()).
	Synthesizer orchestrator.Synthesizer

	// History stores a record of every finished run (defaults to an
	// in-memory store). Set DisableHistory to skip recording.
	History        history.Store
	DisableHistory bool

	// Hooks receive orchestrator events in addition to the history recorder.
	Hooks []core.Hook

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Orchestra is the high-level facade aggregating registry, orchestrator and history.
type Orchestra struct {
	registry *registry.Registry
	orch     *orchestrator.Orchestrator
	history  history.Store
}

// Status summarizes the state of an Orchestra instance.
type Status struct {
	TotalRuns  int             `json:"total_runs"`
	ActiveRuns []string        `json:"active_runs"`
	Latest     *history.Record `json:"latest,omitempty"`
	Roles      []core.Role     `json:"roles"`
}

// New creates a new Orchestra instance with optional overrides.
func New(optFns ...func(o *Options)) *Orchestra {
	opts := Options{
		Config:  orchestrator.DefaultConfig,
		History: history.NewInMemoryStore(),
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	reg := registry.New(func(o *registry.Options) { o.Logger = opts.Logger })

	hooks := append([]core.Hook(nil), opts.Hooks...)
	if !opts.DisableHistory && opts.History != nil {
		hooks = append(hooks, history.NewRecorder(opts.History, func(o *history.RecorderOptions) {
			o.Logger = opts.Logger
		}))
	} else {
		opts.History = nil
	}

	orch := orchestrator.New(reg, func(o *orchestrator.Options) {
		o.Config = opts.Config
		o.RetryPolicy = opts.RetryPolicy
		if opts.Synthesizer != nil {
			o.Synthesizer = opts.Synthesizer
		}
		o.Hooks = hooks
		o.Logger = opts.Logger
	})

	return &Orchestra{registry: reg, orch: orch, history: opts.History}
}

// Register binds agent to role.
func (m *Orchestra) Register(role core.Role, agent core.Agent, optFns ...func(o *registry.RegisterOptions)) error {
	return m.registry.Register(role, agent, optFns...)
}

// MustRegister is like Register but panics on error.
func (m *Orchestra) MustRegister(role core.Role, agent core.Agent) {
	m.registry.MustRegister(role, agent)
}

// Roles returns the registered roles in sorted order.
func (m *Orchestra) Roles() []core.Role { return m.registry.List() }

// Registry exposes the underlying agent registry.
func (m *Orchestra) Registry() *registry.Registry { return m.registry }

// Orchestrator exposes the underlying orchestrator.
func (m *Orchestra) Orchestrator() *orchestrator.Orchestrator { return m.orch }

// Submit executes plan. See orchestrator.Orchestrator.Submit.
func (m *Orchestra) Submit(ctx context.Context, plan core.Plan, optFns ...func(c *orchestrator.Config)) (*orchestrator.FinalResult, error) {
	return m.orch.Submit(ctx, plan, optFns...)
}

// Stop cancels an active run.
func (m *Orchestra) Stop(runID string) error { return m.orch.Stop(runID) }

// History returns the run history store, or nil when history is disabled.
func (m *Orchestra) History() history.Store { return m.history }

// Status reports the number of recorded runs, the latest run, the active
// runs and the registered roles.
func (m *Orchestra) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		ActiveRuns: m.orch.ActiveRuns(),
		Roles:      m.registry.List(),
	}

	if m.history == nil {
		return st, nil
	}

	n, err := m.history.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	st.TotalRuns = n

	latest, err := m.history.List(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	if len(latest) > 0 {
		st.Latest = &latest[0]
	}

	return st, nil
}
