// Package orchestrator executes plans of agent invocations.
//
// An Orchestrator resolves each invocation's role through a core.Resolver,
// runs stages strictly in order, and runs the invocations of a stage either
// sequentially or concurrently (bounded by Config.MaxConcurrency). Every
// attempt is bounded by the invocation timeout and the run deadline; failed
// attempts are retried according to a core.RetryPolicy.
//
// In strict mode the first terminal invocation failure aborts the run. In
// lenient mode failures are recorded and the Synthesizer decides whether the
// partial results are good enough.
//
// Submit returns either a *FinalResult or a *RunFailure. Lifecycle events are
// delivered to core.Hook implementations; see the observability package for
// Prometheus, OpenTelemetry and log hooks.
package orchestrator
