// Package core provides the foundational domain types and contracts used by
// Orchestra. It defines:
//
//   - Agents (the capability contract every unit of work implements)
//   - Plans (ordered stages of agent invocations)
//   - Results and the failure taxonomy shared by all packages
//   - ExecutionContext / ContextView (run-scoped shared results)
//   - Retry policy and observability hook contracts
//
// Implementation concerns (scheduling, retry strategies, synthesis,
// persistence) live in their own packages; core only exposes small types and
// interfaces so they can be composed without cyclic dependencies.
package core
