// Package retry provides RetryPolicy implementations for the orchestrator.
//
// Policies are pure decision functions: given the number of attempts made so
// far and the kind of the last failure, they return whether to try again and
// how long to wait first. They never sleep and keep no per-invocation state,
// so a single policy value can be shared by every invocation of every run.
//
// Available policies:
//   - Exponential: exponential backoff with jitter and a delay cap (default)
//   - Fixed: constant delay between attempts
//   - None: never retry
package retry
