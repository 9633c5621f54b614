// Package agent contains concrete implementations of the capability contract.
//
// ModelAgent turns a language model into an agent: the invocation input and
// the successful results of earlier stages are rendered into a prompt
// template, the model is called under the invocation context (so per-attempt
// timeouts and cancellation reach the provider SDK) and the completion text
// becomes the result value. Empty completions are reported as contract
// violations through core.OutputValidator.
//
// Instruction is a small union of static text and a dynamic Provider that can
// derive the system prompt from the ContextView.
package agent
