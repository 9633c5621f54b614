// Package synth combines the per-invocation results of a run into the final
// response.
//
// The default Synthesizer collects every successful value by result key,
// checks that all required keys succeeded, merges the values with a
// caller-supplied MergeFunc and finally runs an optional quality check over
// the merged value. A missing required result yields an IncompleteResult
// failure; a rejected value yields a QualityRejected failure. Synthesis is
// never retried here; callers may resubmit the plan.
package synth
