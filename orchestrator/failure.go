package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/orchestra/core"
)

// FinalResult is the outcome of a completed run.
type FinalResult struct {
	RunID     string                 `json:"run_id"`
	RequestID string                 `json:"request_id"`
	Value     any                    `json:"value"`
	Results   map[string]core.Result `json:"results"`
	Duration  time.Duration          `json:"duration"`
}

// RunFailure is the single structured error returned by Submit when a run
// does not complete. It names the failure kind of the run, every terminal
// invocation failure (role, kind and attempts) and carries the partial
// results recorded before the run stopped.
type RunFailure struct {
	RunID     string
	RequestID string
	Kind      core.FailureKind
	// Stage is the index of the stage during which the run stopped, or -1
	// when it stopped before execution or during synthesis.
	Stage    int
	Failures []*core.Failure
	Results  map[string]core.Result
	Duration time.Duration
	// Err is the failure that triggered the abort.
	Err error
}

// Error implements error.
func (f *RunFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s aborted: %s", f.RunID, f.Kind)
	if f.Err != nil {
		fmt.Fprintf(&b, ": %v", f.Err)
	}
	if len(f.Failures) > 1 {
		parts := make([]string, 0, len(f.Failures))
		for _, fl := range f.Failures {
			parts = append(parts, fmt.Sprintf("%s(%s, %d attempts)", fl.Key, fl.Kind, fl.Attempts))
		}
		fmt.Fprintf(&b, " [failures: %s]", strings.Join(parts, ", "))
	}
	return b.String()
}

// Unwrap returns the triggering failure.
func (f *RunFailure) Unwrap() error { return f.Err }

// Is matches the sentinel of the run's failure kind.
func (f *RunFailure) Is(target error) bool {
	s := f.Kind.Sentinel()
	return s != nil && s == target
}

// Roles returns the roles of all reported failures without duplicates.
func (f *RunFailure) Roles() []core.Role {
	seen := map[core.Role]bool{}
	var roles []core.Role
	for _, fl := range f.Failures {
		if fl.Role == "" || seen[fl.Role] {
			continue
		}
		seen[fl.Role] = true
		roles = append(roles, fl.Role)
	}
	return roles
}
