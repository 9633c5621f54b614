package core

import (
	"fmt"
	"time"
)

// Invocation is a single plan step: run the agent bound to Role with Input.
//
// Key is the ExecutionContext key the result is stored under; empty means the
// role name. Timeout overrides the orchestrator's per-invocation timeout and
// Retry overrides its retry policy. Invocations are treated as immutable once
// submitted.
type Invocation struct {
	Role    Role
	Key     string
	Input   any
	Timeout time.Duration
	Retry   RetryPolicy
}

// Invoke creates an Invocation for role with the given input.
func Invoke(role Role, input any) Invocation {
	return Invocation{Role: role, Input: input}
}

// WithKey returns a copy of the invocation stored under key.
func (i Invocation) WithKey(key string) Invocation {
	i.Key = key
	return i
}

// WithTimeout returns a copy of the invocation with its own attempt timeout.
func (i Invocation) WithTimeout(d time.Duration) Invocation {
	i.Timeout = d
	return i
}

// WithRetry returns a copy of the invocation with its own retry policy.
func (i Invocation) WithRetry(p RetryPolicy) Invocation {
	i.Retry = p
	return i
}

// ResultKey returns the key the result of this invocation is stored under.
func (i Invocation) ResultKey() string {
	if i.Key != "" {
		return i.Key
	}
	return string(i.Role)
}

// Stage is a set of invocations that may run concurrently.
type Stage struct {
	Name        string
	Invocations []Invocation
}

// NewStage creates an unnamed stage.
func NewStage(invs ...Invocation) Stage { return Stage{Invocations: invs} }

// Plan is an ordered sequence of stages. Stages run one after another; the
// invocations of one stage may run concurrently.
//
// A stage must not depend on a result that no earlier stage produces. This is
// a caller precondition and is not checked by Validate.
type Plan struct {
	Stages []Stage
}

// NewPlan builds a plan from stages.
func NewPlan(stages ...Stage) Plan { return Plan{Stages: stages} }

// Sequence builds a plan with one stage per invocation.
func Sequence(invs ...Invocation) Plan {
	p := Plan{Stages: make([]Stage, 0, len(invs))}
	for _, inv := range invs {
		p.Stages = append(p.Stages, NewStage(inv))
	}
	return p
}

// Parallel builds a single-stage plan.
func Parallel(invs ...Invocation) Plan { return NewPlan(NewStage(invs...)) }

// Then returns a copy of the plan with stage appended.
func (p Plan) Then(invs ...Invocation) Plan {
	stages := make([]Stage, 0, len(p.Stages)+1)
	stages = append(stages, p.Stages...)
	stages = append(stages, NewStage(invs...))
	return Plan{Stages: stages}
}

// Size returns the total number of invocations in the plan.
func (p Plan) Size() int {
	n := 0
	for _, s := range p.Stages {
		n += len(s.Invocations)
	}
	return n
}

// Keys returns the result keys of all invocations in plan order.
func (p Plan) Keys() []string {
	keys := make([]string, 0, p.Size())
	for _, s := range p.Stages {
		for _, inv := range s.Invocations {
			keys = append(keys, inv.ResultKey())
		}
	}
	return keys
}

// Validate checks the structural shape of the plan: at least one stage, no
// empty stage, no empty role and no result key used twice.
func (p Plan) Validate() error {
	if len(p.Stages) == 0 {
		return &Failure{Kind: KindInvalidPlan, Message: "plan has no stages"}
	}

	seen := make(map[string]int, p.Size())
	for si, s := range p.Stages {
		if len(s.Invocations) == 0 {
			return &Failure{Kind: KindInvalidPlan, Message: fmt.Sprintf("stage %d has no invocations", si)}
		}
		for _, inv := range s.Invocations {
			if inv.Role == "" {
				return &Failure{Kind: KindInvalidPlan, Message: fmt.Sprintf("stage %d has an invocation without role", si)}
			}
			key := inv.ResultKey()
			if prev, ok := seen[key]; ok {
				return &Failure{
					Kind:    KindInvalidPlan,
					Role:    inv.Role,
					Key:     key,
					Message: fmt.Sprintf("result key %q used in stage %d and stage %d", key, prev, si),
				}
			}
			seen[key] = si
		}
	}

	return nil
}
