package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/orchestra/core"
	internalutil "github.com/hupe1980/orchestra/internal/util"
	"github.com/hupe1980/orchestra/retry"
)

// PlanFile is the YAML representation of a plan:
//
//	name: market-report
//	stages:
//	  - name: gather
//	    invocations:
//	      - role: research
//	        input: "Research {{.topic}}"
//	      - role: research
//	        key: competitors
//	        input: "Competitors of {{.topic}}"
//	        timeout: 30s
//	        max_retries: 1
//	  - invocations:
//	      - role: analysis
type PlanFile struct {
	Name   string      `yaml:"name"`
	Stages []StageFile `yaml:"stages"`
}

// StageFile is one stage of a PlanFile.
type StageFile struct {
	Name        string           `yaml:"name"`
	Invocations []InvocationFile `yaml:"invocations"`
}

// InvocationFile is one invocation of a StageFile. String inputs are
// rendered as templates over the variables passed to Plan.
type InvocationFile struct {
	Role       string        `yaml:"role"`
	Key        string        `yaml:"key"`
	Input      any           `yaml:"input"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries *int          `yaml:"max_retries"`
}

// LoadPlan reads and decodes a plan file.
func LoadPlan(path string) (*PlanFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes a YAML plan document. Unknown fields are rejected.
func ParsePlan(data []byte) (*PlanFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var pf PlanFile
	if err := dec.Decode(&pf); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &pf, nil
}

// Roles returns the distinct roles referenced by the plan in order of appearance.
func (pf *PlanFile) Roles() []core.Role {
	seen := map[string]bool{}
	var roles []core.Role
	for _, s := range pf.Stages {
		for _, inv := range s.Invocations {
			if !seen[inv.Role] {
				seen[inv.Role] = true
				roles = append(roles, core.Role(inv.Role))
			}
		}
	}
	return roles
}

// Plan converts the file into a validated core.Plan. vars are the template
// data for string inputs. base parameterizes per-invocation retry budgets.
func (pf *PlanFile) Plan(vars map[string]any, base retry.Options) (core.Plan, error) {
	var plan core.Plan

	for i, s := range pf.Stages {
		stage := core.Stage{Name: s.Name}

		for _, inv := range s.Invocations {
			input := inv.Input
			if text, ok := input.(string); ok {
				rendered, err := internalutil.RenderTemplate(text, vars)
				if err != nil {
					return core.Plan{}, fmt.Errorf("stage %d role %s: %w", i, inv.Role, err)
				}
				input = rendered
			}

			ci := core.Invoke(core.Role(inv.Role), input).WithKey(inv.Key)
			if inv.Timeout > 0 {
				ci = ci.WithTimeout(inv.Timeout)
			}
			if inv.MaxRetries != nil {
				maxRetries := *inv.MaxRetries
				ci = ci.WithRetry(retry.NewExponential(func(o *retry.Options) {
					*o = base
					o.MaxRetries = maxRetries
				}))
			}

			stage.Invocations = append(stage.Invocations, ci)
		}

		plan.Stages = append(plan.Stages, stage)
	}

	if err := plan.Validate(); err != nil {
		return core.Plan{}, err
	}

	return plan, nil
}

// RetryOptions returns the retry options matching the orchestrator section.
func (c *Config) RetryOptions() retry.Options {
	opts := retry.DefaultOptions
	opts.MaxRetries = c.Orchestrator.MaxRetries
	opts.BaseDelay = c.Orchestrator.BaseDelay
	opts.MaxDelay = c.Orchestrator.MaxDelay
	opts.Jitter = c.Orchestrator.Jitter
	return opts
}
