package synth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/orchestra/core"
)

// MergeFunc combines the successful values of a run, keyed by result key.
type MergeFunc func(values map[string]any) (any, error)

// QualityCheck inspects the merged value. A non-nil error rejects it.
type QualityCheck func(ctx context.Context, value any) error

// Options configures a Synthesizer.
type Options struct {
	// Merge combines successful values. Defaults to MergeMap.
	Merge MergeFunc

	// Required names the results that must have succeeded. A name matches a
	// result key first and otherwise any result produced by a role of that
	// name. When empty, every recorded result not listed in Optional is
	// required.
	Required []string

	// Optional names results whose failure is tolerated.
	Optional []string

	// Quality is run over the merged value before it is returned.
	Quality QualityCheck
}

// Synthesizer is the default result synthesizer.
type Synthesizer struct {
	opts Options
}

// New creates a Synthesizer.
func New(optFns ...func(o *Options)) *Synthesizer {
	opts := Options{
		Merge: MergeMap,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Merge == nil {
		opts.Merge = MergeMap
	}

	return &Synthesizer{opts: opts}
}

// WithRequired marks names as required.
func WithRequired(names ...string) func(o *Options) {
	return func(o *Options) { o.Required = append(o.Required, names...) }
}

// WithOptional marks names as optional.
func WithOptional(names ...string) func(o *Options) {
	return func(o *Options) { o.Optional = append(o.Optional, names...) }
}

// WithMerge sets the merge function.
func WithMerge(fn MergeFunc) func(o *Options) {
	return func(o *Options) { o.Merge = fn }
}

// WithQuality sets the quality check.
func WithQuality(fn QualityCheck) func(o *Options) {
	return func(o *Options) { o.Quality = fn }
}

// Synthesize merges the results visible in view into the final value.
func (s *Synthesizer) Synthesize(ctx context.Context, view core.ContextView) (any, error) {
	if missing := s.missing(view); len(missing) > 0 {
		return nil, missing[0].toFailure(missing)
	}

	merged, err := s.opts.Merge(core.Successes(view))
	if err != nil {
		return nil, &core.Failure{Kind: core.KindIncompleteResult, Message: "merge failed", Err: err}
	}

	if s.opts.Quality != nil {
		if err := s.opts.Quality(ctx, merged); err != nil {
			return nil, rejected(err)
		}
	}

	return merged, nil
}

type gap struct {
	name   string
	result core.Result
	found  bool
}

func (g gap) describe() string {
	if !g.found {
		return g.name + " (no result)"
	}
	if g.result.Failure != nil {
		return fmt.Sprintf("%s (%s)", g.name, g.result.Failure.Kind)
	}
	return fmt.Sprintf("%s (%s)", g.name, g.result.Status)
}

func (g gap) toFailure(all []gap) *core.Failure {
	descs := make([]string, 0, len(all))
	for _, m := range all {
		descs = append(descs, m.describe())
	}

	f := &core.Failure{
		Kind:    core.KindIncompleteResult,
		Key:     g.name,
		Message: "required results missing: " + strings.Join(descs, ", "),
	}
	if g.found {
		f.Role = g.result.Role
		f.Attempts = g.result.Attempts
		f.Err = g.result.Err()
	}
	return f
}

func (s *Synthesizer) missing(view core.ContextView) []gap {
	var gaps []gap

	for _, name := range s.required(view) {
		if r, ok := view.Get(name); ok {
			if !r.OK() {
				gaps = append(gaps, gap{name: name, result: r, found: true})
			}
			continue
		}

		byRole, found := s.lookupRole(view, name)
		if !found {
			gaps = append(gaps, gap{name: name})
			continue
		}
		if !byRole.OK() {
			gaps = append(gaps, gap{name: name, result: byRole, found: true})
		}
	}

	return gaps
}

// lookupRole returns a successful result of role, or the last failed one.
func (s *Synthesizer) lookupRole(view core.ContextView, role string) (core.Result, bool) {
	var (
		last  core.Result
		found bool
	)
	for _, k := range view.Keys() {
		r, _ := view.Get(k)
		if string(r.Role) != role {
			continue
		}
		if r.OK() {
			return r, true
		}
		last, found = r, true
	}
	return last, found
}

func (s *Synthesizer) required(view core.ContextView) []string {
	if len(s.opts.Required) > 0 {
		return s.opts.Required
	}

	var names []string
	for _, k := range view.Keys() {
		r, _ := view.Get(k)
		if slices.Contains(s.opts.Optional, k) || slices.Contains(s.opts.Optional, string(r.Role)) {
			continue
		}
		names = append(names, k)
	}
	return names
}

func rejected(err error) error {
	var f *core.Failure
	if errors.As(err, &f) && f.Kind == core.KindQualityRejected {
		return err
	}
	return &core.Failure{Kind: core.KindQualityRejected, Message: err.Error(), Err: err}
}

// MergeMap returns the successful values unchanged as a map keyed by result key.
func MergeMap(values map[string]any) (any, error) {
	return values, nil
}

// MergeJoin returns a MergeFunc that joins the string form of the values in
// keys order using sep. Keys without a successful value are skipped.
func MergeJoin(sep string, keys ...string) MergeFunc {
	return func(values map[string]any) (any, error) {
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if v, ok := values[k]; ok {
				parts = append(parts, fmt.Sprint(v))
			}
		}
		return strings.Join(parts, sep), nil
	}
}
