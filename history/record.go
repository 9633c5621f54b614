package history

import (
	"errors"
	"slices"
	"sort"
	"time"

	"github.com/hupe1980/orchestra/core"
)

// ErrNotFound is returned by Store.Get for unknown run ids.
var ErrNotFound = errors.New("run not found")

// InvocationRecord summarizes the settled result of one invocation.
type InvocationRecord struct {
	Key         string           `json:"key"`
	Role        core.Role        `json:"role"`
	Status      core.Status      `json:"status"`
	Attempts    int              `json:"attempts"`
	FailureKind core.FailureKind `json:"failure_kind,omitempty"`
	Message     string           `json:"message,omitempty"`
	Duration    time.Duration    `json:"duration"`
}

// Record summarizes a finished run.
type Record struct {
	RunID       string             `json:"run_id"`
	RequestID   string             `json:"request_id"`
	State       core.RunState      `json:"state"`
	StartedAt   time.Time          `json:"started_at"`
	Duration    time.Duration      `json:"duration"`
	FailureKind core.FailureKind   `json:"failure_kind,omitempty"`
	Error       string             `json:"error,omitempty"`
	Invocations []InvocationRecord `json:"invocations"`
}

// NewRecord builds a Record from a run_completed or run_aborted event.
func NewRecord(ev core.Event, startedAt time.Time) Record {
	rec := Record{
		RunID:       ev.RunID,
		RequestID:   ev.RequestID,
		State:       ev.State,
		StartedAt:   startedAt,
		Duration:    ev.Duration,
		FailureKind: ev.FailureKind,
	}

	if startedAt.IsZero() {
		rec.StartedAt = ev.Time.Add(-ev.Duration)
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}

	keys := make([]string, 0, len(ev.Results))
	for k := range ev.Results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		res := ev.Results[k]
		inv := InvocationRecord{
			Key:      res.Key,
			Role:     res.Role,
			Status:   res.Status,
			Attempts: res.Attempts,
			Duration: res.Duration,
		}
		if res.Failure != nil {
			inv.FailureKind = res.Failure.Kind
			inv.Message = res.Failure.Message
		}
		rec.Invocations = append(rec.Invocations, inv)
	}

	return rec
}

// Succeeded reports whether the run completed.
func (r Record) Succeeded() bool { return r.State == core.RunCompleted }

// Failed returns the number of invocations that did not succeed.
func (r Record) Failed() int {
	n := 0
	for _, inv := range r.Invocations {
		if inv.Status != core.StatusSucceeded {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	r.Invocations = slices.Clone(r.Invocations)
	return r
}
