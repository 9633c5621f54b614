package core

import "time"

// Status is the lifecycle state of a single invocation.
//
//	pending -> running -> succeeded | failed
//	failed  -> running (retry)
//	any     -> cancelled
//
// A recorded Result is always terminal. Pending and running are only
// observable through invocation events: invocation_started reports running,
// invocation_retried reports pending while the backoff delay elapses.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Result is the settled outcome of one invocation: either a success carrying
// Value, or a failure carrying Failure. Results are immutable once recorded.
type Result struct {
	Key      string        `json:"key"`
	Role     Role          `json:"role"`
	Status   Status        `json:"status"`
	Value    any           `json:"value,omitempty"`
	Failure  *Failure      `json:"failure,omitempty"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

// Succeeded returns a successful result.
func Succeeded(key string, role Role, value any, attempts int, d time.Duration) Result {
	return Result{Key: key, Role: role, Status: StatusSucceeded, Value: value, Attempts: attempts, Duration: d}
}

// Failed returns a terminal failed result. The failure is annotated with the
// key, role and attempt count.
func Failed(key string, role Role, f *Failure, attempts int, d time.Duration) Result {
	f.Key, f.Role, f.Attempts = key, role, attempts
	return Result{Key: key, Role: role, Status: StatusFailed, Failure: f, Attempts: attempts, Duration: d}
}

// Cancelled returns a cancelled result.
func Cancelled(key string, role Role, f *Failure, attempts int, d time.Duration) Result {
	r := Failed(key, role, f, attempts, d)
	r.Status = StatusCancelled
	return r
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool { return r.Status == StatusSucceeded }

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}
