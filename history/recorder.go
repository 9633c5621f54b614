package history

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/orchestra/core"
	"github.com/hupe1980/orchestra/logging"
)

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	// Logger receives persistence errors. Defaults to NoOp.
	Logger logging.Logger
	// Timeout bounds a single Save call. Defaults to 5s.
	Timeout time.Duration
}

// Recorder is a core.Hook that saves a Record to a Store whenever a run
// completes or aborts. Saving happens synchronously on the goroutine that
// finishes the run, so the record is visible once Submit returns.
type Recorder struct {
	store   Store
	logger  logging.Logger
	timeout time.Duration

	mu      sync.Mutex
	started map[string]time.Time
}

var _ core.Hook = (*Recorder)(nil)

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store Store, optFns ...func(o *RecorderOptions)) *Recorder {
	opts := RecorderOptions{
		Logger:  logging.NoOpLogger{},
		Timeout: 5 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Recorder{
		store:   store,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		started: make(map[string]time.Time),
	}
}

// OnEvent implements core.Hook.
func (r *Recorder) OnEvent(ev core.Event) {
	switch {
	case ev.Type == core.EventRunStarted:
		r.mu.Lock()
		r.started[ev.RunID] = ev.Time
		r.mu.Unlock()

	case ev.IsRunEnd():
		r.mu.Lock()
		startedAt := r.started[ev.RunID]
		delete(r.started, ev.RunID)
		r.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.store.Save(ctx, NewRecord(ev, startedAt)); err != nil {
			r.logger.Error("Failed to record run", "run_id", ev.RunID, "error", err)
		}
	}
}
