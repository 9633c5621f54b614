package observability

import (
	"sync"

	"github.com/hupe1980/orchestra/core"
	"github.com/hupe1980/orchestra/logging"
)

// LogHook writes one structured log line per settled invocation, completed
// stage and finished run. Retries are logged at debug level.
type LogHook struct {
	logger *logging.StructuredLogger

	mu    sync.Mutex
	tally map[string]*runTally
}

type runTally struct {
	invocations int
	stageTotal  int
	stageFailed int
}

var _ core.Hook = (*LogHook)(nil)

// NewLogHook creates a LogHook. A nil logger falls back to a JSON logger on stderr.
func NewLogHook(logger *logging.StructuredLogger) *LogHook {
	if logger == nil {
		logger = logging.NewLogger(nil)
	}
	return &LogHook{
		logger: logger.WithComponent("orchestrator"),
		tally:  make(map[string]*runTally),
	}
}

// OnEvent implements core.Hook.
func (h *LogHook) OnEvent(ev core.Event) {
	l := h.logger.WithRun(ev.RunID, ev.RequestID)

	switch ev.Type {
	case core.EventRunStarted:
		h.mu.Lock()
		h.tally[ev.RunID] = &runTally{}
		h.mu.Unlock()
		l.Debug("Run started")

	case core.EventInvocationStarted:
		l.Debug("Invocation started", "role", ev.Role, "key", ev.Key, "attempt", ev.Attempt)

	case core.EventInvocationRetried:
		l.Debug("Invocation retried", "role", ev.Role, "key", ev.Key, "attempt", ev.Attempt, "kind", ev.FailureKind, "delay", ev.Delay)

	case core.EventInvocationSucceeded, core.EventInvocationFailed, core.EventInvocationCancelled:
		h.count(ev.RunID, ev.Type != core.EventInvocationSucceeded)
		l.LogInvocation(string(ev.Role), ev.Key, ev.Attempt, ev.Duration, ev.Err)

	case core.EventStageCompleted:
		total, failed := h.resetStage(ev.RunID)
		l.LogStage(ev.Stage, ev.StageName, total, failed, ev.Duration)

	case core.EventRunCompleted, core.EventRunAborted:
		h.mu.Lock()
		n := 0
		if t, ok := h.tally[ev.RunID]; ok {
			n = t.invocations
		}
		delete(h.tally, ev.RunID)
		h.mu.Unlock()

		l.LogRun(string(ev.State), n, ev.Duration, ev.Err)
	}
}

func (h *LogHook) count(runID string, failed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.tally[runID]
	if !ok {
		return
	}
	t.invocations++
	t.stageTotal++
	if failed {
		t.stageFailed++
	}
}

func (h *LogHook) resetStage(runID string) (total, failed int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.tally[runID]
	if !ok {
		return 0, 0
	}
	total, failed = t.stageTotal, t.stageFailed
	t.stageTotal, t.stageFailed = 0, 0
	return total, failed
}
