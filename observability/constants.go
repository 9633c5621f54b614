package observability

const (
	AttrRunID       = "orchestra.run_id"
	AttrRequestID   = "orchestra.request_id"
	AttrStage       = "orchestra.stage"
	AttrStageName   = "orchestra.stage_name"
	AttrRole        = "orchestra.role"
	AttrKey         = "orchestra.key"
	AttrAttempts    = "orchestra.attempts"
	AttrFailureKind = "orchestra.failure_kind"
	AttrRunState    = "orchestra.run_state"
	AttrDelay       = "orchestra.retry_delay_ms"

	SpanRun        = "orchestra.run"
	SpanInvocation = "orchestra.invocation"
	EventRetry     = "retry"

	DefaultNamespace   = "orchestra"
	DefaultServiceName = "orchestra"
)

// DefaultBuckets are the invocation duration histogram buckets in seconds.
var DefaultBuckets = []float64{0.1, 0.5, 1, 2, 5, 10}
