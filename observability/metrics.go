package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/orchestra/core"
)

// MetricsOptions configures NewMetrics.
type MetricsOptions struct {
	// Registry receives the collectors. Defaults to a fresh registry so that
	// several orchestrators (and tests) never collide on registration.
	Registry *prometheus.Registry
	// Namespace prefixes every metric name. Defaults to "orchestra".
	Namespace string
	// Buckets of the invocation duration histogram. Defaults to DefaultBuckets.
	Buckets []float64
}

// Metrics is a core.Hook that maintains Prometheus metrics for invocations
// and runs:
//   - <ns>_invocations_total{role}
//   - <ns>_invocation_errors_total{role,kind}
//   - <ns>_invocation_duration_seconds{role}
//   - <ns>_active_invocations{role}
//   - <ns>_invocation_retries_total{role}
//   - <ns>_runs_total{state}
type Metrics struct {
	registry *prometheus.Registry

	invocations *prometheus.CounterVec
	errors      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	active      *prometheus.GaugeVec
	retries     *prometheus.CounterVec
	runs        *prometheus.CounterVec
}

var _ core.Hook = (*Metrics)(nil)

// NewMetrics creates and registers the collectors.
func NewMetrics(optFns ...func(o *MetricsOptions)) *Metrics {
	opts := MetricsOptions{
		Namespace: DefaultNamespace,
		Buckets:   DefaultBuckets,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(opts.Registry)

	return &Metrics{
		registry: opts.Registry,
		invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "invocations_total",
			Help:      "Total number of agent invocations started.",
		}, []string{"role"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "invocation_errors_total",
			Help:      "Total number of invocations that failed or were cancelled, by failure kind.",
		}, []string{"role", "kind"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Duration of settled invocations including retries.",
			Buckets:   opts.Buckets,
		}, []string{"role"}),
		active: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: opts.Namespace,
			Name:      "active_invocations",
			Help:      "Number of invocations currently running.",
		}, []string{"role"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "invocation_retries_total",
			Help:      "Total number of retried attempts.",
		}, []string{"role"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "runs_total",
			Help:      "Total number of finished runs by terminal state.",
		}, []string{"state"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// OnEvent implements core.Hook.
func (m *Metrics) OnEvent(ev core.Event) {
	role := string(ev.Role)

	switch ev.Type {
	case core.EventInvocationStarted:
		if ev.Attempt == 1 {
			m.invocations.WithLabelValues(role).Inc()
			m.active.WithLabelValues(role).Inc()
		}
	case core.EventInvocationRetried:
		m.retries.WithLabelValues(role).Inc()
	case core.EventInvocationSucceeded, core.EventInvocationFailed, core.EventInvocationCancelled:
		// invocations that never started (unknown role, not started) were never counted as active
		if ev.Attempt > 0 {
			m.active.WithLabelValues(role).Dec()
			m.duration.WithLabelValues(role).Observe(ev.Duration.Seconds())
		}
		if ev.Type != core.EventInvocationSucceeded {
			m.errors.WithLabelValues(role, string(ev.FailureKind)).Inc()
		}
	case core.EventRunCompleted, core.EventRunAborted:
		m.runs.WithLabelValues(string(ev.State)).Inc()
	}
}
