// Package observability provides core.Hook implementations that export
// orchestrator events to Prometheus, OpenTelemetry and structured logs.
//
// Hooks are plain event consumers: they never influence a run. Combine them
// with core.Hooks and pass them through orchestrator.Options.Hooks:
//
//	metrics := observability.NewMetrics()
//	tracer := observability.NewTracer(tp)
//
//	orch := orchestrator.New(reg, func(o *orchestrator.Options) {
//	    o.Hooks = []core.Hook{metrics, tracer, observability.NewLogHook(logger)}
//	})
//
//	http.Handle("/metrics", metrics.Handler())
package observability
