// Package logging provides a minimal logging interface and adapters for Orchestra.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) with slog-style key/value arguments that the orchestrator,
// registry and agents use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - StructuredLogger with run/component context and orchestration helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	orch := orchestrator.New(reg, func(o *orchestrator.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
