// Package history persists a summary of every finished orchestrator run.
//
// A Recorder is a core.Hook that converts run-end events into Records and
// saves them to a Store. Two stores are provided: InMemoryStore for tests and
// short-lived processes, and SQLiteStore (modernc.org/sqlite, no cgo) for the
// CLI and long-running services.
package history
