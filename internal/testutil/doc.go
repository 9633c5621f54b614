// Package testutil contains scripted fake agents used across tests to
// exercise the orchestrator without real providers: agents that fail a fixed
// number of times, block until cancelled, record the views they observed or
// track how many of them run at the same time. They are not intended for
// production usage.
package testutil
