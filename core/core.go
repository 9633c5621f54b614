package core

import (
	"context"
	"maps"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	metadataKey
)

// WithRequestID attaches a caller-supplied request id to ctx. The
// orchestrator copies it into the ExecutionContext of the run.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// WithMetadata attaches run-scoped metadata to ctx. Later calls merge into
// (and override keys of) earlier ones.
func WithMetadata(ctx context.Context, md map[string]any) context.Context {
	merged := map[string]any{}
	if prev, ok := ctx.Value(metadataKey).(map[string]any); ok {
		maps.Copy(merged, prev)
	}
	maps.Copy(merged, md)
	return context.WithValue(ctx, metadataKey, merged)
}

// MetadataFromContext returns a copy of the metadata stored by WithMetadata.
func MetadataFromContext(ctx context.Context) map[string]any {
	md, _ := ctx.Value(metadataKey).(map[string]any)
	return maps.Clone(md)
}
