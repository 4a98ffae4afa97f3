// Package pipectx carries the logger and call recorder the ToC pipeline
// needs through context.Context.
package pipectx

import (
	"context"
	"log/slog"
)

type loggerKey struct{}
type recorderKey struct{}

// CallRecorder receives a record of every LLM call the pipeline makes,
// tagged with the per-call correlation ID assigned in llmclient. A caller
// may plug in whatever persistence it needs; the pipeline itself never
// depends on a particular sink.
type CallRecorder interface {
	RecordCall(ctx context.Context, requestID, promptKey string, latencyMs int, inputTokens, outputTokens int, success bool, errMsg string)
}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom extracts the logger from context, falling back to
// slog.Default() so callers never need a nil check.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// WithRecorder attaches a CallRecorder to the context.
func WithRecorder(ctx context.Context, r CallRecorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// RecorderFrom extracts the CallRecorder from context, or nil.
func RecorderFrom(ctx context.Context) CallRecorder {
	r, _ := ctx.Value(recorderKey{}).(CallRecorder)
	return r
}
