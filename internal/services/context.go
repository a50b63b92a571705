package services

import "context"

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	recordingKey contextKey = "recording"
	passKey      contextKey = "pass"
)

// WithRunID annotates context with the analysis run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the analysis run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRecording annotates context with the recording being analysed.
func WithRecording(ctx context.Context, recording string) context.Context {
	if recording == "" {
		return ctx
	}
	return context.WithValue(ctx, recordingKey, recording)
}

// RecordingFromContext returns the recording path if present.
func RecordingFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(recordingKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithPass annotates context with the refinement pass name.
func WithPass(ctx context.Context, pass string) context.Context {
	if pass == "" {
		return ctx
	}
	return context.WithValue(ctx, passKey, pass)
}

// PassFromContext returns the pass name if present.
func PassFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(passKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
