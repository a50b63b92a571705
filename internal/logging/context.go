package logging

import (
	"context"
	"log/slog"

	"markad/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for analysis run identifiers.
	FieldRunID = "run_id"
	// FieldRecording is the standardized structured logging key for the recording path.
	FieldRecording = "recording"
	// FieldPass is the standardized structured logging key for refinement pass names.
	FieldPass = "pass"
	// FieldFrame is the standardized structured logging key for frame numbers.
	FieldFrame = "frame"
	// FieldMarkType is the standardized structured logging key for mark types (e.g. "start logo").
	FieldMarkType = "mark_type"
	// FieldEventType classifies a log line for filtering (e.g. "move_rejected").
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldDecisionType names the heuristic that produced a decision line.
	FieldDecisionType = "decision_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if rec, ok := services.RecordingFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRecording, rec))
	}
	if pass, ok := services.PassFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPass, pass))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields)...)
}
