package logging

import (
	"context"
	"log/slog"
	"time"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Frame tags a frame number with the standard key.
func Frame(n int) Attr { return slog.Int(FieldFrame, n) }

// MarkType tags a mark type with the standard key. Anything implementing
// fmt.Stringer works; marks.Type does.
func MarkType(t interface{ String() string }) Attr { return slog.String(FieldMarkType, t.String()) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func toArgs(attrs []Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// FieldImpact is the standardized key for user-facing consequence of a warning.
const FieldImpact = "impact"

// withDefaults appends key=value for every key missing from attrs.
func withDefaults(attrs []Attr, defaults ...Attr) []Attr {
	for _, d := range defaults {
		found := false
		for _, a := range attrs {
			if a.Key == d.Key {
				found = true
				break
			}
		}
		if !found {
			attrs = append(attrs, d)
		}
	}
	return attrs
}

// WarnWithContext logs a degraded but non-fatal condition. event_type,
// error_hint and impact are always present; impact defaults to keeping the
// marks of the previous pass.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, "check logs for details"),
		String(FieldImpact, "marks kept from the previous pass"),
	)
	logger.Warn(msg, toArgs(attrs)...)
}

// ErrorWithContext logs a failure with event_type and error_hint present.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs,
		String(FieldEventType, eventType),
		String(FieldErrorHint, "check logs for details"),
	)
	logger.Error(msg, toArgs(attrs)...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }

// DecisionAttrs builds the decision_type, decision_result and
// decision_reason attributes of a heuristic decision.
func DecisionAttrs(decisionType, result, reason string) []Attr {
	return []Attr{
		String(FieldDecisionType, decisionType),
		String("decision_result", result),
		String("decision_reason", reason),
	}
}

// Decision logs one heuristic decision at info level.
func Decision(logger *slog.Logger, msg, decisionType, result, reason string, attrs ...Attr) {
	if logger == nil {
		return
	}
	all := append(DecisionAttrs(decisionType, result, reason), attrs...)
	logger.Info(msg, toArgs(all)...)
}
