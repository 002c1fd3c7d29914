package telemetry

import (
	"context"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// logVerbosity is the current log verbosity level
var logVerbosity atomic.Int32

// SetLogVerbosity sets the global log verbosity level
func SetLogVerbosity(verbosity int) {
	logVerbosity.Store(int32(verbosity))
}

// GetLogVerbosity gets the current log verbosity level
func GetLogVerbosity() int {
	return int(logVerbosity.Load())
}

// shouldLogMessage determines if a message should be logged based on verbosity level
func shouldLogMessage(level LogLevel) bool {
	verbosity := GetLogVerbosity()

	switch level {
	case LevelError:
		// Always log errors
		return true
	case LevelWarn:
		return verbosity >= 1
	default:
		return verbosity >= 2
	}
}

// Log logs a message with telemetry context at the given level.
// If err is non-nil, it is recorded in the span and logged. Span events are
// recorded regardless of verbosity; slog output is gated by it.
func Log(ctx context.Context, level LogLevel, msg string, err error, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	shouldLog := shouldLogMessage(level)

	var logAttrs []any
	if shouldLog {
		logAttrs = attrsToLogAttrs(attrs)
		if sc := span.SpanContext(); sc.IsValid() {
			logAttrs = append(logAttrs,
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()),
			)
		}
	}

	switch level {
	case LevelError:
		if span.IsRecording() {
			span.SetStatus(codes.Error, msg)
			if err != nil {
				span.RecordError(err, trace.WithAttributes(attrs...))
			}
		}
		if err != nil {
			logAttrs = append(logAttrs, slog.String("error", err.Error()))
		}
		slog.ErrorContext(ctx, msg, logAttrs...)
	case LevelWarn:
		if span.IsRecording() {
			span.AddEvent(msg, trace.WithAttributes(attrs...))
		}
		if err != nil && shouldLog {
			logAttrs = append(logAttrs, slog.String("error", err.Error()))
		}
		if shouldLog {
			slog.WarnContext(ctx, msg, logAttrs...)
		}
	default:
		if span.IsRecording() {
			span.AddEvent(msg, trace.WithAttributes(attrs...))
		}
		if shouldLog {
			slog.InfoContext(ctx, msg, logAttrs...)
		}
	}
}

// attrsToLogAttrs converts OTel attributes to slog attributes
func attrsToLogAttrs(attrs []attribute.KeyValue) []any {
	logAttrs := make([]any, len(attrs))
	for i, attr := range attrs {
		logAttrs[i] = slog.Any(string(attr.Key), attr.Value.AsInterface())
	}
	return logAttrs
}
