package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging.
// Use these constants instead of raw strings.
const (
	// Identity
	FieldJobID     = "job_id"
	FieldPassID    = "pass_id"
	FieldRequestID = "request_id"

	// Jobs
	FieldType       = "type"
	FieldStatus     = "status"
	FieldPlan       = "plan"
	FieldRecurrence = "recurrence"
	FieldDurationS  = "duration_s"

	// Components
	FieldComponent = "component"

	// Errors
	FieldError = "error"

	// Counts
	FieldCount    = "count"
	FieldInserted = "inserted"
	FieldDeleted  = "deleted"
	FieldMatched  = "matched"

	// Storage and network
	FieldDriver  = "driver"
	FieldPath    = "path"
	FieldAddress = "address"

	FieldSymbol = "symbol"
)

type contextKey string

const (
	passIDKey    contextKey = "logger_pass_id"
	requestIDKey contextKey = "logger_request_id"
)

// WithPassID adds a scheduler pass ID to the context for logging
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, passIDKey, passID)
}

// WithRequestID adds an HTTP request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if passID, ok := ctx.Value(passIDKey).(string); ok && passID != "" {
		fields = append(fields, FieldPassID, passID)
	}
	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		fields = append(fields, FieldRequestID, requestID)
	}

	return fields
}

// FromContext returns base with the fields carried by ctx attached.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named child of the global logger.
// This is the preferred way to get a logger for dependency injection.
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
