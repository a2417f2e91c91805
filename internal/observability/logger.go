package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// LogFieldRequestID is the field name for request ID.
	LogFieldRequestID = "request_id"
	// LogFieldFile is the field name for the input file being processed.
	LogFieldFile = "file"
	// LogFieldRecord is the field name for the source record identifier.
	LogFieldRecord = "record_id"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldErrorCode is the field name for error code.
	LogFieldErrorCode = "error_code"
)

// RequestContext carries structured logging state for a single request or
// ingestion run.
type RequestContext struct {
	RequestID string
	Scope     string
	StartTime time.Time
	Logger    *slog.Logger
}

// NewRequestContext creates a new request context with a generated request ID.
func NewRequestContext(logger *slog.Logger, scope string) *RequestContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestContext{
		RequestID: uuid.New().String(),
		Scope:     scope,
		StartTime: time.Now(),
		Logger:    logger,
	}
}

func (r *RequestContext) baseAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String(LogFieldRequestID, r.RequestID),
		slog.String("scope", r.Scope),
	}
}

func (r *RequestContext) log(level slog.Level, msg string, attrs ...slog.Attr) {
	combined := append(r.baseAttrs(), attrs...)
	r.Logger.LogAttrs(context.Background(), level, msg, combined...)
}

// Info logs an info message.
func (r *RequestContext) Info(msg string, attrs ...slog.Attr) {
	r.log(slog.LevelInfo, msg, attrs...)
}

// Debug logs a debug message.
func (r *RequestContext) Debug(msg string, attrs ...slog.Attr) {
	r.log(slog.LevelDebug, msg, attrs...)
}

// Warn logs a warning message.
func (r *RequestContext) Warn(msg string, attrs ...slog.Attr) {
	r.log(slog.LevelWarn, msg, attrs...)
}

// Error logs an error message with the error.
func (r *RequestContext) Error(msg string, err error, attrs ...slog.Attr) {
	r.log(slog.LevelError, msg, append(attrs, slog.String("error", err.Error()))...)
}

// Duration returns the elapsed time since the request started.
func (r *RequestContext) Duration() time.Duration {
	return time.Since(r.StartTime)
}
