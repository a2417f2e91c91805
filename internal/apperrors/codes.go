package apperrors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific failure class of the ingestion and retrieval paths.
type ErrorCode string

const (
	// ErrCodeMalformedInput indicates a JSON input that cannot be parsed or has an
	// unsupported top-level shape. The whole file is skipped and retried next run.
	ErrCodeMalformedInput ErrorCode = "MALFORMED_INPUT"
	// ErrCodeValidationFailed indicates a single record with missing or invalid fields.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrCodeEmbeddingFailed indicates the embedding service failed or returned a
	// vector of the wrong dimension.
	ErrCodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
	// ErrCodePersistenceFailed indicates a database write failure.
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	// ErrCodeInvalidArgument indicates invalid query parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeServiceUnavailable indicates a backing service is not reachable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Error is a structured error carrying a stable reason code.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error with the given code and message.
func New(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error with the given code wrapping a cause.
func Wrap(cause error, code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// CodeOf extracts the error code from err, or empty if err carries none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// MalformedInput creates a MALFORMED_INPUT error.
func MalformedInput(msg string) *Error {
	return New(ErrCodeMalformedInput, msg)
}

// ValidationFailed creates a VALIDATION_FAILED error.
func ValidationFailed(msg string) *Error {
	return New(ErrCodeValidationFailed, msg)
}

// EmbeddingFailed creates an EMBEDDING_FAILED error wrapping a cause.
func EmbeddingFailed(msg string, cause error) *Error {
	return Wrap(cause, ErrCodeEmbeddingFailed, msg)
}

// PersistenceFailed creates a PERSISTENCE_FAILED error wrapping a cause.
func PersistenceFailed(msg string, cause error) *Error {
	return Wrap(cause, ErrCodePersistenceFailed, msg)
}

// InvalidArgument creates an INVALID_ARGUMENT error.
func InvalidArgument(msg string) *Error {
	return New(ErrCodeInvalidArgument, msg)
}
