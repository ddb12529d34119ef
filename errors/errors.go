// Package errors provides the error handling system for the slack-gpt bot.
// It defines typed errors for every failure class in the mention pipeline,
// JSON response formatting for the events endpoint, request ID tracking,
// and integrated logging with Uber's zap logger.
//
// The package is used throughout the codebase to keep error handling
// consistent. It offers:
//
//   - Structured JSON error responses with type information
//   - Request ID tracking for error correlation
//   - Integrated logging with zap
//   - Typed errors per failure class (transport, auth, rate limit, ...)
//
// Basic usage:
//
//	// Simple error response at the HTTP boundary
//	errors.Error(w, "Something went wrong", http.StatusBadRequest)
//
//	// Typed error constructed inside the pipeline
//	err := errors.NewRateLimitedError("req_123", 30)
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the package.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// If nil is provided, the function will do nothing to prevent
// accidentally disabling logging.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType represents the categories of errors that can occur while
// relaying a mention to the completion service and posting the reply.
// Each type corresponds to a specific failure scenario and carries an
// appropriate HTTP status code when surfaced at the events endpoint.
type ErrorType string

const (
	// TransportError represents network-level failures talking to Slack
	// or the completion service (timeout, connection reset, DNS)
	TransportError ErrorType = "transport_error"

	// AuthenticationError represents credential rejection by a remote service
	AuthenticationError ErrorType = "authentication_error"

	// InvalidRequestError represents a request the remote service reported
	// as malformed (unsupported model, parameter out of range)
	InvalidRequestError ErrorType = "invalid_request_error"

	// RateLimitedError represents remote throttling
	RateLimitedError ErrorType = "rate_limited_error"

	// UpstreamError represents any other non-success remote response
	UpstreamError ErrorType = "upstream_error"

	// EmptyReplyError represents a completion that succeeded but yielded
	// no usable text to post
	EmptyReplyError ErrorType = "empty_reply_error"

	// ValidationError represents input validation failures at the events endpoint
	ValidationError ErrorType = "validation_error"

	// ConfigError represents configuration-related errors
	ConfigError ErrorType = "config_error"

	// InternalError represents unexpected internal errors
	InternalError ErrorType = "internal_error"
)

// BotError is our custom error type that implements the error interface
// and provides additional context about the failure. It is designed to be
// serialized to JSON at the events endpoint while keeping the underlying
// error available for logging and errors.Is/As chains.
type BotError struct {
	// Type categorizes the error
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific invocation
	RequestID string `json:"request_id"`

	// Details contains additional error context, such as the remote
	// status code and raw body when available
	Details map[string]interface{} `json:"details,omitempty"`

	// err is the underlying error (not exposed in JSON)
	err error
}

// Error implements the error interface. It returns a string that
// combines the error type, message, and underlying error (if any).
func (e *BotError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, implementing the unwrap
// interface for error chains.
func (e *BotError) Unwrap() error {
	return e.err
}

// Is implements error matching for errors.Is, allowing type-based
// error matching while ignoring other fields.
func (e *BotError) Is(target error) bool {
	t, ok := target.(*BotError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError formats and writes a BotError to an http.ResponseWriter.
// It sets the appropriate content type and status code, then writes
// the error as a JSON response.
func WriteError(w http.ResponseWriter, err *BotError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	if encodeErr := json.NewEncoder(w).Encode(err); encodeErr != nil {
		DefaultLogger.Error("failed to encode error response", zap.Error(encodeErr))
	}
}

// Error is a drop-in replacement for http.Error that creates and writes
// a BotError with the InternalError type. It automatically includes
// the request ID from the response headers if available.
func Error(w http.ResponseWriter, message string, code int) {
	requestID := w.Header().Get("X-Request-ID")
	err := &BotError{
		Type:      InternalError,
		Message:   message,
		Code:      code,
		RequestID: requestID,
	}
	WriteError(w, err)
}

// ErrorWithType is like Error but allows specifying the error type.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	requestID := w.Header().Get("X-Request-ID")
	err := &BotError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
	}
	WriteError(w, err)
}
