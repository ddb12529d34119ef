// Package errors provides error response utilities.
package errors

import (
	"errors"
)

// ErrorResponse represents a standardized error response format
// that is returned at the events endpoint when an error occurs.
type ErrorResponse struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// As is a wrapper around errors.As for better error type assertion
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a wrapper around errors.Is for error chain matching
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// TypeOf returns the ErrorType of err when it is (or wraps) a BotError,
// and InternalError otherwise. Used by metrics and logging to label
// failures without unwrapping at every call site.
func TypeOf(err error) ErrorType {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr.Type
	}
	return InternalError
}
