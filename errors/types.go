package errors

import (
	"net/http"
)

// NewError creates a new BotError with the given parameters.
// It is a general-purpose constructor that allows full control over
// the error's fields. For most cases, you should use one of the
// specialized constructors below.
//
// Example:
//
//	err := NewError(InternalError, "unexpected state", 500, "req_123", nil, innerErr)
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *BotError {
	return &BotError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewTransportError creates a transport error with appropriate defaults.
// Use this for network-level failures on either outbound leg, such as:
//   - Request timeouts
//   - Connection resets
//   - DNS resolution failures
func NewTransportError(requestID, message string, err error) *BotError {
	return &BotError{
		Type:      TransportError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewAuthenticationError creates an authentication error with appropriate
// defaults. Use this when a remote service rejects a credential, such as:
//   - An invalid or revoked OpenAI API key
//   - A revoked Slack bot token
func NewAuthenticationError(requestID, message string, err error) *BotError {
	return &BotError{
		Type:      AuthenticationError,
		Message:   message,
		Code:      http.StatusUnauthorized,
		RequestID: requestID,
		err:       err,
		Details: map[string]interface{}{
			"suggestion": "Please check your authentication credentials",
		},
	}
}

// NewInvalidRequestError creates an invalid request error with appropriate
// defaults. Use this when a remote service reports a malformed request,
// such as an unsupported model or a sampling parameter out of range.
func NewInvalidRequestError(requestID, message string, details map[string]interface{}) *BotError {
	return &BotError{
		Type:      InvalidRequestError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   details,
	}
}

// NewRateLimitedError creates a rate limit error with appropriate defaults.
// Use this when a remote service throttles us.
func NewRateLimitedError(requestID string, retryAfter int) *BotError {
	return &BotError{
		Type:      RateLimitedError,
		Message:   "Rate limit exceeded",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details: map[string]interface{}{
			"retry_after": retryAfter,
		},
	}
}

// NewUpstreamError creates an upstream error with appropriate defaults.
// Use this for any other non-success remote response, such as:
//   - 5xx responses from the completion service
//   - Slack Web API errors that are not auth or throttling
func NewUpstreamError(requestID string, message string, err error) *BotError {
	return &BotError{
		Type:      UpstreamError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewEmptyReplyError creates an empty reply error with appropriate defaults.
// Use this when a completion succeeded but the extracted, trimmed reply
// text is empty, so there is nothing useful to post.
func NewEmptyReplyError(requestID string) *BotError {
	return &BotError{
		Type:      EmptyReplyError,
		Message:   "Completion produced no usable reply text",
		Code:      http.StatusBadGateway,
		RequestID: requestID,
	}
}

// NewValidationError creates a validation error with appropriate defaults.
// Use this for request validation failures at the events endpoint, such as:
//   - A missing or stale Slack signature
//   - An unparseable event body
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *BotError {
	return &BotError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewInternalError creates an internal error with appropriate defaults.
// Use this for unexpected errors that are not covered by other error types:
//   - Panics
//   - Unexpected system failures
func NewInternalError(requestID string, err error) *BotError {
	return &BotError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
