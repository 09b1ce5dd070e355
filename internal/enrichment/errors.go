package enrichment

import "errors"

// ErrorCode is the single source of truth for normalized provider errors.
type ErrorCode string

const (
	CodeAuth                ErrorCode = "AUTH"
	CodeRateLimit           ErrorCode = "RATE_LIMIT"
	CodeQuota               ErrorCode = "QUOTA"
	CodeInvalidInput        ErrorCode = "INVALID_INPUT"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	CodeOperationUnsupported ErrorCode = "OPERATION_UNSUPPORTED"
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeInternal            ErrorCode = "INTERNAL"
)

// Error is the normalized error shape returned in place of a raw provider
// error. No provider's raw status code or exception ever crosses this
// boundary; Map* helpers on each provider adapter translate into this set.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Retryable reports whether the dispatcher's retry loop should consume an
// attempt on this error. AUTH, NOT_FOUND, INVALID_INPUT, QUOTA, and
// OPERATION_UNSUPPORTED fail fast by design (§7 propagation policy).
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeRateLimit, CodeProviderUnavailable, CodeTimeout:
		return true
	default:
		return false
	}
}

// NewError constructs a normalized Error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf constructs a normalized Error with details attached.
func NewErrorf(code ErrorCode, message string, details any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// AsNormalized extracts an *Error from err, wrapping unrecognized errors as
// INTERNAL so callers never have to type-switch on raw error values.
func AsNormalized(err error) *Error {
	if err == nil {
		return nil
	}
	var ne *Error
	if errors.As(err, &ne) {
		return ne
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}

// IsRetryable is a free function equivalent of Error.Retryable for errors
// that have not yet been asserted to *Error.
func IsRetryable(err error) bool {
	return AsNormalized(err).Retryable()
}
