package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest             = "bad_request"
	ErrCodeNotFoundOrUnauthorized = "not_found_or_unauthorized"
	ErrCodeNotFound               = "not_found"
	ErrCodePersistence            = "persistence_error"
	ErrCodeUnknownType            = "unknown_type"
	ErrCodeInvalidFormat          = "invalid_format"
	ErrCodeChannelUninitialized   = "channel_uninitialized"
	ErrCodeRateLimited            = "rate_limited"
)

var (
	// ErrChannelStopped is returned when submitting to an actor that is no longer running.
	ErrChannelStopped = errors.New("channel stopped")
	// ErrIdentityAlreadySet is returned when a channel is initialized with a different identity.
	ErrIdentityAlreadySet = errors.New("channel identity already set")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// InvalidFormatError is reported for frames that cannot be decoded.
func InvalidFormatError() *CoreError {
	return coreError(ErrCodeInvalidFormat, "invalid message format")
}

// RateLimitedError is reported for frames dropped by the transport limiter.
func RateLimitedError() *CoreError {
	return coreError(ErrCodeRateLimited, "too many messages, slow down")
}
