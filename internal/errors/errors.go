// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. These errors should be used by use cases
// and mapped to appropriate HTTP status codes by handlers.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g., duplicate key).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSizeLimitExceeded indicates the payload exceeds an algorithm or
	// configuration bound. The check runs before any cryptographic call.
	ErrSizeLimitExceeded = errors.New("size limit exceeded")

	// ErrIntegrity indicates an authenticated decryption failed. The message is
	// deliberately generic: it must not reveal whether the tag, the AAD, or the
	// padding was at fault.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrSignatureInvalid indicates a digital signature did not verify.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrKeyDeprecated indicates the key was rotated out and may no longer be
	// used for encrypt or sign operations.
	ErrKeyDeprecated = errors.New("key deprecated")

	// ErrKeyInvalidState indicates a lifecycle transition was requested from a
	// state that does not permit it.
	ErrKeyInvalidState = errors.New("key invalid state")

	// ErrKMSUnavailable indicates the key encryption provider is unreachable or
	// its circuit breaker is open.
	ErrKMSUnavailable = errors.New("kms unavailable")

	// ErrAuditLogFailed indicates the audit trail write failed. Callers report
	// it out-of-band and never let it mask the original operation result.
	ErrAuditLogFailed = errors.New("audit log failed")

	// ErrInternal indicates an unexpected failure. Full details are logged
	// internally; callers only see a generic message.
	ErrInternal = errors.New("internal error")
)

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Code returns a stable machine-readable code for the sentinel in err's tree.
// Used in API responses and audit entries; unknown errors report INTERNAL.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrSizeLimitExceeded):
		return "SIZE_LIMIT_EXCEEDED"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrIntegrity):
		return "INTEGRITY_FAILURE"
	case errors.Is(err, ErrSignatureInvalid):
		return "SIGNATURE_INVALID"
	case errors.Is(err, ErrKeyDeprecated):
		return "KEY_DEPRECATED"
	case errors.Is(err, ErrKeyInvalidState):
		return "KEY_INVALID_STATE"
	case errors.Is(err, ErrKMSUnavailable):
		return "KMS_UNAVAILABLE"
	case errors.Is(err, ErrAuditLogFailed):
		return "AUDIT_LOG_FAILED"
	default:
		return "INTERNAL"
	}
}
