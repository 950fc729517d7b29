package domain

import (
	"github.com/cryptellan/crypto-service/internal/errors"
)

// Key lifecycle error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors
// to provide context for key management failures. All errors are mapped to
// appropriate HTTP status codes by the error handling layer.
var (
	// ErrUnsupportedAlgorithm indicates the requested algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeyID indicates a key identifier could not be parsed.
	ErrInvalidKeyID = errors.Wrap(errors.ErrInvalidInput, "invalid key id")

	// ErrKeyNotFound indicates the key does not exist or is no longer reachable.
	// Keys in PENDING_DESTRUCTION or DESTROYED report not found by contract.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "key not found")

	// ErrKeyAlreadyExists indicates a key with the same identifier already exists.
	ErrKeyAlreadyExists = errors.Wrap(errors.ErrConflict, "key already exists")

	// ErrOperationNotAllowed indicates the key was not issued with the requested
	// capability.
	ErrOperationNotAllowed = errors.Wrap(errors.ErrInvalidInput, "operation not allowed for key")
)
