// Package usecase implements the key lifecycle business logic: generation,
// rotation, controlled access to plaintext material, and destruction.
package usecase

import (
	"context"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

// KeyRepository defines the interface for wrapped key persistence operations.
type KeyRepository interface {
	Store(ctx context.Context, key *keysDomain.EncryptedKey) error
	Get(ctx context.Context, id keysDomain.KeyID) (*keysDomain.EncryptedKey, error)
	UpdateMetadata(ctx context.Context, meta *keysDomain.KeyMetadata) error
	IncrementUsage(ctx context.Context, id keysDomain.KeyID) error
	Destroy(ctx context.Context, id keysDomain.KeyID) error
	Remove(ctx context.Context, id keysDomain.KeyID) error
	Exists(ctx context.Context, id keysDomain.KeyID) (bool, error)
	ListByNamespace(ctx context.Context, namespace string) ([]*keysDomain.KeyMetadata, error)
	ListByState(ctx context.Context, state keysDomain.KeyState) ([]*keysDomain.KeyMetadata, error)
}

// AuditRecorder records lifecycle audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry *auditDomain.Entry) error
}

// KeyUseCase defines the interface for key lifecycle business logic.
type KeyUseCase interface {
	// Generate creates a new key and returns its identifier. The plaintext
	// material never leaves the use case.
	Generate(ctx context.Context, params keysDomain.GenerationParams) (keysDomain.KeyID, error)

	// Activate moves a PENDING_ACTIVATION key to ACTIVE (dual control approval).
	Activate(ctx context.Context, id keysDomain.KeyID) error

	// Rotate issues an independent successor for an ACTIVE key and deprecates
	// the old one. Returns the successor's identifier.
	Rotate(ctx context.Context, id keysDomain.KeyID) (keysDomain.KeyID, error)

	// Material returns the plaintext key material for the given operation,
	// enforcing lifecycle state and allowed-operation policy.
	//
	// Security Note: Callers MUST zero the returned material after use by
	// calling keysDomain.Zero.
	Material(ctx context.Context, id keysDomain.KeyID, op keysDomain.Operation) ([]byte, *keysDomain.KeyMetadata, error)

	// Metadata returns key metadata without material. Keys pending
	// destruction behave as not found.
	Metadata(ctx context.Context, id keysDomain.KeyID) (*keysDomain.KeyMetadata, error)

	// List returns the metadata of every reachable key in a namespace.
	List(ctx context.Context, namespace string) ([]*keysDomain.KeyMetadata, error)

	// Delete marks a key PENDING_DESTRUCTION and purges its cached material.
	// From this call on the key behaves as not found.
	Delete(ctx context.Context, id keysDomain.KeyID) error

	// PurgeDestroyed finalizes every PENDING_DESTRUCTION key, erasing its
	// stored material. Returns the number of keys purged.
	PurgeDestroyed(ctx context.Context) (int, error)
}
