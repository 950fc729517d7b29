// Package domain defines the key lifecycle domain models: key identifiers,
// metadata, lifecycle states and the encrypted at-rest representation.
//
// Key material at rest is always wrapped by a key encryption key (KEK) held by
// an external provider. Plaintext material exists only inside scoped buffers
// that are zeroed on release; no type in this package can persist it.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyID uniquely addresses a key. The UUID is fresh per generated key (rotation
// issues a new one so old and new keys stay independently addressable); the
// namespace scopes keys per tenant or service.
type KeyID struct {
	Namespace string
	ID        uuid.UUID
	Version   uint
}

// NewKeyID mints a KeyID with a fresh UUIDv7 in the given namespace.
func NewKeyID(namespace string) KeyID {
	return KeyID{
		Namespace: namespace,
		ID:        uuid.Must(uuid.NewV7()),
		Version:   1,
	}
}

// String renders the canonical "namespace:uuid:version" form.
func (k KeyID) String() string {
	return fmt.Sprintf("%s:%s:%d", k.Namespace, k.ID, k.Version)
}

// IsZero reports whether the KeyID is unset.
func (k KeyID) IsZero() bool {
	return k.ID == uuid.Nil
}

// Equal reports whether two KeyIDs address the same key.
func (k KeyID) Equal(other KeyID) bool {
	return k.Namespace == other.Namespace && k.ID == other.ID && k.Version == other.Version
}

// ParseKeyID parses the canonical "namespace:uuid:version" form.
func ParseKeyID(s string) (KeyID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return KeyID{}, ErrInvalidKeyID
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return KeyID{}, ErrInvalidKeyID
	}

	version, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil || version == 0 {
		return KeyID{}, ErrInvalidKeyID
	}

	if parts[0] == "" {
		return KeyID{}, ErrInvalidKeyID
	}

	return KeyID{Namespace: parts[0], ID: id, Version: uint(version)}, nil
}

// KeyMetadata describes a key without exposing its material. Only the key
// use case mutates it; repositories persist it verbatim.
type KeyMetadata struct {
	ID                KeyID
	Algorithm         Algorithm
	Type              KeyType
	State             KeyState
	CreatedAt         time.Time
	ExpiresAt         time.Time
	RotatedAt         *time.Time
	PreviousVersion   *KeyID // lineage back-reference, never used for lifetime decisions
	OwnerService      string
	AllowedOperations []Operation
	UsageCount        uint64
}

// AllowsOperation reports whether the key was issued with the given capability.
// An empty list means the key allows every operation its algorithm supports.
func (m *KeyMetadata) AllowsOperation(op Operation) bool {
	if len(m.AllowedOperations) == 0 {
		return true
	}
	for _, allowed := range m.AllowedOperations {
		if allowed == op {
			return true
		}
	}
	return false
}

// GraceExpired reports whether a deprecated key's decrypt/verify window has
// elapsed. The window is measured from RotatedAt.
func (m *KeyMetadata) GraceExpired(gracePeriod time.Duration, now time.Time) bool {
	if m.State != Deprecated || m.RotatedAt == nil {
		return false
	}
	return now.Sub(*m.RotatedAt) > gracePeriod
}

// EncryptedKey is the only at-rest representation of a key. The material is
// wrapped by the key encryption provider; EncryptedMaterial is the opaque
// blob the provider returned. Nonce is kept for wrapping schemes that manage
// it separately and stays empty when the provider's blob is self-contained.
type EncryptedKey struct {
	EncryptedMaterial []byte
	Nonce             []byte
	KekID             string // identifier of the wrapping KEK at the provider
	Metadata          KeyMetadata
}

// GenerationParams carries the caller-supplied attributes for a new key.
type GenerationParams struct {
	Namespace         string
	Algorithm         Algorithm
	OwnerService      string
	AllowedOperations []Operation
	ValidityPeriod    time.Duration
	// DualControl forces the key to start in PENDING_ACTIVATION instead of ACTIVE.
	DualControl bool
}
