// Package usecase orchestrates payload encryption and decryption: it resolves
// key material through the key lifecycle, dispatches to the matching cipher
// and records an audit entry for every call.
package usecase

import (
	"context"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

// Envelope is the ephemeral output of an encryption. The service never
// persists application ciphertext; callers store the envelope themselves and
// present it back for decryption.
type Envelope struct {
	Ciphertext []byte
	IV         []byte // empty for RSA-OAEP
	Tag        []byte // empty for CBC and RSA-OAEP
	// WrappedKey carries the RSA-OAEP wrapped ephemeral AES key for hybrid
	// payloads; empty otherwise.
	WrappedKey []byte
}

// KeyMaterialSource resolves plaintext key material with usage enforcement.
// The returned buffer is owned by the caller, who must zero it after use.
type KeyMaterialSource interface {
	Material(ctx context.Context, id keysDomain.KeyID, op keysDomain.Operation) ([]byte, *keysDomain.KeyMetadata, error)
}

// AuditRecorder appends audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry *auditDomain.Entry) error
}

// EncryptionUseCase encrypts and decrypts payloads under managed keys.
type EncryptionUseCase interface {
	// Encrypt protects plaintext under the key's algorithm. AAD is supported
	// by GCM and hybrid payloads only.
	Encrypt(ctx context.Context, id keysDomain.KeyID, plaintext, aad []byte) (*Envelope, error)

	// Decrypt recovers the plaintext from an envelope. Any tampering with the
	// ciphertext, IV, tag or AAD reports a generic integrity error.
	Decrypt(ctx context.Context, id keysDomain.KeyID, envelope *Envelope, aad []byte) ([]byte, error)
}
