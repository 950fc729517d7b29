// Package usecase orchestrates digital signatures: RSA-PSS and ECDSA signing
// and verification under managed keys, with an audit entry per call.
package usecase

import (
	"context"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	"github.com/cryptellan/crypto-service/internal/crypto/engine"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

// KeyMaterialSource resolves plaintext key material with usage enforcement.
// The returned buffer is owned by the caller, who must zero it after use.
type KeyMaterialSource interface {
	Material(ctx context.Context, id keysDomain.KeyID, op keysDomain.Operation) ([]byte, *keysDomain.KeyMetadata, error)
}

// AuditRecorder appends audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry *auditDomain.Entry) error
}

// SignatureUseCase signs data and verifies signatures under managed keys.
type SignatureUseCase interface {
	// Sign produces a signature over data. RSA keys use PSS with the given
	// digest; ECDSA keys pick the digest from their curve and ignore hash.
	Sign(ctx context.Context, id keysDomain.KeyID, data []byte, hash engine.HashAlgorithm) ([]byte, error)

	// Verify reports whether sig is a valid signature over data. A failed
	// verification returns (false, nil); errors are reserved for malformed
	// inputs and key resolution failures.
	Verify(ctx context.Context, id keysDomain.KeyID, data, sig []byte, hash engine.HashAlgorithm) (bool, error)
}
