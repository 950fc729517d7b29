// Package usecase implements streaming file encryption: bounded-memory
// chunked AES-256-GCM under a per-file data encryption key (DEK) wrapped by a
// managed key.
package usecase

import (
	"context"
	"io"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
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

// FileEncryptionUseCase encrypts and decrypts file streams.
type FileEncryptionUseCase interface {
	// Encrypt reads plaintext from src and writes the encrypted stream to
	// dst. A fresh DEK protects every file; the wrapping key must allow the
	// wrap operation. Cancelling ctx aborts before the next chunk is written.
	Encrypt(ctx context.Context, id keysDomain.KeyID, src io.Reader, dst io.Writer) error

	// Decrypt reads an encrypted stream from src and writes the recovered
	// plaintext to dst. The wrapping key is taken from the stream header.
	// Any integrity failure aborts the whole decryption.
	Decrypt(ctx context.Context, src io.Reader, dst io.Writer) error
}
