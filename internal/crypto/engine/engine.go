// Package engine implements the stateless cryptographic primitives used by the
// service: AES-GCM and AES-CBC symmetric encryption, RSA-OAEP asymmetric
// encryption, RSA-PSS and ECDSA signatures, hybrid encryption and key
// generation.
//
// Every function operates on caller-supplied byte buffers and key material and
// mutates no shared state, so the package is safe for concurrent use. Failures
// caused by tampering are reported through generic errors that carry no detail
// about which check (tag, AAD, padding) failed.
package engine

const (
	// GCMNonceSize is the AES-GCM nonce size in bytes (96 bits).
	GCMNonceSize = 12

	// GCMTagSize is the AES-GCM authentication tag size in bytes (128 bits).
	GCMTagSize = 16

	// CBCBlockSize is the AES block and CBC IV size in bytes.
	CBCBlockSize = 16
)

// EncryptResult carries the output of a symmetric encryption. It is ephemeral:
// the service never persists application ciphertext.
type EncryptResult struct {
	Ciphertext []byte
	IV         []byte
	Tag        []byte // empty for CBC, which provides no authentication
}

// HybridResult carries the output of a hybrid (RSA-wrapped AES) encryption.
// WrappedKey is the ephemeral AES-256 key encrypted under RSA-OAEP.
type HybridResult struct {
	WrappedKey []byte
	Ciphertext []byte
	IV         []byte
	Tag        []byte
}
