package domain

// Algorithm identifies the cryptographic algorithm a key was generated for.
//
// Symmetric algorithms (AES) produce raw key bytes; asymmetric algorithms
// (RSA, ECDSA) produce PKCS#8-encoded private keys. The algorithm is fixed at
// generation time and preserved across rotation.
type Algorithm string

const (
	// AES128GCM is AES-128 in Galois/Counter Mode (16-byte key, AEAD).
	AES128GCM Algorithm = "aes-128-gcm"

	// AES256GCM is AES-256 in Galois/Counter Mode (32-byte key, AEAD).
	// Default choice for new symmetric keys.
	AES256GCM Algorithm = "aes-256-gcm"

	// AES128CBC is AES-128 in CBC mode with PKCS#7 padding.
	// Supported for legacy interoperability only; provides no authentication.
	AES128CBC Algorithm = "aes-128-cbc"

	// AES256CBC is AES-256 in CBC mode with PKCS#7 padding (legacy only).
	AES256CBC Algorithm = "aes-256-cbc"

	// RSA2048, RSA3072 and RSA4096 are RSA key pairs used for OAEP encryption
	// and PSS signatures.
	RSA2048 Algorithm = "rsa-2048"
	RSA3072 Algorithm = "rsa-3072"
	RSA4096 Algorithm = "rsa-4096"

	// ECDSAP256, ECDSAP384 and ECDSAP521 are NIST-curve signing keys. The
	// digest is matched to the curve security level (P-256 uses SHA-256,
	// P-384 uses SHA-384, P-521 uses SHA-512).
	ECDSAP256 Algorithm = "ecdsa-p256"
	ECDSAP384 Algorithm = "ecdsa-p384"
	ECDSAP521 Algorithm = "ecdsa-p521"
)

// Algorithms lists every supported algorithm, used for input validation.
var Algorithms = []Algorithm{
	AES128GCM, AES256GCM, AES128CBC, AES256CBC,
	RSA2048, RSA3072, RSA4096,
	ECDSAP256, ECDSAP384, ECDSAP521,
}

// IsValid reports whether the algorithm is one of the supported values.
func (a Algorithm) IsValid() bool {
	for _, alg := range Algorithms {
		if a == alg {
			return true
		}
	}
	return false
}

// IsSymmetric reports whether the algorithm uses a shared secret key.
func (a Algorithm) IsSymmetric() bool {
	switch a {
	case AES128GCM, AES256GCM, AES128CBC, AES256CBC:
		return true
	}
	return false
}

// IsSigning reports whether the algorithm is usable for digital signatures.
func (a Algorithm) IsSigning() bool {
	switch a {
	case RSA2048, RSA3072, RSA4096, ECDSAP256, ECDSAP384, ECDSAP521:
		return true
	}
	return false
}

// KeySize returns the symmetric key size in bytes, or 0 for asymmetric
// algorithms whose material is a DER-encoded key pair of variable length.
func (a Algorithm) KeySize() int {
	switch a {
	case AES128GCM, AES128CBC:
		return 16
	case AES256GCM, AES256CBC:
		return 32
	}
	return 0
}

// KeyType classifies the key material held by a key record.
type KeyType string

const (
	// Symmetric key material is raw random bytes shared by encrypt and decrypt.
	Symmetric KeyType = "symmetric"

	// AsymmetricPrivate is a PKCS#8 private key (the public half is derivable).
	AsymmetricPrivate KeyType = "asymmetric-private"

	// AsymmetricPublic is a PKIX public key. Stored records always hold the
	// private half; this type appears when exporting public material.
	AsymmetricPublic KeyType = "asymmetric-public"
)

// Operation names a cryptographic capability a key may be used for.
type Operation string

const (
	OpEncrypt Operation = "encrypt"
	OpDecrypt Operation = "decrypt"
	OpSign    Operation = "sign"
	OpVerify  Operation = "verify"
	OpWrap    Operation = "wrap"
	OpUnwrap  Operation = "unwrap"
)

// KeyState is a step in the key lifecycle state machine.
//
// Transitions are monotonic; there are no backward edges:
//
//	PENDING_ACTIVATION  -> ACTIVE | PENDING_DESTRUCTION
//	ACTIVE              -> DEPRECATED | PENDING_DESTRUCTION
//	DEPRECATED          -> PENDING_DESTRUCTION
//	PENDING_DESTRUCTION -> DESTROYED
type KeyState string

const (
	// PendingActivation is the initial state when policy requires dual control
	// before a key becomes usable. Keys generated without that policy start ACTIVE.
	PendingActivation KeyState = "PENDING_ACTIVATION"

	// Active keys serve every operation they are allowed.
	Active KeyState = "ACTIVE"

	// Deprecated keys were rotated out: decrypt and verify remain valid during
	// the grace period, encrypt and sign are refused.
	Deprecated KeyState = "DEPRECATED"

	// PendingDestruction keys are unreachable through the public API and await
	// physical erasure.
	PendingDestruction KeyState = "PENDING_DESTRUCTION"

	// Destroyed is the terminal state; the material is gone.
	Destroyed KeyState = "DESTROYED"
)

// CanTransition reports whether moving from s to next is a legal forward edge.
func (s KeyState) CanTransition(next KeyState) bool {
	switch s {
	case PendingActivation:
		return next == Active || next == PendingDestruction
	case Active:
		return next == Deprecated || next == PendingDestruction
	case Deprecated:
		return next == PendingDestruction
	case PendingDestruction:
		return next == Destroyed
	}
	return false
}

// Reachable reports whether the key is still addressable by callers. Keys in
// PENDING_DESTRUCTION or DESTROYED behave as not found everywhere.
func (s KeyState) Reachable() bool {
	return s == PendingActivation || s == Active || s == Deprecated
}
