package engine

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	apperrors "github.com/cryptellan/crypto-service/internal/errors"
)

// OAEPMaxPlaintext returns the largest plaintext RSA-OAEP can encrypt for the
// given modulus size: k - 2*hLen - 2 with SHA-256.
func OAEPMaxPlaintext(pub *rsa.PublicKey) int {
	return pub.Size() - 2*sha256.Size - 2
}

// EncryptOAEP encrypts plaintext with RSA-OAEP using SHA-256.
//
// The plaintext size bound is validated before any cryptographic call so
// oversized input fails fast with a size-limit error instead of an opaque
// library error. Payloads over the bound belong in HybridEncrypt.
func EncryptOAEP(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	if max := OAEPMaxPlaintext(pub); len(plaintext) > max {
		return nil, apperrors.Wrap(
			apperrors.ErrSizeLimitExceeded,
			fmt.Sprintf("plaintext exceeds %d bytes for this key", max),
		)
	}

	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("oaep encryption failed: %w", err)
	}
	return ciphertext, nil
}

// DecryptOAEP decrypts RSA-OAEP ciphertext. Every decryption failure maps to
// the generic integrity error; OAEP padding oracles thrive on detailed errors.
func DecryptOAEP(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		return nil, apperrors.ErrIntegrity
	}
	return plaintext, nil
}

// SignPSS signs data with RSA-PSS using the selected digest and a salt length
// equal to the digest size.
func SignPSS(priv *rsa.PrivateKey, data []byte, hash HashAlgorithm) ([]byte, error) {
	cryptoHash, err := hash.CryptoHash()
	if err != nil {
		return nil, err
	}

	digest, err := hash.Sum(data)
	if err != nil {
		return nil, err
	}

	opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: cryptoHash}
	sig, err := rsa.SignPSS(rand.Reader, priv, cryptoHash, digest, opts)
	if err != nil {
		return nil, fmt.Errorf("pss signing failed: %w", err)
	}
	return sig, nil
}

// VerifyPSS reports whether sig is a valid RSA-PSS signature over data. A
// failed verification returns (false, nil); errors are reserved for malformed
// inputs such as an unsupported digest.
func VerifyPSS(pub *rsa.PublicKey, data, sig []byte, hash HashAlgorithm) (bool, error) {
	cryptoHash, err := hash.CryptoHash()
	if err != nil {
		return false, err
	}

	digest, err := hash.Sum(data)
	if err != nil {
		return false, err
	}

	opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: cryptoHash}
	if err := rsa.VerifyPSS(pub, cryptoHash, digest, sig, opts); err != nil {
		return false, nil
	}
	return true, nil
}
