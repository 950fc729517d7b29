package engine

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	apperrors "github.com/cryptellan/crypto-service/internal/errors"
)

// GenerateSymmetricKey returns size random bytes from the OS CSPRNG.
// Valid sizes are 16 (AES-128) and 32 (AES-256).
func GenerateSymmetricKey(size int) ([]byte, error) {
	if size != 16 && size != 32 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "symmetric key size must be 16 or 32 bytes")
	}
	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// GenerateRSAKey generates an RSA private key of 2048, 3072 or 4096 bits.
func GenerateRSAKey(bits int) (*rsa.PrivateKey, error) {
	switch bits {
	case 2048, 3072, 4096:
	default:
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "rsa key size must be 2048, 3072 or 4096 bits")
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate rsa key: %w", err)
	}
	return priv, nil
}

// GenerateECDSAKey generates an ECDSA private key on the given NIST curve.
func GenerateECDSAKey(curve elliptic.Curve) (*ecdsa.PrivateKey, error) {
	switch curve {
	case elliptic.P256(), elliptic.P384(), elliptic.P521():
	default:
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "unsupported curve")
	}
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ecdsa key: %w", err)
	}
	return priv, nil
}

// MarshalPrivateKey encodes an RSA or ECDSA private key as PKCS#8 DER, the
// canonical form for asymmetric key material at rest.
func MarshalPrivateKey(priv crypto.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return der, nil
}

// ParseRSAPrivateKey decodes PKCS#8 DER into an RSA private key.
func ParseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "malformed private key")
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "not an rsa key")
	}
	return priv, nil
}

// ParseECDSAPrivateKey decodes PKCS#8 DER into an ECDSA private key.
func ParseECDSAPrivateKey(der []byte) (*ecdsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "malformed private key")
	}
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "not an ecdsa key")
	}
	return priv, nil
}

// MarshalPublicKey encodes the public half of a key pair as PKIX DER, the form
// handed to external verifiers.
func MarshalPublicKey(pub crypto.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return der, nil
}
