package engine

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"

	apperrors "github.com/cryptellan/crypto-service/internal/errors"
)

// curveHash returns the digest matched to the curve security level:
// P-256 pairs with SHA-256, P-384 with SHA-384, P-521 with SHA-512.
func curveHash(curve elliptic.Curve) (HashAlgorithm, error) {
	switch curve {
	case elliptic.P256():
		return SHA256, nil
	case elliptic.P384():
		return SHA384, nil
	case elliptic.P521():
		return SHA512, nil
	}
	return "", apperrors.Wrap(apperrors.ErrInvalidInput, "unsupported curve")
}

// SignECDSA signs data with an ECDSA key, producing an ASN.1 DER signature.
// The digest is chosen from the key's curve.
func SignECDSA(priv *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	hash, err := curveHash(priv.Curve)
	if err != nil {
		return nil, err
	}

	digest, err := hash.Sum(data)
	if err != nil {
		return nil, err
	}

	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest)
	if err != nil {
		return nil, fmt.Errorf("ecdsa signing failed: %w", err)
	}
	return sig, nil
}

// VerifyECDSA reports whether sig is a valid ASN.1 ECDSA signature over data.
// A failed verification returns (false, nil).
func VerifyECDSA(pub *ecdsa.PublicKey, data, sig []byte) (bool, error) {
	hash, err := curveHash(pub.Curve)
	if err != nil {
		return false, err
	}

	digest, err := hash.Sum(data)
	if err != nil {
		return false, err
	}

	return ecdsa.VerifyASN1(pub, digest, sig), nil
}
