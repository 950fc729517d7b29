package engine

import (
	"crypto"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	apperrors "github.com/cryptellan/crypto-service/internal/errors"
)

// HashAlgorithm selects the digest used for signatures and OAEP.
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha-256"
	SHA384 HashAlgorithm = "sha-384"
	SHA512 HashAlgorithm = "sha-512"
)

// New returns a fresh hash.Hash for the algorithm.
func (h HashAlgorithm) New() (hash.Hash, error) {
	switch h {
	case SHA256:
		return sha256.New(), nil
	case SHA384:
		return sha512.New384(), nil
	case SHA512:
		return sha512.New(), nil
	}
	return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "unsupported hash algorithm")
}

// CryptoHash maps the algorithm to the crypto.Hash identifier required by the
// rsa signing functions.
func (h HashAlgorithm) CryptoHash() (crypto.Hash, error) {
	switch h {
	case SHA256:
		return crypto.SHA256, nil
	case SHA384:
		return crypto.SHA384, nil
	case SHA512:
		return crypto.SHA512, nil
	}
	return 0, apperrors.Wrap(apperrors.ErrInvalidInput, "unsupported hash algorithm")
}

// Sum computes the digest of data.
func (h HashAlgorithm) Sum(data []byte) ([]byte, error) {
	hasher, err := h.New()
	if err != nil {
		return nil, err
	}
	hasher.Write(data)
	return hasher.Sum(nil), nil
}
