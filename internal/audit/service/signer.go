// Package service implements audit entry signing. Signatures make the trail
// tamper-evident: any stored field that changes after the fact fails
// verification.
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

// Signer signs and verifies audit entries.
type Signer interface {
	// Sign computes the HMAC-SHA256 signature of the entry's canonical form.
	Sign(secret []byte, entry *auditDomain.Entry) ([]byte, error)

	// Verify checks the entry's stored signature.
	// Returns nil if valid, ErrSignatureInvalid otherwise.
	Verify(secret []byte, entry *auditDomain.Entry) error
}

type hmacSigner struct{}

// NewSigner creates an HMAC-based audit entry signer using HKDF-SHA256 for
// key derivation and HMAC-SHA256 for signature generation.
func NewSigner() Signer {
	return &hmacSigner{}
}

// deriveSigningKey uses HKDF-SHA256 to derive a 32-byte signing key from the
// audit secret. The info string is versioned so the derivation can change
// without invalidating old signatures.
func (s *hmacSigner) deriveSigningKey(secret []byte) ([]byte, error) {
	info := []byte("audit-log-signing-v1")
	kdf := hkdf.New(sha256.New, secret, nil, info)

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, signingKey); err != nil {
		return nil, err
	}

	return signingKey, nil
}

// canonicalize converts an entry to its canonical byte representation.
// Variable-length fields are length-prefixed to prevent ambiguity.
func (s *hmacSigner) canonicalize(entry *auditDomain.Entry) ([]byte, error) {
	buf := make([]byte, 0, 1024)

	buf = append(buf, entry.ID[:]...)
	buf = appendLengthPrefixed(buf, []byte(entry.CorrelationID))
	buf = appendLengthPrefixed(buf, []byte(entry.Operation))
	buf = appendLengthPrefixed(buf, []byte(entry.KeyID))
	buf = appendLengthPrefixed(buf, []byte(entry.CallerIdentity))
	buf = appendLengthPrefixed(buf, []byte(entry.CallerService))
	buf = appendLengthPrefixed(buf, []byte(entry.SourceIP))

	if entry.Success {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	buf = appendLengthPrefixed(buf, []byte(entry.ErrorCode))

	if entry.Metadata != nil {
		// JSON with sorted keys gives a deterministic representation.
		metadataBytes, err := json.Marshal(entry.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		buf = appendLengthPrefixed(buf, metadataBytes)
	} else {
		buf = appendLengthPrefixed(buf, nil)
	}

	timeBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(timeBytes, uint64(entry.CreatedAt.UnixNano()))
	buf = append(buf, timeBytes...)

	return buf, nil
}

// appendLengthPrefixed adds a 4-byte big-endian length prefix followed by data.
func appendLengthPrefixed(buf []byte, data []byte) []byte {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	buf = append(buf, length...)
	buf = append(buf, data...)
	return buf
}

// Sign generates the HMAC-SHA256 signature for an audit entry.
func (s *hmacSigner) Sign(secret []byte, entry *auditDomain.Entry) ([]byte, error) {
	signingKey, err := s.deriveSigningKey(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	defer keysDomain.Zero(signingKey)

	canonical, err := s.canonicalize(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize entry: %w", err)
	}

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(canonical)
	return mac.Sum(nil), nil
}

// Verify checks if the audit entry signature is valid.
func (s *hmacSigner) Verify(secret []byte, entry *auditDomain.Entry) error {
	expected, err := s.Sign(secret, entry)
	if err != nil {
		return fmt.Errorf("failed to compute expected signature: %w", err)
	}

	if !hmac.Equal(entry.Signature, expected) {
		return auditDomain.ErrSignatureInvalid
	}

	return nil
}
