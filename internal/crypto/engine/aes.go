package engine

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	apperrors "github.com/cryptellan/crypto-service/internal/errors"
)

// EncryptGCM encrypts plaintext using AES-GCM with optional additional
// authenticated data.
//
// The key must be 16 or 32 bytes (AES-128 or AES-256). A unique 12-byte nonce
// is generated from crypto/rand for every call; nonce reuse under the same key
// would be catastrophic for GCM, so no code path accepts a caller-supplied
// nonce. The AAD is authenticated but not encrypted, binding the ciphertext to
// its context. The 16-byte authentication tag is returned separately from the
// ciphertext.
func EncryptGCM(plaintext, key, aad []byte) (EncryptResult, error) {
	aead, err := newGCM(key)
	if err != nil {
		return EncryptResult{}, err
	}

	iv := make([]byte, GCMNonceSize)
	if _, err := rand.Read(iv); err != nil {
		return EncryptResult{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, iv, plaintext, aad)

	// Seal appends the tag; split it off so callers store it explicitly.
	tagStart := len(sealed) - GCMTagSize
	return EncryptResult{
		Ciphertext: sealed[:tagStart],
		IV:         iv,
		Tag:        sealed[tagStart:],
	}, nil
}

// DecryptGCM decrypts ciphertext using AES-GCM with the provided nonce, tag
// and AAD.
//
// The tag check is constant-time inside crypto/cipher. Any authentication
// failure, whether from a flipped ciphertext bit, a wrong nonce, a wrong key
// or mismatched AAD, surfaces as the same generic integrity error.
func DecryptGCM(ciphertext, key, iv, tag, aad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(iv) != GCMNonceSize || len(tag) != GCMTagSize {
		return nil, apperrors.ErrIntegrity
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	// The preallocated dst keeps a zero-length plaintext non-nil.
	plaintext, err := aead.Open(make([]byte, 0, len(ciphertext)), iv, sealed, aad)
	if err != nil {
		return nil, apperrors.ErrIntegrity
	}
	return plaintext, nil
}

// EncryptCBC encrypts plaintext using AES-CBC with PKCS#7 padding and a fresh
// random 16-byte IV. CBC provides no authentication and exists for legacy
// interoperability only; new callers should use EncryptGCM.
func EncryptCBC(plaintext, key []byte) (EncryptResult, error) {
	block, err := newBlock(key)
	if err != nil {
		return EncryptResult{}, err
	}

	iv := make([]byte, CBCBlockSize)
	if _, err := rand.Read(iv); err != nil {
		return EncryptResult{}, fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := padPKCS7(plaintext)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return EncryptResult{Ciphertext: ciphertext, IV: iv}, nil
}

// DecryptCBC decrypts AES-CBC ciphertext and strips PKCS#7 padding. Malformed
// padding and malformed ciphertext lengths report the same generic error.
func DecryptCBC(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}

	if len(iv) != CBCBlockSize || len(ciphertext) == 0 || len(ciphertext)%CBCBlockSize != 0 {
		return nil, apperrors.ErrIntegrity
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := unpadPKCS7(plaintext)
	if err != nil {
		return nil, apperrors.ErrIntegrity
	}
	return unpadded, nil
}

// NewAEAD returns an AES-GCM AEAD for streaming callers that manage their own
// nonce schedule. One-shot callers should use EncryptGCM, which guarantees a
// fresh random nonce per call.
func NewAEAD(key []byte) (cipher.AEAD, error) {
	return newGCM(key)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

func newBlock(key []byte) (cipher.Block, error) {
	if len(key) != 16 && len(key) != 32 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "key must be 16 or 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	return block, nil
}

// padPKCS7 appends PKCS#7 padding; the input always grows by 1..16 bytes.
func padPKCS7(data []byte) []byte {
	padLen := CBCBlockSize - len(data)%CBCBlockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func unpadPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%CBCBlockSize != 0 {
		return nil, apperrors.ErrIntegrity
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > CBCBlockSize || padLen > len(data) {
		return nil, apperrors.ErrIntegrity
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, apperrors.ErrIntegrity
		}
	}
	return data[:len(data)-padLen], nil
}
