package engine

import (
	"crypto/rsa"
)

// HybridEncrypt encrypts payloads that exceed RSA-OAEP's direct size bound.
//
// A fresh ephemeral AES-256 key encrypts the payload under GCM, then RSA-OAEP
// wraps that key. The ephemeral key is zeroed before return on every path.
func HybridEncrypt(pub *rsa.PublicKey, plaintext, aad []byte) (HybridResult, error) {
	dek, err := GenerateSymmetricKey(32)
	if err != nil {
		return HybridResult{}, err
	}
	defer zero(dek)

	enc, err := EncryptGCM(plaintext, dek, aad)
	if err != nil {
		return HybridResult{}, err
	}

	wrapped, err := EncryptOAEP(pub, dek)
	if err != nil {
		return HybridResult{}, err
	}

	return HybridResult{
		WrappedKey: wrapped,
		Ciphertext: enc.Ciphertext,
		IV:         enc.IV,
		Tag:        enc.Tag,
	}, nil
}

// HybridDecrypt unwraps the ephemeral key with RSA-OAEP and decrypts the
// payload with AES-GCM. The unwrapped key is zeroed before return.
func HybridDecrypt(priv *rsa.PrivateKey, res HybridResult, aad []byte) ([]byte, error) {
	dek, err := DecryptOAEP(priv, res.WrappedKey)
	if err != nil {
		return nil, err
	}
	defer zero(dek)

	return DecryptGCM(res.Ciphertext, dek, res.IV, res.Tag, aad)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
