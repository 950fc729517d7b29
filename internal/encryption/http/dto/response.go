// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"encoding/base64"

	encryptionUseCase "github.com/cryptellan/crypto-service/internal/encryption/usecase"
)

// EncryptResponse contains the envelope produced by an encryption. The
// service does not store ciphertext; the caller must keep every field and
// present them back for decryption.
type EncryptResponse struct {
	KeyID      string `json:"key_id"`
	Ciphertext string `json:"ciphertext"`            // Base64-encoded ciphertext
	IV         string `json:"iv,omitempty"`          // Base64-encoded IV
	Tag        string `json:"tag,omitempty"`         // Base64-encoded authentication tag
	WrappedKey string `json:"wrapped_key,omitempty"` // Base64-encoded wrapped ephemeral key
}

// MapEnvelopeToResponse converts a domain envelope to an API response.
func MapEnvelopeToResponse(keyID string, envelope *encryptionUseCase.Envelope) EncryptResponse {
	return EncryptResponse{
		KeyID:      keyID,
		Ciphertext: base64.StdEncoding.EncodeToString(envelope.Ciphertext),
		IV:         encodeBase64(envelope.IV),
		Tag:        encodeBase64(envelope.Tag),
		WrappedKey: encodeBase64(envelope.WrappedKey),
	}
}

// DecryptResponse contains the recovered plaintext.
// SECURITY: The Plaintext field contains sensitive data and should be transmitted over HTTPS.
type DecryptResponse struct {
	KeyID     string `json:"key_id"`
	Plaintext string `json:"plaintext"` // Base64-encoded plaintext
}

// encodeBase64 encodes bytes to base64, mapping empty slices to "".
func encodeBase64(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}
