// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"encoding/base64"

	validation "github.com/jellydator/validation"

	encryptionUseCase "github.com/cryptellan/crypto-service/internal/encryption/usecase"
	customValidation "github.com/cryptellan/crypto-service/internal/validation"
)

// EncryptRequest contains the parameters for encrypting a payload.
type EncryptRequest struct {
	KeyID     string `json:"key_id"`
	Plaintext string `json:"plaintext"` // Base64-encoded plaintext
	AAD       string `json:"aad"`       // Base64-encoded additional authenticated data (optional)
}

// Validate checks if the encrypt request is valid.
func (r *EncryptRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.KeyID,
			validation.Required,
			customValidation.KeyID,
		),
		validation.Field(&r.Plaintext,
			validation.Required,
			customValidation.Base64,
		),
		validation.Field(&r.AAD,
			customValidation.Base64,
		),
	)
}

// DecryptRequest contains the envelope to decrypt. IV, tag and wrapped key
// are present or absent depending on the key's algorithm, exactly as the
// encrypt response returned them.
type DecryptRequest struct {
	KeyID      string `json:"key_id"`
	Ciphertext string `json:"ciphertext"`  // Base64-encoded ciphertext
	IV         string `json:"iv"`          // Base64-encoded IV (optional)
	Tag        string `json:"tag"`         // Base64-encoded authentication tag (optional)
	WrappedKey string `json:"wrapped_key"` // Base64-encoded wrapped ephemeral key (optional)
	AAD        string `json:"aad"`         // Base64-encoded additional authenticated data (optional)
}

// Validate checks if the decrypt request is valid.
func (r *DecryptRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.KeyID,
			validation.Required,
			customValidation.KeyID,
		),
		validation.Field(&r.Ciphertext,
			validation.Required,
			customValidation.Base64,
		),
		validation.Field(&r.IV, customValidation.Base64),
		validation.Field(&r.Tag, customValidation.Base64),
		validation.Field(&r.WrappedKey, customValidation.Base64),
		validation.Field(&r.AAD, customValidation.Base64),
	)
}

// Envelope converts the request fields to a domain envelope. Validate must
// have been called first, so the base64 decodes cannot fail.
func (r *DecryptRequest) Envelope() *encryptionUseCase.Envelope {
	return &encryptionUseCase.Envelope{
		Ciphertext: decodeBase64(r.Ciphertext),
		IV:         decodeBase64(r.IV),
		Tag:        decodeBase64(r.Tag),
		WrappedKey: decodeBase64(r.WrappedKey),
	}
}

// decodeBase64 decodes a validated base64 string, mapping "" to nil.
func decodeBase64(s string) []byte {
	if s == "" {
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return decoded
}
