// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	"github.com/cryptellan/crypto-service/internal/crypto/engine"
	customValidation "github.com/cryptellan/crypto-service/internal/validation"
)

// SignRequest contains the parameters for signing data.
type SignRequest struct {
	KeyID         string `json:"key_id"`
	Data          string `json:"data"`           // Base64-encoded data to sign
	HashAlgorithm string `json:"hash_algorithm"` // "sha-256", "sha-384" or "sha-512" (RSA only, default "sha-256")
}

// Validate checks if the sign request is valid.
func (r *SignRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.KeyID,
			validation.Required,
			customValidation.KeyID,
		),
		validation.Field(&r.Data,
			validation.Required,
			customValidation.Base64,
		),
		validation.Field(&r.HashAlgorithm,
			validation.By(validateHashAlgorithm),
		),
	)
}

// VerifyRequest contains the parameters for verifying a signature.
type VerifyRequest struct {
	KeyID         string `json:"key_id"`
	Data          string `json:"data"`      // Base64-encoded signed data
	Signature     string `json:"signature"` // Base64-encoded signature
	HashAlgorithm string `json:"hash_algorithm"`
}

// Validate checks if the verify request is valid.
func (r *VerifyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.KeyID,
			validation.Required,
			customValidation.KeyID,
		),
		validation.Field(&r.Data,
			validation.Required,
			customValidation.Base64,
		),
		validation.Field(&r.Signature,
			validation.Required,
			customValidation.Base64,
		),
		validation.Field(&r.HashAlgorithm,
			validation.By(validateHashAlgorithm),
		),
	)
}

// validateHashAlgorithm validates that a string names a supported digest.
func validateHashAlgorithm(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_hash_algorithm_type", "must be a string")
	}
	if s == "" {
		return nil // Defaults to sha-256 downstream
	}

	switch engine.HashAlgorithm(s) {
	case engine.SHA256, engine.SHA384, engine.SHA512:
		return nil
	}
	return validation.NewError("validation_hash_algorithm", "must be sha-256, sha-384 or sha-512")
}
