// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"fmt"
	"time"

	validation "github.com/jellydator/validation"

	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
	customValidation "github.com/cryptellan/crypto-service/internal/validation"
)

// GenerateKeyRequest contains the parameters for generating a new key.
type GenerateKeyRequest struct {
	Namespace         string   `json:"namespace"`
	Algorithm         string   `json:"algorithm"`
	OwnerService      string   `json:"owner_service"`
	AllowedOperations []string `json:"allowed_operations"`
	ValidityPeriod    string   `json:"validity_period"` // Go duration string, e.g. "8760h"
	DualControl       bool     `json:"dual_control"`
}

// Validate checks if the generate key request is valid.
func (r *GenerateKeyRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Namespace,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoWhitespace,
			validation.Length(1, 255),
		),
		validation.Field(&r.Algorithm,
			validation.Required,
			customValidation.Algorithm,
		),
		validation.Field(&r.OwnerService,
			customValidation.NoWhitespace,
			validation.Length(0, 255),
		),
		validation.Field(&r.AllowedOperations,
			validation.Each(validation.By(validateOperation)),
		),
		validation.Field(&r.ValidityPeriod,
			validation.By(validateDuration),
		),
	)
}

// Params converts the request to domain generation parameters. Validate must
// have been called first.
func (r *GenerateKeyRequest) Params() (keysDomain.GenerationParams, error) {
	params := keysDomain.GenerationParams{
		Namespace:    r.Namespace,
		Algorithm:    keysDomain.Algorithm(r.Algorithm),
		OwnerService: r.OwnerService,
		DualControl:  r.DualControl,
	}

	for _, op := range r.AllowedOperations {
		params.AllowedOperations = append(params.AllowedOperations, keysDomain.Operation(op))
	}

	if r.ValidityPeriod != "" {
		period, err := time.ParseDuration(r.ValidityPeriod)
		if err != nil {
			return keysDomain.GenerationParams{}, fmt.Errorf("invalid validity_period: %w", err)
		}
		params.ValidityPeriod = period
	}

	return params, nil
}

// validateOperation validates that a string names a supported key operation.
func validateOperation(value interface{}) error {
	op, ok := value.(string)
	if !ok {
		return validation.NewError("validation_operation_type", "must be a string")
	}

	switch keysDomain.Operation(op) {
	case keysDomain.OpEncrypt, keysDomain.OpDecrypt,
		keysDomain.OpSign, keysDomain.OpVerify,
		keysDomain.OpWrap, keysDomain.OpUnwrap:
		return nil
	}
	return validation.NewError("validation_operation", "must be a supported operation")
}

// validateDuration validates that a string parses as a positive Go duration.
func validateDuration(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_duration_type", "must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}

	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return validation.NewError("validation_duration", "must be a positive duration such as 8760h")
	}
	return nil
}
