// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

// KeyResponse represents key metadata in API responses. Key material is never
// part of any response.
type KeyResponse struct {
	ID                string     `json:"id"`
	Algorithm         string     `json:"algorithm"`
	Type              string     `json:"type"`
	State             string     `json:"state"`
	CreatedAt         time.Time  `json:"created_at"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	RotatedAt         *time.Time `json:"rotated_at,omitempty"`
	PreviousVersion   string     `json:"previous_version,omitempty"`
	OwnerService      string     `json:"owner_service,omitempty"`
	AllowedOperations []string   `json:"allowed_operations,omitempty"`
	UsageCount        uint64     `json:"usage_count"`
}

// MapKeyToResponse converts domain key metadata to an API response.
func MapKeyToResponse(meta *keysDomain.KeyMetadata) KeyResponse {
	response := KeyResponse{
		ID:           meta.ID.String(),
		Algorithm:    string(meta.Algorithm),
		Type:         string(meta.Type),
		State:        string(meta.State),
		CreatedAt:    meta.CreatedAt,
		RotatedAt:    meta.RotatedAt,
		OwnerService: meta.OwnerService,
		UsageCount:   meta.UsageCount,
	}

	if !meta.ExpiresAt.IsZero() {
		expiresAt := meta.ExpiresAt
		response.ExpiresAt = &expiresAt
	}

	if meta.PreviousVersion != nil {
		response.PreviousVersion = meta.PreviousVersion.String()
	}

	for _, op := range meta.AllowedOperations {
		response.AllowedOperations = append(response.AllowedOperations, string(op))
	}

	return response
}

// ListKeysResponse wraps a list of keys for API responses.
type ListKeysResponse struct {
	Keys []KeyResponse `json:"keys"`
}

// MapKeysToListResponse converts a slice of domain key metadata to a list response.
func MapKeysToListResponse(metas []*keysDomain.KeyMetadata) ListKeysResponse {
	response := ListKeysResponse{Keys: []KeyResponse{}}
	for _, meta := range metas {
		response.Keys = append(response.Keys, MapKeyToResponse(meta))
	}
	return response
}
