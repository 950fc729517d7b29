// Package dto provides data transfer objects for HTTP request and response handling.
package dto

// SignResponse contains the signature produced over the submitted data.
type SignResponse struct {
	KeyID     string `json:"key_id"`
	Signature string `json:"signature"` // Base64-encoded signature
}

// VerifyResponse reports the outcome of a signature verification. A clean
// mismatch is a 200 response with valid=false, not an error.
type VerifyResponse struct {
	KeyID string `json:"key_id"`
	Valid bool   `json:"valid"`
}
