// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"encoding/base64"
	"time"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	auditUseCase "github.com/cryptellan/crypto-service/internal/audit/usecase"
)

// AuditLogResponse represents an audit log entry in API responses.
type AuditLogResponse struct {
	ID             string            `json:"id"`
	CorrelationID  string            `json:"correlation_id,omitempty"`
	Operation      string            `json:"operation"`
	KeyID          string            `json:"key_id,omitempty"`
	CallerIdentity string            `json:"caller_identity,omitempty"`
	CallerService  string            `json:"caller_service,omitempty"`
	SourceIP       string            `json:"source_ip,omitempty"`
	Success        bool              `json:"success"`
	ErrorCode      string            `json:"error_code,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	Signature      string            `json:"signature"` // Base64-encoded HMAC signature
}

// MapAuditLogToResponse converts a domain audit entry to an API response.
func MapAuditLogToResponse(entry *auditDomain.Entry) AuditLogResponse {
	return AuditLogResponse{
		ID:             entry.ID.String(),
		CorrelationID:  entry.CorrelationID,
		Operation:      entry.Operation,
		KeyID:          entry.KeyID,
		CallerIdentity: entry.CallerIdentity,
		CallerService:  entry.CallerService,
		SourceIP:       entry.SourceIP,
		Success:        entry.Success,
		ErrorCode:      entry.ErrorCode,
		Metadata:       entry.Metadata,
		CreatedAt:      entry.CreatedAt,
		Signature:      base64.StdEncoding.EncodeToString(entry.Signature),
	}
}

// ListAuditLogsResponse represents a paginated list of audit logs in API responses.
type ListAuditLogsResponse struct {
	Data []AuditLogResponse `json:"data"`
}

// MapAuditLogsToListResponse converts a slice of domain audit entries to a list API response.
func MapAuditLogsToListResponse(entries []*auditDomain.Entry) ListAuditLogsResponse {
	responses := make([]AuditLogResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, MapAuditLogToResponse(entry))
	}
	return ListAuditLogsResponse{
		Data: responses,
	}
}

// VerificationReportResponse summarizes an audit trail signature sweep in API responses.
type VerificationReportResponse struct {
	Checked    int      `json:"checked"`
	InvalidIDs []string `json:"invalid_ids"`
}

// MapVerificationReportToResponse converts a domain verification report to an API response.
func MapVerificationReportToResponse(report *auditUseCase.VerificationReport) VerificationReportResponse {
	invalid := make([]string, 0, len(report.Invalid))
	for _, id := range report.Invalid {
		invalid = append(invalid, id.String())
	}
	return VerificationReportResponse{
		Checked:    report.Checked,
		InvalidIDs: invalid,
	}
}
