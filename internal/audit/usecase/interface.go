// Package usecase implements audit trail recording, querying and signature
// verification.
package usecase

import (
	"context"

	"github.com/google/uuid"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
)

// AuditLogRepository persists audit entries. The contract is append-only:
// there is no update or delete operation.
type AuditLogRepository interface {
	// Create appends an audit entry.
	Create(ctx context.Context, entry *auditDomain.Entry) error

	// Query returns entries matching the filter, newest first.
	Query(ctx context.Context, filter auditDomain.Filter) ([]*auditDomain.Entry, error)
}

// VerificationReport summarizes an audit trail signature sweep.
type VerificationReport struct {
	Checked int
	Invalid []uuid.UUID
}

// AuditUseCase records, queries and verifies audit entries.
type AuditUseCase interface {
	// Record assigns the entry id, timestamp and signature, then appends it.
	// Failures report ErrAuditLogFailed; callers log and continue.
	Record(ctx context.Context, entry *auditDomain.Entry) error

	// Query returns entries matching the filter, newest first.
	Query(ctx context.Context, filter auditDomain.Filter) ([]*auditDomain.Entry, error)

	// Verify recomputes the signature of every entry matching the filter and
	// reports the ids that fail.
	Verify(ctx context.Context, filter auditDomain.Filter) (*VerificationReport, error)

	// Close zeroes the in-memory signing secret.
	Close() error
}
