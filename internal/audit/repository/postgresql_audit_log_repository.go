package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	"github.com/cryptellan/crypto-service/internal/database"
	apperrors "github.com/cryptellan/crypto-service/internal/errors"
)

// PostgreSQLAuditLogRepository implements append-only audit log persistence
// for PostgreSQL databases. There is no update or delete path; the trail only
// grows.
type PostgreSQLAuditLogRepository struct {
	db *sql.DB
}

// NewPostgreSQLAuditLogRepository creates a new PostgreSQLAuditLogRepository.
func NewPostgreSQLAuditLogRepository(db *sql.DB) *PostgreSQLAuditLogRepository {
	return &PostgreSQLAuditLogRepository{db: db}
}

// Create appends an audit entry.
func (p *PostgreSQLAuditLogRepository) Create(ctx context.Context, entry *auditDomain.Entry) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO audit_logs (id, correlation_id, operation, key_id, caller_identity,
			  caller_service, source_ip, success, error_code, metadata, created_at, signature)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.CorrelationID,
		entry.Operation,
		entry.KeyID,
		entry.CallerIdentity,
		entry.CallerService,
		entry.SourceIP,
		entry.Success,
		entry.ErrorCode,
		metadata,
		entry.CreatedAt,
		entry.Signature,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit entry")
	}
	return nil
}

// Query returns audit entries matching the filter, newest first.
func (p *PostgreSQLAuditLogRepository) Query(
	ctx context.Context,
	filter auditDomain.Filter,
) ([]*auditDomain.Entry, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, correlation_id, operation, key_id, caller_identity, caller_service,
			  source_ip, success, error_code, metadata, created_at, signature
			  FROM audit_logs`

	var (
		conditions []string
		args       []any
	)
	addCondition := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.CorrelationID != "" {
		addCondition("correlation_id", filter.CorrelationID)
	}
	if filter.KeyID != "" {
		addCondition("key_id", filter.KeyID)
	}
	if filter.Operation != "" {
		addCondition("operation", filter.Operation)
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query audit entries")
	}
	defer rows.Close() //nolint:errcheck

	return scanEntryRows(rows)
}

// scanEntryRows collects entries from a query result.
func scanEntryRows(rows *sql.Rows) ([]*auditDomain.Entry, error) {
	var result []*auditDomain.Entry

	for rows.Next() {
		var (
			entry auditDomain.Entry
			raw   []byte
		)
		err := rows.Scan(
			&entry.ID,
			&entry.CorrelationID,
			&entry.Operation,
			&entry.KeyID,
			&entry.CallerIdentity,
			&entry.CallerService,
			&entry.SourceIP,
			&entry.Success,
			&entry.ErrorCode,
			&raw,
			&entry.CreatedAt,
			&entry.Signature,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit entry")
		}

		entry.Metadata, err = unmarshalMetadata(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit entry rows")
	}

	return result, nil
}
