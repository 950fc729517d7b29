package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	"github.com/cryptellan/crypto-service/internal/database"
	apperrors "github.com/cryptellan/crypto-service/internal/errors"
)

// MySQLAuditLogRepository implements append-only audit log persistence for
// MySQL databases.
type MySQLAuditLogRepository struct {
	db *sql.DB
}

// NewMySQLAuditLogRepository creates a new MySQLAuditLogRepository.
func NewMySQLAuditLogRepository(db *sql.DB) *MySQLAuditLogRepository {
	return &MySQLAuditLogRepository{db: db}
}

// Create appends an audit entry.
func (m *MySQLAuditLogRepository) Create(ctx context.Context, entry *auditDomain.Entry) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO audit_logs (id, correlation_id, operation, key_id, caller_identity,
			  caller_service, source_ip, success, error_code, metadata, created_at, signature)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return err
	}

	rawID, err := entry.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to encode audit entry id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		rawID,
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
func (m *MySQLAuditLogRepository) Query(
	ctx context.Context,
	filter auditDomain.Filter,
) ([]*auditDomain.Entry, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, correlation_id, operation, key_id, caller_identity, caller_service,
			  source_ip, success, error_code, metadata, created_at, signature
			  FROM audit_logs`

	var (
		conditions []string
		args       []any
	)

	if filter.CorrelationID != "" {
		conditions = append(conditions, "correlation_id = ?")
		args = append(args, filter.CorrelationID)
	}
	if filter.KeyID != "" {
		conditions = append(conditions, "key_id = ?")
		args = append(args, filter.KeyID)
	}
	if filter.Operation != "" {
		conditions = append(conditions, "operation = ?")
		args = append(args, filter.Operation)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, filter.Until)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	// MySQL requires LIMIT before OFFSET; an offset without a limit gets the
	// maximum row count.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = 1<<63 - 1
		}
		query += " LIMIT ?"
		args = append(args, limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query audit entries")
	}
	defer rows.Close() //nolint:errcheck

	return scanMySQLEntryRows(rows)
}

// scanMySQLEntryRows collects entries from a query result, decoding the
// BINARY(16) id column.
func scanMySQLEntryRows(rows *sql.Rows) ([]*auditDomain.Entry, error) {
	var result []*auditDomain.Entry

	for rows.Next() {
		var (
			entry auditDomain.Entry
			rawID []byte
			raw   []byte
		)
		err := rows.Scan(
			&rawID,
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

		var id uuid.UUID
		if err := id.UnmarshalBinary(rawID); err != nil {
			return nil, apperrors.Wrap(err, "failed to decode audit entry id")
		}
		entry.ID = id

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
