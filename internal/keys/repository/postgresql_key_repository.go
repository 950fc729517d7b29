package repository

import (
	"context"
	"database/sql"

	"github.com/cryptellan/crypto-service/internal/database"
	apperrors "github.com/cryptellan/crypto-service/internal/errors"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

// PostgreSQLKeyRepository implements wrapped key persistence for PostgreSQL databases.
type PostgreSQLKeyRepository struct {
	db *sql.DB
}

// NewPostgreSQLKeyRepository creates a new PostgreSQLKeyRepository.
func NewPostgreSQLKeyRepository(db *sql.DB) *PostgreSQLKeyRepository {
	return &PostgreSQLKeyRepository{db: db}
}

// Store inserts a new wrapped key into the PostgreSQL database.
func (p *PostgreSQLKeyRepository) Store(ctx context.Context, key *keysDomain.EncryptedKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO crypto_keys (namespace, id, version, algorithm, key_type, state,
			  encrypted_material, nonce, kek_id, created_at, expires_at, rotated_at,
			  previous_version, owner_service, allowed_operations, usage_count)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	meta := key.Metadata
	_, err := querier.ExecContext(
		ctx,
		query,
		meta.ID.Namespace,
		meta.ID.ID,
		meta.ID.Version,
		meta.Algorithm,
		meta.Type,
		meta.State,
		key.EncryptedMaterial,
		key.Nonce,
		key.KekID,
		meta.CreatedAt,
		meta.ExpiresAt,
		meta.RotatedAt,
		previousVersionString(meta.PreviousVersion),
		meta.OwnerService,
		joinOperations(meta.AllowedOperations),
		meta.UsageCount,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to store key")
	}
	return nil
}

// Get retrieves a wrapped key by its identifier.
func (p *PostgreSQLKeyRepository) Get(
	ctx context.Context,
	id keysDomain.KeyID,
) (*keysDomain.EncryptedKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT namespace, id, version, algorithm, key_type, state,
			  encrypted_material, nonce, kek_id, created_at, expires_at, rotated_at,
			  previous_version, owner_service, allowed_operations, usage_count
			  FROM crypto_keys
			  WHERE namespace = $1 AND id = $2 AND version = $3
			  LIMIT 1`

	var (
		key  keysDomain.EncryptedKey
		ops  string
		prev *string
	)
	err := querier.QueryRowContext(ctx, query, id.Namespace, id.ID, id.Version).Scan(
		&key.Metadata.ID.Namespace,
		&key.Metadata.ID.ID,
		&key.Metadata.ID.Version,
		&key.Metadata.Algorithm,
		&key.Metadata.Type,
		&key.Metadata.State,
		&key.EncryptedMaterial,
		&key.Nonce,
		&key.KekID,
		&key.Metadata.CreatedAt,
		&key.Metadata.ExpiresAt,
		&key.Metadata.RotatedAt,
		&prev,
		&key.Metadata.OwnerService,
		&ops,
		&key.Metadata.UsageCount,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, keysDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get key")
	}

	key.Metadata.AllowedOperations = splitOperations(ops)
	key.Metadata.PreviousVersion, err = parsePreviousVersion(prev)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse previous version")
	}

	return &key, nil
}

// UpdateMetadata persists lifecycle changes (state, rotation, expiry, usage)
// for an existing key. Key material columns are never touched here.
func (p *PostgreSQLKeyRepository) UpdateMetadata(
	ctx context.Context,
	meta *keysDomain.KeyMetadata,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE crypto_keys
			  SET state = $1, expires_at = $2, rotated_at = $3, previous_version = $4,
			      allowed_operations = $5, usage_count = $6
			  WHERE namespace = $7 AND id = $8 AND version = $9`

	result, err := querier.ExecContext(
		ctx,
		query,
		meta.State,
		meta.ExpiresAt,
		meta.RotatedAt,
		previousVersionString(meta.PreviousVersion),
		joinOperations(meta.AllowedOperations),
		meta.UsageCount,
		meta.ID.Namespace,
		meta.ID.ID,
		meta.ID.Version,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update key metadata")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if rows == 0 {
		return keysDomain.ErrKeyNotFound
	}
	return nil
}

// IncrementUsage atomically bumps the key's usage counter.
func (p *PostgreSQLKeyRepository) IncrementUsage(ctx context.Context, id keysDomain.KeyID) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE crypto_keys
			  SET usage_count = usage_count + 1
			  WHERE namespace = $1 AND id = $2 AND version = $3`

	result, err := querier.ExecContext(ctx, query, id.Namespace, id.ID, id.Version)
	if err != nil {
		return apperrors.Wrap(err, "failed to increment key usage")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if rows == 0 {
		return keysDomain.ErrKeyNotFound
	}
	return nil
}

// Destroy finalizes a key: the state becomes DESTROYED and the wrapped
// material and nonce are overwritten with empty values in the same statement.
func (p *PostgreSQLKeyRepository) Destroy(ctx context.Context, id keysDomain.KeyID) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE crypto_keys
			  SET state = $1, encrypted_material = ''::bytea, nonce = ''::bytea
			  WHERE namespace = $2 AND id = $3 AND version = $4`

	result, err := querier.ExecContext(ctx, query, keysDomain.Destroyed, id.Namespace, id.ID, id.Version)
	if err != nil {
		return apperrors.Wrap(err, "failed to destroy key")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if rows == 0 {
		return keysDomain.ErrKeyNotFound
	}
	return nil
}

// Remove hard-deletes a key row.
func (p *PostgreSQLKeyRepository) Remove(ctx context.Context, id keysDomain.KeyID) error {
	querier := database.GetTx(ctx, p.db)

	query := `DELETE FROM crypto_keys WHERE namespace = $1 AND id = $2 AND version = $3`

	result, err := querier.ExecContext(ctx, query, id.Namespace, id.ID, id.Version)
	if err != nil {
		return apperrors.Wrap(err, "failed to remove key")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if rows == 0 {
		return keysDomain.ErrKeyNotFound
	}
	return nil
}

// Exists reports whether a key row is present.
func (p *PostgreSQLKeyRepository) Exists(ctx context.Context, id keysDomain.KeyID) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT EXISTS(SELECT 1 FROM crypto_keys WHERE namespace = $1 AND id = $2 AND version = $3)`

	var exists bool
	err := querier.QueryRowContext(ctx, query, id.Namespace, id.ID, id.Version).Scan(&exists)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to check key existence")
	}
	return exists, nil
}

// ListByNamespace returns the metadata of every key in a namespace, newest first.
func (p *PostgreSQLKeyRepository) ListByNamespace(
	ctx context.Context,
	namespace string,
) ([]*keysDomain.KeyMetadata, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT namespace, id, version, algorithm, key_type, state,
			  created_at, expires_at, rotated_at, previous_version, owner_service,
			  allowed_operations, usage_count
			  FROM crypto_keys
			  WHERE namespace = $1
			  ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, namespace)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list keys by namespace")
	}
	defer rows.Close() //nolint:errcheck

	return scanMetadataRows(rows)
}

// ListByState returns the metadata of every key in the given lifecycle state.
func (p *PostgreSQLKeyRepository) ListByState(
	ctx context.Context,
	state keysDomain.KeyState,
) ([]*keysDomain.KeyMetadata, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT namespace, id, version, algorithm, key_type, state,
			  created_at, expires_at, rotated_at, previous_version, owner_service,
			  allowed_operations, usage_count
			  FROM crypto_keys
			  WHERE state = $1
			  ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, state)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list keys by state")
	}
	defer rows.Close() //nolint:errcheck

	return scanMetadataRows(rows)
}

// scanMetadataRows collects metadata-only rows from a list query.
func scanMetadataRows(rows *sql.Rows) ([]*keysDomain.KeyMetadata, error) {
	var result []*keysDomain.KeyMetadata

	for rows.Next() {
		var (
			meta keysDomain.KeyMetadata
			ops  string
			prev *string
		)
		err := rows.Scan(
			&meta.ID.Namespace,
			&meta.ID.ID,
			&meta.ID.Version,
			&meta.Algorithm,
			&meta.Type,
			&meta.State,
			&meta.CreatedAt,
			&meta.ExpiresAt,
			&meta.RotatedAt,
			&prev,
			&meta.OwnerService,
			&ops,
			&meta.UsageCount,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan key metadata")
		}

		meta.AllowedOperations = splitOperations(ops)
		meta.PreviousVersion, err = parsePreviousVersion(prev)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to parse previous version")
		}
		result = append(result, &meta)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate key metadata rows")
	}

	return result, nil
}
