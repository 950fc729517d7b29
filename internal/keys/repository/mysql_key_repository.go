package repository

import (
	"context"
	"database/sql"

	"github.com/cryptellan/crypto-service/internal/database"
	apperrors "github.com/cryptellan/crypto-service/internal/errors"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

// MySQLKeyRepository implements wrapped key persistence for MySQL databases.
// UUIDs are stored as BINARY(16) and binary blobs as BLOB columns.
type MySQLKeyRepository struct {
	db *sql.DB
}

// NewMySQLKeyRepository creates a new MySQLKeyRepository.
func NewMySQLKeyRepository(db *sql.DB) *MySQLKeyRepository {
	return &MySQLKeyRepository{db: db}
}

// Store inserts a new wrapped key into the MySQL database.
func (m *MySQLKeyRepository) Store(ctx context.Context, key *keysDomain.EncryptedKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO crypto_keys (namespace, id, version, algorithm, key_type, state,
			  encrypted_material, nonce, kek_id, created_at, expires_at, rotated_at,
			  previous_version, owner_service, allowed_operations, usage_count)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	meta := key.Metadata
	id, err := meta.ID.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal key id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		meta.ID.Namespace,
		id,
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
func (m *MySQLKeyRepository) Get(
	ctx context.Context,
	id keysDomain.KeyID,
) (*keysDomain.EncryptedKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT namespace, id, version, algorithm, key_type, state,
			  encrypted_material, nonce, kek_id, created_at, expires_at, rotated_at,
			  previous_version, owner_service, allowed_operations, usage_count
			  FROM crypto_keys
			  WHERE namespace = ? AND id = ? AND version = ?
			  LIMIT 1`

	idBytes, err := id.ID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal key id")
	}

	var (
		key     keysDomain.EncryptedKey
		rawID   []byte
		ops     string
		prev    *string
	)
	err = querier.QueryRowContext(ctx, query, id.Namespace, idBytes, id.Version).Scan(
		&key.Metadata.ID.Namespace,
		&rawID,
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

	if err := key.Metadata.ID.ID.UnmarshalBinary(rawID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal key id")
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
func (m *MySQLKeyRepository) UpdateMetadata(
	ctx context.Context,
	meta *keysDomain.KeyMetadata,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE crypto_keys
			  SET state = ?, expires_at = ?, rotated_at = ?, previous_version = ?,
			      allowed_operations = ?, usage_count = ?
			  WHERE namespace = ? AND id = ? AND version = ?`

	id, err := meta.ID.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal key id")
	}

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
		id,
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
func (m *MySQLKeyRepository) IncrementUsage(ctx context.Context, id keysDomain.KeyID) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE crypto_keys
			  SET usage_count = usage_count + 1
			  WHERE namespace = ? AND id = ? AND version = ?`

	idBytes, err := id.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal key id")
	}

	result, err := querier.ExecContext(ctx, query, id.Namespace, idBytes, id.Version)
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
func (m *MySQLKeyRepository) Destroy(ctx context.Context, id keysDomain.KeyID) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE crypto_keys
			  SET state = ?, encrypted_material = '', nonce = ''
			  WHERE namespace = ? AND id = ? AND version = ?`

	idBytes, err := id.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal key id")
	}

	result, err := querier.ExecContext(ctx, query, keysDomain.Destroyed, id.Namespace, idBytes, id.Version)
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
func (m *MySQLKeyRepository) Remove(ctx context.Context, id keysDomain.KeyID) error {
	querier := database.GetTx(ctx, m.db)

	query := `DELETE FROM crypto_keys WHERE namespace = ? AND id = ? AND version = ?`

	idBytes, err := id.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal key id")
	}

	result, err := querier.ExecContext(ctx, query, id.Namespace, idBytes, id.Version)
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
func (m *MySQLKeyRepository) Exists(ctx context.Context, id keysDomain.KeyID) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT EXISTS(SELECT 1 FROM crypto_keys WHERE namespace = ? AND id = ? AND version = ?)`

	idBytes, err := id.ID.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal key id")
	}

	var exists bool
	err = querier.QueryRowContext(ctx, query, id.Namespace, idBytes, id.Version).Scan(&exists)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to check key existence")
	}
	return exists, nil
}

// ListByNamespace returns the metadata of every key in a namespace, newest first.
func (m *MySQLKeyRepository) ListByNamespace(
	ctx context.Context,
	namespace string,
) ([]*keysDomain.KeyMetadata, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT namespace, id, version, algorithm, key_type, state,
			  created_at, expires_at, rotated_at, previous_version, owner_service,
			  allowed_operations, usage_count
			  FROM crypto_keys
			  WHERE namespace = ?
			  ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, namespace)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list keys by namespace")
	}
	defer rows.Close() //nolint:errcheck

	return scanMySQLMetadataRows(rows)
}

// ListByState returns the metadata of every key in the given lifecycle state.
func (m *MySQLKeyRepository) ListByState(
	ctx context.Context,
	state keysDomain.KeyState,
) ([]*keysDomain.KeyMetadata, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT namespace, id, version, algorithm, key_type, state,
			  created_at, expires_at, rotated_at, previous_version, owner_service,
			  allowed_operations, usage_count
			  FROM crypto_keys
			  WHERE state = ?
			  ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, state)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list keys by state")
	}
	defer rows.Close() //nolint:errcheck

	return scanMySQLMetadataRows(rows)
}

// scanMySQLMetadataRows collects metadata-only rows from a list query,
// restoring UUIDs from their binary encoding.
func scanMySQLMetadataRows(rows *sql.Rows) ([]*keysDomain.KeyMetadata, error) {
	var result []*keysDomain.KeyMetadata

	for rows.Next() {
		var (
			meta  keysDomain.KeyMetadata
			rawID []byte
			ops   string
			prev  *string
		)
		err := rows.Scan(
			&meta.ID.Namespace,
			&rawID,
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

		if err := meta.ID.ID.UnmarshalBinary(rawID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal key id")
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
