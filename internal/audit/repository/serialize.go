package repository

import (
	"encoding/json"

	apperrors "github.com/cryptellan/crypto-service/internal/errors"
)

// marshalMetadata renders the entry metadata as JSON for storage. A nil map
// stores as an empty object so the column stays NOT NULL.
func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	out, err := json.Marshal(metadata)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal audit metadata")
	}
	return out, nil
}

// unmarshalMetadata restores the entry metadata from its stored JSON form.
// An empty object restores as nil to match entries recorded without metadata.
func unmarshalMetadata(raw []byte) (map[string]string, error) {
	var metadata map[string]string
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal audit metadata")
	}
	if len(metadata) == 0 {
		return nil, nil
	}
	return metadata, nil
}
