// Package repository implements persistence for wrapped key material and
// key metadata. Repositories support both PostgreSQL and MySQL; key material
// is stored only in its KEK-wrapped form and never decrypted here.
package repository

import (
	"strings"

	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

// joinOperations serializes the allowed operations list as a comma-joined
// string. An empty list (every operation the algorithm supports) serializes
// to the empty string.
func joinOperations(ops []keysDomain.Operation) string {
	if len(ops) == 0 {
		return ""
	}
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = string(op)
	}
	return strings.Join(parts, ",")
}

// splitOperations parses a comma-joined operations string.
func splitOperations(s string) []keysDomain.Operation {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ops := make([]keysDomain.Operation, len(parts))
	for i, part := range parts {
		ops[i] = keysDomain.Operation(part)
	}
	return ops
}

// previousVersionString renders the lineage back-reference for storage,
// nil when the key has no predecessor.
func previousVersionString(prev *keysDomain.KeyID) *string {
	if prev == nil {
		return nil
	}
	s := prev.String()
	return &s
}

// parsePreviousVersion restores the lineage back-reference from storage.
func parsePreviousVersion(s *string) (*keysDomain.KeyID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := keysDomain.ParseKeyID(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
