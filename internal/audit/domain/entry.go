// Package domain defines the audit trail models. Entries describe who did
// what to which key and whether it succeeded. The structure carries
// identifiers and outcome codes only; there is no field for payload bytes,
// so plaintext or key material cannot end up in the trail by construction.
package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/cryptellan/crypto-service/internal/errors"
)

// Operation names for audit entries.
const (
	OpKeyGenerate = "key.generate"
	OpKeyActivate = "key.activate"
	OpKeyRotate   = "key.rotate"
	OpKeyDelete   = "key.delete"
	OpKeyPurge    = "key.purge"
	OpEncrypt     = "data.encrypt"
	OpDecrypt     = "data.decrypt"
	OpSign        = "data.sign"
	OpVerify      = "data.verify"
	OpFileEncrypt = "file.encrypt"
	OpFileDecrypt = "file.decrypt"
)

// Entry is a single audit record. Signature is an HMAC over the canonical
// form, assigned when the entry is recorded.
type Entry struct {
	ID             uuid.UUID
	CorrelationID  string
	Operation      string
	KeyID          string
	CallerIdentity string
	CallerService  string
	SourceIP       string
	Success        bool
	ErrorCode      string
	Metadata       map[string]string
	CreatedAt      time.Time
	Signature      []byte
}

// Filter selects audit entries in Query. Zero-valued fields are ignored.
type Filter struct {
	CorrelationID string
	KeyID         string
	Operation     string
	Since         time.Time
	Until         time.Time
	Limit         int
	Offset        int
}

// ErrSignatureInvalid reports a failed audit signature verification.
var ErrSignatureInvalid = apperrors.Wrap(apperrors.ErrSignatureInvalid, "audit log signature invalid")
