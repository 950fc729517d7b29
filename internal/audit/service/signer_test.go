package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
)

func testEntry() *auditDomain.Entry {
	return &auditDomain.Entry{
		ID:             uuid.Must(uuid.NewV7()),
		CorrelationID:  "corr-123",
		Operation:      auditDomain.OpEncrypt,
		KeyID:          "payments:0190a1b2-0000-7000-8000-000000000000:1",
		CallerIdentity: "alice",
		CallerService:  "billing-api",
		SourceIP:       "10.0.0.7",
		Success:        true,
		Metadata:       map[string]string{"payload_size": "512"},
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestSigner_SignAndVerify(t *testing.T) {
	signer := NewSigner()
	secret := []byte("test-audit-secret")

	entry := testEntry()
	sig, err := signer.Sign(secret, entry)
	require.NoError(t, err)
	assert.Len(t, sig, 32)

	entry.Signature = sig
	assert.NoError(t, signer.Verify(secret, entry))
}

func TestSigner_Deterministic(t *testing.T) {
	signer := NewSigner()
	secret := []byte("test-audit-secret")

	entry := testEntry()
	first, err := signer.Sign(secret, entry)
	require.NoError(t, err)
	second, err := signer.Sign(secret, entry)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSigner_TamperDetection(t *testing.T) {
	signer := NewSigner()
	secret := []byte("test-audit-secret")

	tamper := map[string]func(e *auditDomain.Entry){
		"operation":       func(e *auditDomain.Entry) { e.Operation = auditDomain.OpDecrypt },
		"key_id":          func(e *auditDomain.Entry) { e.KeyID = "payments:0190a1b2-0000-7000-8000-000000000001:1" },
		"caller_identity": func(e *auditDomain.Entry) { e.CallerIdentity = "mallory" },
		"success":         func(e *auditDomain.Entry) { e.Success = false },
		"error_code":      func(e *auditDomain.Entry) { e.ErrorCode = "NOT_FOUND" },
		"metadata":        func(e *auditDomain.Entry) { e.Metadata["payload_size"] = "9999" },
		"created_at":      func(e *auditDomain.Entry) { e.CreatedAt = e.CreatedAt.Add(time.Second) },
	}

	for name, mutate := range tamper {
		t.Run(name, func(t *testing.T) {
			entry := testEntry()
			sig, err := signer.Sign(secret, entry)
			require.NoError(t, err)
			entry.Signature = sig

			mutate(entry)
			assert.ErrorIs(t, signer.Verify(secret, entry), auditDomain.ErrSignatureInvalid)
		})
	}
}

func TestSigner_WrongSecret(t *testing.T) {
	signer := NewSigner()

	entry := testEntry()
	sig, err := signer.Sign([]byte("secret-a"), entry)
	require.NoError(t, err)
	entry.Signature = sig

	assert.ErrorIs(t, signer.Verify([]byte("secret-b"), entry), auditDomain.ErrSignatureInvalid)
}

func TestSigner_FieldBoundaries(t *testing.T) {
	// Length prefixes keep adjacent fields from sliding into each other.
	signer := NewSigner()
	secret := []byte("test-audit-secret")

	a := testEntry()
	a.CallerIdentity = "ab"
	a.CallerService = "c"

	b := testEntry()
	b.ID = a.ID
	b.CreatedAt = a.CreatedAt
	b.CallerIdentity = "a"
	b.CallerService = "bc"

	sigA, err := signer.Sign(secret, a)
	require.NoError(t, err)
	sigB, err := signer.Sign(secret, b)
	require.NoError(t, err)
	assert.NotEqual(t, sigA, sigB)
}

func TestSigner_NilMetadata(t *testing.T) {
	signer := NewSigner()
	secret := []byte("test-audit-secret")

	entry := testEntry()
	entry.Metadata = nil

	sig, err := signer.Sign(secret, entry)
	require.NoError(t, err)
	entry.Signature = sig
	assert.NoError(t, signer.Verify(secret, entry))
}
