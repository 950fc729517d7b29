package usecase

import (
	"context"
	"crypto/elliptic"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	"github.com/cryptellan/crypto-service/internal/crypto/engine"
	apperrors "github.com/cryptellan/crypto-service/internal/errors"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

type fakeMaterialSource struct {
	material []byte
	meta     keysDomain.KeyMetadata
	err      error

	mu     sync.Mutex
	handed [][]byte
}

func (f *fakeMaterialSource) Material(
	ctx context.Context,
	id keysDomain.KeyID,
	op keysDomain.Operation,
) ([]byte, *keysDomain.KeyMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, nil, f.err
	}
	out := append([]byte{}, f.material...)
	f.handed = append(f.handed, out)
	meta := f.meta
	return out, &meta, nil
}

func (f *fakeMaterialSource) assertZeroed(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, buf := range f.handed {
		assert.Equal(t, make([]byte, len(buf)), buf, "handed buffer %d must be zeroed", i)
	}
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []*auditDomain.Entry
}

func (r *recordingAudit) Record(ctx context.Context, entry *auditDomain.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func newECDSASource(t *testing.T, algorithm keysDomain.Algorithm, curve elliptic.Curve) *fakeMaterialSource {
	t.Helper()
	priv, err := engine.GenerateECDSAKey(curve)
	require.NoError(t, err)
	material, err := engine.MarshalPrivateKey(priv)
	require.NoError(t, err)
	return &fakeMaterialSource{
		material: material,
		meta: keysDomain.KeyMetadata{
			ID:        keysDomain.NewKeyID("signing"),
			Algorithm: algorithm,
			Type:      keysDomain.AsymmetricPrivate,
			State:     keysDomain.Active,
		},
	}
}

func newRSASource(t *testing.T) *fakeMaterialSource {
	t.Helper()
	priv, err := engine.GenerateRSAKey(2048)
	require.NoError(t, err)
	material, err := engine.MarshalPrivateKey(priv)
	require.NoError(t, err)
	return &fakeMaterialSource{
		material: material,
		meta: keysDomain.KeyMetadata{
			ID:        keysDomain.NewKeyID("signing"),
			Algorithm: keysDomain.RSA2048,
			Type:      keysDomain.AsymmetricPrivate,
			State:     keysDomain.Active,
		},
	}
}

func newSignatureFixture(source *fakeMaterialSource) (SignatureUseCase, *recordingAudit) {
	audit := &recordingAudit{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSignatureUseCase(source, audit, logger), audit
}

func TestSignatureUseCase_ECDSARoundTrip(t *testing.T) {
	ctx := context.Background()
	source := newECDSASource(t, keysDomain.ECDSAP256, elliptic.P256())
	useCase, audit := newSignatureFixture(source)

	data := []byte("document to sign")
	sig, err := useCase.Sign(ctx, source.meta.ID, data, "")
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	valid, err := useCase.Verify(ctx, source.meta.ID, data, sig, "")
	require.NoError(t, err)
	assert.True(t, valid)

	require.Len(t, audit.entries, 2)
	assert.Equal(t, auditDomain.OpSign, audit.entries[0].Operation)
	assert.Equal(t, auditDomain.OpVerify, audit.entries[1].Operation)
	assert.True(t, audit.entries[0].Success)
	assert.True(t, audit.entries[1].Success)

	source.assertZeroed(t)
}

func TestSignatureUseCase_ECDSATamperedData(t *testing.T) {
	ctx := context.Background()
	source := newECDSASource(t, keysDomain.ECDSAP384, elliptic.P384())
	useCase, audit := newSignatureFixture(source)

	data := []byte("document to sign")
	sig, err := useCase.Sign(ctx, source.meta.ID, data, "")
	require.NoError(t, err)

	valid, err := useCase.Verify(ctx, source.meta.ID, []byte("tampered document"), sig, "")
	require.NoError(t, err)
	assert.False(t, valid)

	// The mismatch is a successful operation flagged in the entry metadata.
	require.Len(t, audit.entries, 2)
	assert.True(t, audit.entries[1].Success)
	assert.Equal(t, "false", audit.entries[1].Metadata["signature_valid"])
}

func TestSignatureUseCase_PSSRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := newRSASource(t)
	useCase, _ := newSignatureFixture(source)

	data := []byte("document to sign")
	for _, hash := range []engine.HashAlgorithm{engine.SHA256, engine.SHA384, engine.SHA512} {
		sig, err := useCase.Sign(ctx, source.meta.ID, data, hash)
		require.NoError(t, err)

		valid, err := useCase.Verify(ctx, source.meta.ID, data, sig, hash)
		require.NoError(t, err)
		assert.True(t, valid)

		// A different digest fails cleanly.
		if hash != engine.SHA256 {
			valid, err = useCase.Verify(ctx, source.meta.ID, data, sig, engine.SHA256)
			require.NoError(t, err)
			assert.False(t, valid)
		}
	}
}

func TestSignatureUseCase_PSSDefaultsToSHA256(t *testing.T) {
	ctx := context.Background()
	source := newRSASource(t)
	useCase, _ := newSignatureFixture(source)

	data := []byte("document to sign")
	sig, err := useCase.Sign(ctx, source.meta.ID, data, "")
	require.NoError(t, err)

	valid, err := useCase.Verify(ctx, source.meta.ID, data, sig, engine.SHA256)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestSignatureUseCase_SymmetricKeyRefused(t *testing.T) {
	ctx := context.Background()
	material, err := engine.GenerateSymmetricKey(32)
	require.NoError(t, err)
	source := &fakeMaterialSource{
		material: material,
		meta: keysDomain.KeyMetadata{
			ID:        keysDomain.NewKeyID("signing"),
			Algorithm: keysDomain.AES256GCM,
			Type:      keysDomain.Symmetric,
			State:     keysDomain.Active,
		},
	}
	useCase, _ := newSignatureFixture(source)

	_, err = useCase.Sign(ctx, source.meta.ID, []byte("data"), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = useCase.Verify(ctx, source.meta.ID, []byte("data"), []byte("sig"), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSignatureUseCase_InvalidInputs(t *testing.T) {
	ctx := context.Background()
	source := newRSASource(t)
	useCase, audit := newSignatureFixture(source)

	_, err := useCase.Sign(ctx, source.meta.ID, nil, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = useCase.Verify(ctx, source.meta.ID, []byte("data"), nil, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	require.Len(t, audit.entries, 2)
	assert.False(t, audit.entries[0].Success)
	assert.Equal(t, "INVALID_INPUT", audit.entries[0].ErrorCode)
}

func TestSignatureUseCase_KeyResolutionFailure(t *testing.T) {
	ctx := context.Background()
	source := newRSASource(t)
	source.err = keysDomain.ErrKeyNotFound
	useCase, audit := newSignatureFixture(source)

	_, err := useCase.Sign(ctx, source.meta.ID, []byte("data"), "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "NOT_FOUND", audit.entries[0].ErrorCode)
}
