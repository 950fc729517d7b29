package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	"github.com/cryptellan/crypto-service/internal/crypto/engine"
	apperrors "github.com/cryptellan/crypto-service/internal/errors"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

// signatureUseCase implements the SignatureUseCase interface.
type signatureUseCase struct {
	keys   KeyMaterialSource
	audit  AuditRecorder
	logger *slog.Logger
}

// NewSignatureUseCase creates a new SignatureUseCase instance.
func NewSignatureUseCase(keys KeyMaterialSource, audit AuditRecorder, logger *slog.Logger) SignatureUseCase {
	return &signatureUseCase{
		keys:   keys,
		audit:  audit,
		logger: logger,
	}
}

// Sign produces a signature over data.
func (s *signatureUseCase) Sign(
	ctx context.Context,
	id keysDomain.KeyID,
	data []byte,
	hash engine.HashAlgorithm,
) ([]byte, error) {
	sig, err := s.sign(ctx, id, data, hash)
	s.record(ctx, auditDomain.OpSign, id, err)
	return sig, err
}

func (s *signatureUseCase) sign(
	ctx context.Context,
	id keysDomain.KeyID,
	data []byte,
	hash engine.HashAlgorithm,
) ([]byte, error) {
	if len(data) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "data is required")
	}

	material, meta, err := s.keys.Material(ctx, id, keysDomain.OpSign)
	if err != nil {
		return nil, err
	}
	defer keysDomain.Zero(material)

	switch meta.Algorithm {
	case keysDomain.RSA2048, keysDomain.RSA3072, keysDomain.RSA4096:
		priv, err := engine.ParseRSAPrivateKey(material)
		if err != nil {
			return nil, err
		}
		if hash == "" {
			hash = engine.SHA256
		}
		return engine.SignPSS(priv, data, hash)

	case keysDomain.ECDSAP256, keysDomain.ECDSAP384, keysDomain.ECDSAP521:
		priv, err := engine.ParseECDSAPrivateKey(material)
		if err != nil {
			return nil, err
		}
		return engine.SignECDSA(priv, data)
	}

	return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "key algorithm does not support signing")
}

// Verify reports whether sig is a valid signature over data.
func (s *signatureUseCase) Verify(
	ctx context.Context,
	id keysDomain.KeyID,
	data, sig []byte,
	hash engine.HashAlgorithm,
) (bool, error) {
	valid, err := s.verify(ctx, id, data, sig, hash)

	// A clean "signature does not match" is a successful verify operation;
	// the audit entry still flags the mismatch.
	entry := s.entry(ctx, auditDomain.OpVerify, id, err)
	if err == nil && !valid {
		entry.Metadata = map[string]string{"signature_valid": "false"}
	}
	s.send(ctx, entry)

	return valid, err
}

func (s *signatureUseCase) verify(
	ctx context.Context,
	id keysDomain.KeyID,
	data, sig []byte,
	hash engine.HashAlgorithm,
) (bool, error) {
	if len(data) == 0 || len(sig) == 0 {
		return false, apperrors.Wrap(apperrors.ErrInvalidInput, "data and signature are required")
	}

	material, meta, err := s.keys.Material(ctx, id, keysDomain.OpVerify)
	if err != nil {
		return false, err
	}
	defer keysDomain.Zero(material)

	switch meta.Algorithm {
	case keysDomain.RSA2048, keysDomain.RSA3072, keysDomain.RSA4096:
		priv, err := engine.ParseRSAPrivateKey(material)
		if err != nil {
			return false, err
		}
		if hash == "" {
			hash = engine.SHA256
		}
		return engine.VerifyPSS(&priv.PublicKey, data, sig, hash)

	case keysDomain.ECDSAP256, keysDomain.ECDSAP384, keysDomain.ECDSAP521:
		priv, err := engine.ParseECDSAPrivateKey(material)
		if err != nil {
			return false, err
		}
		return engine.VerifyECDSA(&priv.PublicKey, data, sig)
	}

	return false, apperrors.Wrap(apperrors.ErrInvalidInput, "key algorithm does not support verification")
}

func (s *signatureUseCase) record(ctx context.Context, operation string, id keysDomain.KeyID, opErr error) {
	s.send(ctx, s.entry(ctx, operation, id, opErr))
}

func (s *signatureUseCase) entry(ctx context.Context, operation string, id keysDomain.KeyID, opErr error) *auditDomain.Entry {
	entry := &auditDomain.Entry{
		ID:        uuid.Must(uuid.NewV7()),
		Operation: operation,
		Success:   opErr == nil,
		CreatedAt: time.Now().UTC(),
	}
	auditDomain.RequestInfoFrom(ctx).Apply(entry)
	if !id.IsZero() {
		entry.KeyID = id.String()
	}
	if opErr != nil {
		entry.ErrorCode = apperrors.Code(opErr)
	}
	return entry
}

func (s *signatureUseCase) send(ctx context.Context, entry *auditDomain.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error("failed to record audit entry",
			slog.String("operation", entry.Operation),
			slog.String("error", err.Error()))
	}
}
