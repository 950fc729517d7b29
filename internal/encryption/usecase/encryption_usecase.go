package usecase

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	"github.com/cryptellan/crypto-service/internal/crypto/engine"
	apperrors "github.com/cryptellan/crypto-service/internal/errors"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

// Config carries the payload policy for the encryption use case.
type Config struct {
	// MaxPayloadSize bounds plaintext and ciphertext sizes. Checked before
	// any key resolution or cryptographic call.
	MaxPayloadSize int
}

const defaultMaxPayloadSize = 64 << 20

// encryptionUseCase implements the EncryptionUseCase interface.
type encryptionUseCase struct {
	keys   KeyMaterialSource
	audit  AuditRecorder
	cfg    Config
	logger *slog.Logger
}

// NewEncryptionUseCase creates a new EncryptionUseCase instance.
func NewEncryptionUseCase(keys KeyMaterialSource, audit AuditRecorder, cfg Config, logger *slog.Logger) EncryptionUseCase {
	if cfg.MaxPayloadSize <= 0 {
		cfg.MaxPayloadSize = defaultMaxPayloadSize
	}
	return &encryptionUseCase{
		keys:   keys,
		audit:  audit,
		cfg:    cfg,
		logger: logger,
	}
}

// Encrypt protects plaintext under the key's algorithm.
func (e *encryptionUseCase) Encrypt(ctx context.Context, id keysDomain.KeyID, plaintext, aad []byte) (*Envelope, error) {
	envelope, err := e.encrypt(ctx, id, plaintext, aad)
	e.record(ctx, auditDomain.OpEncrypt, id, len(plaintext), err)
	return envelope, err
}

func (e *encryptionUseCase) encrypt(ctx context.Context, id keysDomain.KeyID, plaintext, aad []byte) (*Envelope, error) {
	if len(plaintext) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "plaintext is required")
	}
	if len(plaintext) > e.cfg.MaxPayloadSize {
		return nil, apperrors.Wrap(apperrors.ErrSizeLimitExceeded, "plaintext exceeds the payload size limit")
	}

	material, meta, err := e.keys.Material(ctx, id, keysDomain.OpEncrypt)
	if err != nil {
		return nil, err
	}
	defer keysDomain.Zero(material)

	switch meta.Algorithm {
	case keysDomain.AES128GCM, keysDomain.AES256GCM:
		res, err := engine.EncryptGCM(plaintext, material, aad)
		if err != nil {
			return nil, err
		}
		return &Envelope{Ciphertext: res.Ciphertext, IV: res.IV, Tag: res.Tag}, nil

	case keysDomain.AES128CBC, keysDomain.AES256CBC:
		if len(aad) > 0 {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "cbc mode does not support aad")
		}
		res, err := engine.EncryptCBC(plaintext, material)
		if err != nil {
			return nil, err
		}
		return &Envelope{Ciphertext: res.Ciphertext, IV: res.IV}, nil

	case keysDomain.RSA2048, keysDomain.RSA3072, keysDomain.RSA4096:
		priv, err := engine.ParseRSAPrivateKey(material)
		if err != nil {
			return nil, err
		}

		// Small payloads without AAD encrypt directly; everything else goes
		// through hybrid, which authenticates the AAD under GCM.
		if len(aad) == 0 && len(plaintext) <= engine.OAEPMaxPlaintext(&priv.PublicKey) {
			ciphertext, err := engine.EncryptOAEP(&priv.PublicKey, plaintext)
			if err != nil {
				return nil, err
			}
			return &Envelope{Ciphertext: ciphertext}, nil
		}

		res, err := engine.HybridEncrypt(&priv.PublicKey, plaintext, aad)
		if err != nil {
			return nil, err
		}
		return &Envelope{
			Ciphertext: res.Ciphertext,
			IV:         res.IV,
			Tag:        res.Tag,
			WrappedKey: res.WrappedKey,
		}, nil
	}

	return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "key algorithm does not support encryption")
}

// Decrypt recovers the plaintext from an envelope.
func (e *encryptionUseCase) Decrypt(ctx context.Context, id keysDomain.KeyID, envelope *Envelope, aad []byte) ([]byte, error) {
	size := 0
	if envelope != nil {
		size = len(envelope.Ciphertext)
	}
	plaintext, err := e.decrypt(ctx, id, envelope, aad)
	e.record(ctx, auditDomain.OpDecrypt, id, size, err)
	return plaintext, err
}

func (e *encryptionUseCase) decrypt(ctx context.Context, id keysDomain.KeyID, envelope *Envelope, aad []byte) ([]byte, error) {
	if envelope == nil || len(envelope.Ciphertext) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "ciphertext is required")
	}
	if len(envelope.Ciphertext) > e.cfg.MaxPayloadSize+engine.GCMTagSize {
		return nil, apperrors.Wrap(apperrors.ErrSizeLimitExceeded, "ciphertext exceeds the payload size limit")
	}

	material, meta, err := e.keys.Material(ctx, id, keysDomain.OpDecrypt)
	if err != nil {
		return nil, err
	}
	defer keysDomain.Zero(material)

	switch meta.Algorithm {
	case keysDomain.AES128GCM, keysDomain.AES256GCM:
		return engine.DecryptGCM(envelope.Ciphertext, material, envelope.IV, envelope.Tag, aad)

	case keysDomain.AES128CBC, keysDomain.AES256CBC:
		if len(aad) > 0 {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "cbc mode does not support aad")
		}
		return engine.DecryptCBC(envelope.Ciphertext, material, envelope.IV)

	case keysDomain.RSA2048, keysDomain.RSA3072, keysDomain.RSA4096:
		priv, err := engine.ParseRSAPrivateKey(material)
		if err != nil {
			return nil, err
		}

		if len(envelope.WrappedKey) > 0 {
			return engine.HybridDecrypt(priv, engine.HybridResult{
				WrappedKey: envelope.WrappedKey,
				Ciphertext: envelope.Ciphertext,
				IV:         envelope.IV,
				Tag:        envelope.Tag,
			}, aad)
		}

		if len(aad) > 0 {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "direct oaep does not support aad")
		}
		return engine.DecryptOAEP(priv, envelope.Ciphertext)
	}

	return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "key algorithm does not support decryption")
}

// record emits exactly one audit entry per operation. Audit failure is logged
// and never masks the crypto result.
func (e *encryptionUseCase) record(ctx context.Context, operation string, id keysDomain.KeyID, size int, opErr error) {
	if e.audit == nil {
		return
	}

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
	if size > 0 {
		entry.Metadata = map[string]string{"payload_size": strconv.Itoa(size)}
	}

	if err := e.audit.Record(ctx, entry); err != nil {
		e.logger.Error("failed to record audit entry",
			slog.String("operation", operation),
			slog.String("error", err.Error()))
	}
}
