package usecase

import (
	"context"
	"crypto/elliptic"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	"github.com/cryptellan/crypto-service/internal/crypto/engine"
	"github.com/cryptellan/crypto-service/internal/database"
	apperrors "github.com/cryptellan/crypto-service/internal/errors"
	"github.com/cryptellan/crypto-service/internal/keys/cache"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
	"github.com/cryptellan/crypto-service/internal/kms"
)

// Config carries the lifecycle policy knobs for the key use case.
type Config struct {
	// GracePeriod is how long a DEPRECATED key keeps serving decrypt and
	// verify, measured from its rotation time.
	GracePeriod time.Duration

	// DefaultValidity is applied when generation params carry no validity
	// period.
	DefaultValidity time.Duration
}

// keyUseCase implements the KeyUseCase interface.
type keyUseCase struct {
	txManager database.TxManager
	keyRepo   KeyRepository
	provider  kms.Provider
	cache     *cache.KeyCache
	audit     AuditRecorder
	cfg       Config
	logger    *slog.Logger
}

// NewKeyUseCase creates a new KeyUseCase instance.
func NewKeyUseCase(
	txManager database.TxManager,
	keyRepo KeyRepository,
	provider kms.Provider,
	keyCache *cache.KeyCache,
	audit AuditRecorder,
	cfg Config,
	logger *slog.Logger,
) KeyUseCase {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 720 * time.Hour
	}
	if cfg.DefaultValidity <= 0 {
		cfg.DefaultValidity = 365 * 24 * time.Hour
	}
	return &keyUseCase{
		txManager: txManager,
		keyRepo:   keyRepo,
		provider:  provider,
		cache:     keyCache,
		audit:     audit,
		cfg:       cfg,
		logger:    logger,
	}
}

// Generate creates a new key with fresh material, wraps it under the KEK and
// persists it. The key starts ACTIVE, or PENDING_ACTIVATION when the params
// require dual control.
func (k *keyUseCase) Generate(ctx context.Context, params keysDomain.GenerationParams) (keysDomain.KeyID, error) {
	id, err := k.generate(ctx, params)
	k.recordLifecycle(ctx, auditDomain.OpKeyGenerate, id, err)
	return id, err
}

func (k *keyUseCase) generate(ctx context.Context, params keysDomain.GenerationParams) (keysDomain.KeyID, error) {
	if params.Namespace == "" {
		return keysDomain.KeyID{}, apperrors.Wrap(apperrors.ErrInvalidInput, "namespace is required")
	}
	if !params.Algorithm.IsValid() {
		return keysDomain.KeyID{}, keysDomain.ErrUnsupportedAlgorithm
	}

	material, keyType, err := generateMaterial(params.Algorithm)
	if err != nil {
		return keysDomain.KeyID{}, err
	}
	defer keysDomain.Zero(material)

	wrapped, err := k.provider.Wrap(ctx, material)
	if err != nil {
		return keysDomain.KeyID{}, err
	}

	validity := params.ValidityPeriod
	if validity <= 0 {
		validity = k.cfg.DefaultValidity
	}

	state := keysDomain.Active
	if params.DualControl {
		state = keysDomain.PendingActivation
	}

	now := time.Now().UTC()
	key := &keysDomain.EncryptedKey{
		EncryptedMaterial: wrapped,
		Nonce:             []byte{},
		KekID:             k.provider.KekID(),
		Metadata: keysDomain.KeyMetadata{
			ID:                keysDomain.NewKeyID(params.Namespace),
			Algorithm:         params.Algorithm,
			Type:              keyType,
			State:             state,
			CreatedAt:         now,
			ExpiresAt:         now.Add(validity),
			OwnerService:      params.OwnerService,
			AllowedOperations: params.AllowedOperations,
		},
	}

	if err := k.keyRepo.Store(ctx, key); err != nil {
		return keysDomain.KeyID{}, err
	}

	return key.Metadata.ID, nil
}

// Activate approves a PENDING_ACTIVATION key for use.
func (k *keyUseCase) Activate(ctx context.Context, id keysDomain.KeyID) error {
	err := k.activate(ctx, id)
	k.recordLifecycle(ctx, auditDomain.OpKeyActivate, id, err)
	return err
}

func (k *keyUseCase) activate(ctx context.Context, id keysDomain.KeyID) error {
	key, err := k.getReachable(ctx, id)
	if err != nil {
		return err
	}

	if !key.Metadata.State.CanTransition(keysDomain.Active) {
		return apperrors.Wrap(apperrors.ErrKeyInvalidState, "key is not pending activation")
	}

	key.Metadata.State = keysDomain.Active
	return k.keyRepo.UpdateMetadata(ctx, &key.Metadata)
}

// Rotate issues an independent successor key and deprecates the old one. The
// successor gets a fresh identifier and fresh material; the algorithm, owner
// and allowed operations carry over. Both writes commit in one transaction.
func (k *keyUseCase) Rotate(ctx context.Context, id keysDomain.KeyID) (keysDomain.KeyID, error) {
	newID, err := k.rotate(ctx, id)

	entry := k.lifecycleEntry(ctx, auditDomain.OpKeyRotate, id, err)
	if err == nil {
		entry.Metadata = map[string]string{"successor_key_id": newID.String()}
	}
	k.record(ctx, entry)

	return newID, err
}

func (k *keyUseCase) rotate(ctx context.Context, id keysDomain.KeyID) (keysDomain.KeyID, error) {
	old, err := k.getReachable(ctx, id)
	if err != nil {
		return keysDomain.KeyID{}, err
	}

	if old.Metadata.State != keysDomain.Active {
		return keysDomain.KeyID{}, apperrors.Wrap(apperrors.ErrKeyInvalidState, "only active keys can be rotated")
	}

	material, keyType, err := generateMaterial(old.Metadata.Algorithm)
	if err != nil {
		return keysDomain.KeyID{}, err
	}
	defer keysDomain.Zero(material)

	wrapped, err := k.provider.Wrap(ctx, material)
	if err != nil {
		return keysDomain.KeyID{}, err
	}

	now := time.Now().UTC()
	previous := old.Metadata.ID
	successor := &keysDomain.EncryptedKey{
		EncryptedMaterial: wrapped,
		Nonce:             []byte{},
		KekID:             k.provider.KekID(),
		Metadata: keysDomain.KeyMetadata{
			ID:                keysDomain.NewKeyID(id.Namespace),
			Algorithm:         old.Metadata.Algorithm,
			Type:              keyType,
			State:             keysDomain.Active,
			CreatedAt:         now,
			ExpiresAt:         now.Add(old.Metadata.ExpiresAt.Sub(old.Metadata.CreatedAt)),
			PreviousVersion:   &previous,
			OwnerService:      old.Metadata.OwnerService,
			AllowedOperations: old.Metadata.AllowedOperations,
		},
	}

	err = k.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := k.keyRepo.Store(ctx, successor); err != nil {
			return err
		}

		rotatedAt := now
		old.Metadata.State = keysDomain.Deprecated
		old.Metadata.RotatedAt = &rotatedAt
		return k.keyRepo.UpdateMetadata(ctx, &old.Metadata)
	})
	if err != nil {
		return keysDomain.KeyID{}, err
	}

	return successor.Metadata.ID, nil
}

// Material resolves plaintext key material for an operation. The KMS unwrap
// is cached; lifecycle and policy checks run on every call.
func (k *keyUseCase) Material(
	ctx context.Context,
	id keysDomain.KeyID,
	op keysDomain.Operation,
) ([]byte, *keysDomain.KeyMetadata, error) {
	key, err := k.getReachable(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	meta := key.Metadata

	if meta.State == keysDomain.PendingActivation {
		return nil, nil, apperrors.Wrap(apperrors.ErrKeyInvalidState, "key is pending activation")
	}

	if meta.GraceExpired(k.cfg.GracePeriod, time.Now().UTC()) {
		// The grace period ran out; the key leaves circulation now.
		meta.State = keysDomain.PendingDestruction
		if err := k.keyRepo.UpdateMetadata(ctx, &meta); err != nil {
			return nil, nil, err
		}
		k.cache.Purge(id.String())
		return nil, nil, keysDomain.ErrKeyNotFound
	}

	if meta.State == keysDomain.Deprecated && protectiveOp(op) {
		return nil, nil, apperrors.Wrap(apperrors.ErrKeyDeprecated, "deprecated key cannot protect new data")
	}

	if time.Now().UTC().After(meta.ExpiresAt) && protectiveOp(op) {
		return nil, nil, apperrors.Wrap(apperrors.ErrKeyInvalidState, "key validity period elapsed")
	}

	if !meta.AllowsOperation(op) {
		return nil, nil, keysDomain.ErrOperationNotAllowed
	}

	material, err := k.cache.GetOrLoad(ctx, id.String(), func(ctx context.Context) ([]byte, error) {
		return k.provider.Unwrap(ctx, key.EncryptedMaterial)
	})
	if err != nil {
		return nil, nil, err
	}

	if err := k.keyRepo.IncrementUsage(ctx, id); err != nil {
		k.logger.Warn("failed to increment key usage",
			slog.String("key_id", id.String()),
			slog.String("error", err.Error()))
	}

	return material, &meta, nil
}

// Metadata returns key metadata without material.
func (k *keyUseCase) Metadata(ctx context.Context, id keysDomain.KeyID) (*keysDomain.KeyMetadata, error) {
	key, err := k.getReachable(ctx, id)
	if err != nil {
		return nil, err
	}
	return &key.Metadata, nil
}

// List returns the metadata of every reachable key in a namespace.
func (k *keyUseCase) List(ctx context.Context, namespace string) ([]*keysDomain.KeyMetadata, error) {
	metas, err := k.keyRepo.ListByNamespace(ctx, namespace)
	if err != nil {
		return nil, err
	}

	reachable := make([]*keysDomain.KeyMetadata, 0, len(metas))
	for _, meta := range metas {
		if meta.State.Reachable() {
			reachable = append(reachable, meta)
		}
	}
	return reachable, nil
}

// Delete marks a key PENDING_DESTRUCTION and purges its cached material.
func (k *keyUseCase) Delete(ctx context.Context, id keysDomain.KeyID) error {
	err := k.delete(ctx, id)
	k.recordLifecycle(ctx, auditDomain.OpKeyDelete, id, err)
	return err
}

func (k *keyUseCase) delete(ctx context.Context, id keysDomain.KeyID) error {
	key, err := k.getReachable(ctx, id)
	if err != nil {
		return err
	}

	if !key.Metadata.State.CanTransition(keysDomain.PendingDestruction) {
		return apperrors.Wrap(apperrors.ErrKeyInvalidState, "key cannot be deleted in its current state")
	}

	key.Metadata.State = keysDomain.PendingDestruction
	if err := k.keyRepo.UpdateMetadata(ctx, &key.Metadata); err != nil {
		return err
	}

	k.cache.Purge(id.String())
	return nil
}

// PurgeDestroyed finalizes every PENDING_DESTRUCTION key: the state becomes
// DESTROYED and the stored material is erased.
func (k *keyUseCase) PurgeDestroyed(ctx context.Context) (int, error) {
	metas, err := k.keyRepo.ListByState(ctx, keysDomain.PendingDestruction)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, meta := range metas {
		if err := k.keyRepo.Destroy(ctx, meta.ID); err != nil {
			return purged, err
		}
		k.cache.Purge(meta.ID.String())
		k.recordLifecycle(ctx, auditDomain.OpKeyPurge, meta.ID, nil)
		purged++
	}

	return purged, nil
}

// getReachable loads a key, mapping unreachable lifecycle states to not found.
func (k *keyUseCase) getReachable(ctx context.Context, id keysDomain.KeyID) (*keysDomain.EncryptedKey, error) {
	key, err := k.keyRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !key.Metadata.State.Reachable() {
		return nil, keysDomain.ErrKeyNotFound
	}
	return key, nil
}

// protectiveOp reports whether the operation protects new data, which
// deprecated and expired keys must refuse.
func protectiveOp(op keysDomain.Operation) bool {
	return op == keysDomain.OpEncrypt || op == keysDomain.OpSign || op == keysDomain.OpWrap
}

// generateMaterial produces fresh key material for the algorithm. Asymmetric
// material is PKCS#8 DER.
func generateMaterial(algorithm keysDomain.Algorithm) ([]byte, keysDomain.KeyType, error) {
	switch algorithm {
	case keysDomain.AES128GCM, keysDomain.AES256GCM, keysDomain.AES128CBC, keysDomain.AES256CBC:
		material, err := engine.GenerateSymmetricKey(algorithm.KeySize())
		if err != nil {
			return nil, "", err
		}
		return material, keysDomain.Symmetric, nil

	case keysDomain.RSA2048, keysDomain.RSA3072, keysDomain.RSA4096:
		bits := map[keysDomain.Algorithm]int{
			keysDomain.RSA2048: 2048,
			keysDomain.RSA3072: 3072,
			keysDomain.RSA4096: 4096,
		}[algorithm]
		priv, err := engine.GenerateRSAKey(bits)
		if err != nil {
			return nil, "", err
		}
		material, err := engine.MarshalPrivateKey(priv)
		if err != nil {
			return nil, "", err
		}
		return material, keysDomain.AsymmetricPrivate, nil

	case keysDomain.ECDSAP256, keysDomain.ECDSAP384, keysDomain.ECDSAP521:
		curve := map[keysDomain.Algorithm]elliptic.Curve{
			keysDomain.ECDSAP256: elliptic.P256(),
			keysDomain.ECDSAP384: elliptic.P384(),
			keysDomain.ECDSAP521: elliptic.P521(),
		}[algorithm]
		priv, err := engine.GenerateECDSAKey(curve)
		if err != nil {
			return nil, "", err
		}
		material, err := engine.MarshalPrivateKey(priv)
		if err != nil {
			return nil, "", err
		}
		return material, keysDomain.AsymmetricPrivate, nil
	}

	return nil, "", keysDomain.ErrUnsupportedAlgorithm
}

// lifecycleEntry builds an audit entry for a lifecycle operation.
func (k *keyUseCase) lifecycleEntry(ctx context.Context, operation string, id keysDomain.KeyID, opErr error) *auditDomain.Entry {
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

// recordLifecycle records a lifecycle audit entry, logging on failure.
func (k *keyUseCase) recordLifecycle(ctx context.Context, operation string, id keysDomain.KeyID, opErr error) {
	k.record(ctx, k.lifecycleEntry(ctx, operation, id, opErr))
}

func (k *keyUseCase) record(ctx context.Context, entry *auditDomain.Entry) {
	if k.audit == nil {
		return
	}
	if err := k.audit.Record(ctx, entry); err != nil {
		k.logger.Error("failed to record audit entry",
			slog.String("operation", entry.Operation),
			slog.String("error", err.Error()))
	}
}
