package usecase

import (
	"context"
	"time"

	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
	"github.com/cryptellan/crypto-service/internal/metrics"
)

// keyUseCaseWithMetrics decorates KeyUseCase with metrics instrumentation.
type keyUseCaseWithMetrics struct {
	next    KeyUseCase
	metrics metrics.BusinessMetrics
}

// NewKeyUseCaseWithMetrics wraps a KeyUseCase with metrics recording.
func NewKeyUseCaseWithMetrics(useCase KeyUseCase, m metrics.BusinessMetrics) KeyUseCase {
	return &keyUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (k *keyUseCaseWithMetrics) observe(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	k.metrics.RecordOperation(ctx, "keys", operation, status)
	k.metrics.RecordDuration(ctx, "keys", operation, time.Since(start), status)
}

// Generate records metrics for key generation operations.
func (k *keyUseCaseWithMetrics) Generate(ctx context.Context, params keysDomain.GenerationParams) (keysDomain.KeyID, error) {
	start := time.Now()
	id, err := k.next.Generate(ctx, params)
	k.observe(ctx, "key_generate", start, err)
	return id, err
}

// Activate records metrics for key activation operations.
func (k *keyUseCaseWithMetrics) Activate(ctx context.Context, id keysDomain.KeyID) error {
	start := time.Now()
	err := k.next.Activate(ctx, id)
	k.observe(ctx, "key_activate", start, err)
	return err
}

// Rotate records metrics for key rotation operations.
func (k *keyUseCaseWithMetrics) Rotate(ctx context.Context, id keysDomain.KeyID) (keysDomain.KeyID, error) {
	start := time.Now()
	newID, err := k.next.Rotate(ctx, id)
	k.observe(ctx, "key_rotate", start, err)
	return newID, err
}

// Material records metrics for key material resolution.
func (k *keyUseCaseWithMetrics) Material(
	ctx context.Context,
	id keysDomain.KeyID,
	op keysDomain.Operation,
) ([]byte, *keysDomain.KeyMetadata, error) {
	start := time.Now()
	material, meta, err := k.next.Material(ctx, id, op)
	k.observe(ctx, "key_material", start, err)
	return material, meta, err
}

// Metadata records metrics for key metadata lookups.
func (k *keyUseCaseWithMetrics) Metadata(ctx context.Context, id keysDomain.KeyID) (*keysDomain.KeyMetadata, error) {
	start := time.Now()
	meta, err := k.next.Metadata(ctx, id)
	k.observe(ctx, "key_metadata", start, err)
	return meta, err
}

// List records metrics for key listing operations.
func (k *keyUseCaseWithMetrics) List(ctx context.Context, namespace string) ([]*keysDomain.KeyMetadata, error) {
	start := time.Now()
	metas, err := k.next.List(ctx, namespace)
	k.observe(ctx, "key_list", start, err)
	return metas, err
}

// Delete records metrics for key deletion operations.
func (k *keyUseCaseWithMetrics) Delete(ctx context.Context, id keysDomain.KeyID) error {
	start := time.Now()
	err := k.next.Delete(ctx, id)
	k.observe(ctx, "key_delete", start, err)
	return err
}

// PurgeDestroyed records metrics for key purge operations.
func (k *keyUseCaseWithMetrics) PurgeDestroyed(ctx context.Context) (int, error) {
	start := time.Now()
	purged, err := k.next.PurgeDestroyed(ctx)
	k.observe(ctx, "key_purge", start, err)
	return purged, err
}
