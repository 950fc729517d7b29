package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	auditService "github.com/cryptellan/crypto-service/internal/audit/service"
	apperrors "github.com/cryptellan/crypto-service/internal/errors"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
	"github.com/cryptellan/crypto-service/internal/kms"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// auditUseCase implements the AuditUseCase interface. The signing secret is
// stored KEK-wrapped and unwrapped once on first use.
type auditUseCase struct {
	repo          AuditLogRepository
	signer        auditService.Signer
	provider      kms.Provider
	wrappedSecret []byte

	mu     sync.Mutex
	secret []byte
	unwrap singleflight.Group

	logger *slog.Logger
}

// NewAuditUseCase creates a new AuditUseCase. wrappedSecret is the audit
// signing secret wrapped under the KEK.
func NewAuditUseCase(
	repo AuditLogRepository,
	signer auditService.Signer,
	provider kms.Provider,
	wrappedSecret []byte,
	logger *slog.Logger,
) AuditUseCase {
	return &auditUseCase{
		repo:          repo,
		signer:        signer,
		provider:      provider,
		wrappedSecret: wrappedSecret,
		logger:        logger,
	}
}

// Record assigns the entry id, timestamp and signature, then appends it.
func (a *auditUseCase) Record(ctx context.Context, entry *auditDomain.Entry) error {
	if entry.Operation == "" {
		return apperrors.Wrap(apperrors.ErrAuditLogFailed, "operation is required")
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.Must(uuid.NewV7())
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	// An empty map and no map must canonicalize identically after a storage
	// round-trip.
	if len(entry.Metadata) == 0 {
		entry.Metadata = nil
	}

	secret, err := a.signingSecret(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrAuditLogFailed, err.Error())
	}

	entry.Signature, err = a.signer.Sign(secret, entry)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrAuditLogFailed, err.Error())
	}

	if err := a.repo.Create(ctx, entry); err != nil {
		return apperrors.Wrap(apperrors.ErrAuditLogFailed, err.Error())
	}
	return nil
}

// Query returns entries matching the filter, newest first. The limit defaults
// to 100 and caps at 1000.
func (a *auditUseCase) Query(ctx context.Context, filter auditDomain.Filter) ([]*auditDomain.Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultQueryLimit
	}
	if filter.Limit > maxQueryLimit {
		filter.Limit = maxQueryLimit
	}
	return a.repo.Query(ctx, filter)
}

// Verify recomputes the signature of every entry matching the filter.
func (a *auditUseCase) Verify(ctx context.Context, filter auditDomain.Filter) (*VerificationReport, error) {
	entries, err := a.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	secret, err := a.signingSecret(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{Checked: len(entries)}
	for _, entry := range entries {
		if err := a.signer.Verify(secret, entry); err != nil {
			if !apperrors.Is(err, apperrors.ErrSignatureInvalid) {
				return nil, err
			}
			report.Invalid = append(report.Invalid, entry.ID)
			a.logger.Warn("audit entry failed signature verification",
				slog.String("entry_id", entry.ID.String()),
				slog.String("operation", entry.Operation))
		}
	}
	return report, nil
}

// Close zeroes the in-memory signing secret.
func (a *auditUseCase) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	keysDomain.Zero(a.secret)
	a.secret = nil
	return nil
}

// signingSecret unwraps the audit signing secret on first use and keeps it in
// memory until Close. The mutex guards only the cached secret; the provider
// call runs outside it, coalesced through singleflight so concurrent first
// writers share one unwrap.
func (a *auditUseCase) signingSecret(ctx context.Context) ([]byte, error) {
	a.mu.Lock()
	secret := a.secret
	a.mu.Unlock()
	if secret != nil {
		return secret, nil
	}

	v, err, _ := a.unwrap.Do("signing-secret", func() (any, error) {
		unwrapped, err := a.provider.Unwrap(ctx, a.wrappedSecret)
		if err != nil {
			return nil, err
		}

		a.mu.Lock()
		defer a.mu.Unlock()
		if a.secret == nil {
			a.secret = unwrapped
		} else {
			keysDomain.Zero(unwrapped)
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
