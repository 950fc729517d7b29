package usecase

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	auditService "github.com/cryptellan/crypto-service/internal/audit/service"
	apperrors "github.com/cryptellan/crypto-service/internal/errors"
)

type fakeAuditRepo struct {
	mu        sync.Mutex
	entries   []*auditDomain.Entry
	createErr error
}

func (f *fakeAuditRepo) Create(ctx context.Context, entry *auditDomain.Entry) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *entry
	f.entries = append(f.entries, &stored)
	return nil
}

func (f *fakeAuditRepo) Query(ctx context.Context, filter auditDomain.Filter) ([]*auditDomain.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*auditDomain.Entry
	for _, entry := range f.entries {
		if filter.Operation != "" && entry.Operation != filter.Operation {
			continue
		}
		if filter.KeyID != "" && entry.KeyID != filter.KeyID {
			continue
		}
		if filter.CorrelationID != "" && entry.CorrelationID != filter.CorrelationID {
			continue
		}
		copied := *entry
		out = append(out, &copied)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// fakeUnwrapProvider returns the wrapped blob minus a fixed prefix.
type fakeUnwrapProvider struct {
	mu        sync.Mutex
	unwrapErr error
	unwraps   int
	delay     time.Duration
}

var secretPrefix = []byte("wrapped:")

func (f *fakeUnwrapProvider) Wrap(ctx context.Context, plaintext []byte) ([]byte, error) {
	return append(append([]byte{}, secretPrefix...), plaintext...), nil
}

func (f *fakeUnwrapProvider) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	f.mu.Lock()
	f.unwraps++
	unwrapErr := f.unwrapErr
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if unwrapErr != nil {
		return nil, unwrapErr
	}
	out := make([]byte, len(wrapped)-len(secretPrefix))
	copy(out, bytes.TrimPrefix(wrapped, secretPrefix))
	return out, nil
}

func (f *fakeUnwrapProvider) KekID() string { return "base64key://fake-kek" }
func (f *fakeUnwrapProvider) Close() error  { return nil }

func newAuditFixture(t *testing.T, repo *fakeAuditRepo) (AuditUseCase, *fakeUnwrapProvider) {
	t.Helper()
	provider := &fakeUnwrapProvider{}
	wrapped, err := provider.Wrap(context.Background(), []byte("test-audit-secret"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	useCase := NewAuditUseCase(repo, auditService.NewSigner(), provider, wrapped, logger)
	t.Cleanup(func() { _ = useCase.Close() })
	return useCase, provider
}

func TestAuditUseCase_Record(t *testing.T) {
	ctx := context.Background()
	repo := &fakeAuditRepo{}
	useCase, provider := newAuditFixture(t, repo)

	entry := &auditDomain.Entry{
		Operation:     auditDomain.OpEncrypt,
		CorrelationID: "corr-1",
		KeyID:         "payments:0190a1b2-0000-7000-8000-000000000000:1",
		Success:       true,
	}
	require.NoError(t, useCase.Record(ctx, entry))

	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Len(t, entry.Signature, 32)

	require.Len(t, repo.entries, 1)

	// A second record reuses the unwrapped secret.
	require.NoError(t, useCase.Record(ctx, &auditDomain.Entry{Operation: auditDomain.OpDecrypt}))
	assert.Equal(t, 1, provider.unwraps)
}

func TestAuditUseCase_Record_ConcurrentFirstUse(t *testing.T) {
	ctx := context.Background()
	repo := &fakeAuditRepo{}
	useCase, provider := newAuditFixture(t, repo)
	provider.delay = 50 * time.Millisecond

	// Concurrent first writers share one slow unwrap instead of queueing
	// behind it one by one.
	const writers = 16
	errs := make([]error, writers)
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = useCase.Record(ctx, &auditDomain.Entry{
				Operation: auditDomain.OpEncrypt,
				Success:   true,
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}
	assert.Equal(t, 1, provider.unwraps)
	assert.Less(t, time.Since(start), time.Duration(writers)*provider.delay)
	assert.Len(t, repo.entries, writers)

	report, err := useCase.Verify(ctx, auditDomain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, writers, report.Checked)
	assert.Empty(t, report.Invalid)
}

func TestAuditUseCase_Record_MissingOperation(t *testing.T) {
	repo := &fakeAuditRepo{}
	useCase, _ := newAuditFixture(t, repo)

	err := useCase.Record(context.Background(), &auditDomain.Entry{})
	assert.ErrorIs(t, err, apperrors.ErrAuditLogFailed)
	assert.Empty(t, repo.entries)
}

func TestAuditUseCase_Record_RepositoryFailure(t *testing.T) {
	repo := &fakeAuditRepo{createErr: apperrors.New("connection reset")}
	useCase, _ := newAuditFixture(t, repo)

	err := useCase.Record(context.Background(), &auditDomain.Entry{Operation: auditDomain.OpSign})
	assert.ErrorIs(t, err, apperrors.ErrAuditLogFailed)
}

func TestAuditUseCase_Query_LimitDefaults(t *testing.T) {
	ctx := context.Background()
	repo := &fakeAuditRepo{}
	useCase, _ := newAuditFixture(t, repo)

	for i := 0; i < 3; i++ {
		require.NoError(t, useCase.Record(ctx, &auditDomain.Entry{
			Operation: auditDomain.OpEncrypt,
			KeyID:     "payments:0190a1b2-0000-7000-8000-000000000000:1",
		}))
	}
	require.NoError(t, useCase.Record(ctx, &auditDomain.Entry{Operation: auditDomain.OpSign}))

	entries, err := useCase.Query(ctx, auditDomain.Filter{Operation: auditDomain.OpEncrypt})
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	entries, err = useCase.Query(ctx, auditDomain.Filter{Operation: auditDomain.OpEncrypt, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAuditUseCase_Verify(t *testing.T) {
	ctx := context.Background()
	repo := &fakeAuditRepo{}
	useCase, _ := newAuditFixture(t, repo)

	for i := 0; i < 3; i++ {
		require.NoError(t, useCase.Record(ctx, &auditDomain.Entry{
			Operation: auditDomain.OpEncrypt,
			Success:   true,
		}))
	}

	report, err := useCase.Verify(ctx, auditDomain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Empty(t, report.Invalid)

	// Tamper with a stored entry behind the use case's back.
	repo.mu.Lock()
	repo.entries[1].Success = false
	tampered := repo.entries[1].ID
	repo.mu.Unlock()

	report, err = useCase.Verify(ctx, auditDomain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	require.Len(t, report.Invalid, 1)
	assert.Equal(t, tampered, report.Invalid[0])
}

func TestAuditUseCase_Record_TimestampPreserved(t *testing.T) {
	ctx := context.Background()
	repo := &fakeAuditRepo{}
	useCase, _ := newAuditFixture(t, repo)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := &auditDomain.Entry{Operation: auditDomain.OpKeyGenerate, CreatedAt: at}
	require.NoError(t, useCase.Record(ctx, entry))
	assert.Equal(t, at, entry.CreatedAt)
}
