package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditUseCase "github.com/cryptellan/crypto-service/internal/audit/usecase"
)

func TestRunVerifyAuditLogs(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("all-valid", func(t *testing.T) {
		useCase := &fakeAuditUseCase{
			report: &auditUseCase.VerificationReport{Checked: 10},
		}
		var buf bytes.Buffer

		err := RunVerifyAuditLogs(ctx, useCase, logger, &buf, "2026-08-01", "2026-08-25", "text")
		require.NoError(t, err)

		assert.Contains(t, buf.String(), "Status: PASSED")
		assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), useCase.lastFilter.Since)
		assert.Equal(t, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), useCase.lastFilter.Until)
	})

	t.Run("invalid-signatures", func(t *testing.T) {
		invalidID := uuid.Must(uuid.NewV7())
		useCase := &fakeAuditUseCase{
			report: &auditUseCase.VerificationReport{
				Checked: 10,
				Invalid: []uuid.UUID{invalidID},
			},
		}
		var buf bytes.Buffer

		err := RunVerifyAuditLogs(ctx, useCase, logger, &buf, "2026-08-01", "2026-08-25", "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "integrity check failed")
		assert.Contains(t, buf.String(), invalidID.String())
		assert.Contains(t, buf.String(), "Status: FAILED")
	})

	t.Run("json-output", func(t *testing.T) {
		useCase := &fakeAuditUseCase{
			report: &auditUseCase.VerificationReport{Checked: 3},
		}
		var buf bytes.Buffer

		err := RunVerifyAuditLogs(ctx, useCase, logger, &buf, "2026-08-01", "2026-08-25", "json")
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"passed": true`)
		assert.Contains(t, buf.String(), `"total_checked": 3`)
	})

	t.Run("invalid-date", func(t *testing.T) {
		useCase := &fakeAuditUseCase{}

		err := RunVerifyAuditLogs(ctx, useCase, logger, io.Discard, "yesterday", "2026-08-25", "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid start date")
	})

	t.Run("end-before-start", func(t *testing.T) {
		useCase := &fakeAuditUseCase{}

		err := RunVerifyAuditLogs(ctx, useCase, logger, io.Discard, "2026-08-25", "2026-08-01", "text")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "end date must be after start date")
	})
}
