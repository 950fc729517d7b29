package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	auditUseCase "github.com/cryptellan/crypto-service/internal/audit/usecase"
)

// RunVerifyAuditLogs verifies cryptographic integrity of audit logs within a time range.
// Recomputes HMAC-SHA256 signatures over the canonical entry form for tamper detection.
//
// Requirements: Database must be migrated and AUDIT_SIGNING_SECRET configured.
func RunVerifyAuditLogs(
	ctx context.Context,
	auditUC auditUseCase.AuditUseCase,
	logger *slog.Logger,
	writer io.Writer,
	startDate, endDate string,
	format string,
) error {
	// Parse date strings to time.Time
	start, err := parseDate(startDate)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}

	end, err := parseDate(endDate)
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}

	// Validate time range
	if !end.After(start) {
		return fmt.Errorf("end date must be after start date")
	}

	logger.Info("verifying audit logs",
		slog.Time("start_date", start),
		slog.Time("end_date", end),
	)

	report, err := auditUC.Verify(ctx, auditDomain.Filter{
		Since: start,
		Until: end,
	})
	if err != nil {
		return fmt.Errorf("failed to verify audit logs: %w", err)
	}

	// Output result based on format
	if format == "json" {
		if err := outputVerifyJSON(writer, report); err != nil {
			return fmt.Errorf("failed to output JSON: %w", err)
		}
	} else {
		outputVerifyText(writer, report, start, end)
	}

	// Log summary
	logger.Info("verification completed",
		slog.Int("total_checked", report.Checked),
		slog.Int("invalid", len(report.Invalid)),
	)

	// Exit with error code if integrity check failed
	if len(report.Invalid) > 0 {
		return fmt.Errorf("integrity check failed: %d invalid signature(s)", len(report.Invalid))
	}

	return nil
}

// outputVerifyText outputs the verification result in human-readable text format.
func outputVerifyText(
	writer io.Writer,
	report *auditUseCase.VerificationReport,
	start, end time.Time,
) {
	_, _ = fmt.Fprintf(writer, "Audit Log Integrity Verification\n")
	_, _ = fmt.Fprintf(writer, "=================================\n\n")
	_, _ = fmt.Fprintf(writer,
		"Time Range: %s to %s\n\n",
		start.Format("2006-01-02 15:04:05"),
		end.Format("2006-01-02 15:04:05"),
	)

	_, _ = fmt.Fprintf(writer, "Total Checked:  %d\n", report.Checked)
	_, _ = fmt.Fprintf(writer, "Valid:          %d\n", report.Checked-len(report.Invalid))
	_, _ = fmt.Fprintf(writer, "Invalid:        %d\n\n", len(report.Invalid))

	switch {
	case len(report.Invalid) > 0:
		_, _ = fmt.Fprintf(writer, "WARNING: %d log(s) failed integrity check!\n\n", len(report.Invalid))
		_, _ = fmt.Fprintf(writer, "Invalid Log IDs:\n")
		for _, id := range report.Invalid {
			_, _ = fmt.Fprintf(writer, "  - %s\n", id)
		}
		_, _ = fmt.Fprintf(writer, "\nStatus: FAILED\n")
	case report.Checked == 0:
		_, _ = fmt.Fprintf(writer, "Status: No logs found in specified time range\n")
	default:
		_, _ = fmt.Fprintf(writer, "Status: PASSED\n")
	}
}

// outputVerifyJSON outputs the verification result in JSON format for machine consumption.
func outputVerifyJSON(writer io.Writer, report *auditUseCase.VerificationReport) error {
	invalidIDs := make([]string, 0, len(report.Invalid))
	for _, id := range report.Invalid {
		invalidIDs = append(invalidIDs, id.String())
	}

	result := map[string]interface{}{
		"total_checked": report.Checked,
		"valid_count":   report.Checked - len(report.Invalid),
		"invalid_count": len(report.Invalid),
		"invalid_logs":  invalidIDs,
		"passed":        len(report.Invalid) == 0,
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	_, _ = fmt.Fprintln(writer, string(jsonBytes))
	return nil
}
