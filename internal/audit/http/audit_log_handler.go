// Package http provides HTTP handlers for audit trail operations.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	auditDomain "github.com/cryptellan/crypto-service/internal/audit/domain"
	"github.com/cryptellan/crypto-service/internal/audit/http/dto"
	auditUseCase "github.com/cryptellan/crypto-service/internal/audit/usecase"
	"github.com/cryptellan/crypto-service/internal/httputil"
)

// AuditLogHandler handles HTTP requests for audit log operations. The trail
// is append-only; this handler only ever reads it.
type AuditLogHandler struct {
	auditUseCase auditUseCase.AuditUseCase
	logger       *slog.Logger
}

// NewAuditLogHandler creates a new audit log handler with required dependencies.
func NewAuditLogHandler(useCase auditUseCase.AuditUseCase, logger *slog.Logger) *AuditLogHandler {
	return &AuditLogHandler{
		auditUseCase: useCase,
		logger:       logger,
	}
}

// ListHandler retrieves audit logs with pagination and optional filtering.
// GET /v1/audit-logs?offset=0&limit=50&key_id=...&operation=...&correlation_id=...
// &created_at_from=2026-08-01T00:00:00Z&created_at_to=2026-08-25T23:59:59Z
// Returns 200 OK with audit entries ordered by created_at descending (newest
// first). Timestamp boundaries are RFC3339, converted to UTC, both inclusive.
func (h *AuditLogHandler) ListHandler(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	entries, err := h.auditUseCase.Query(c.Request.Context(), filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapAuditLogsToListResponse(entries))
}

// VerifyHandler recomputes the signature of every matching audit entry.
// GET /v1/audit-logs/verify - Accepts the same filters as ListHandler.
// Returns 200 OK with the number of entries checked and the ids whose
// signature no longer matches their content.
func (h *AuditLogHandler) VerifyHandler(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	report, err := h.auditUseCase.Verify(c.Request.Context(), filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapVerificationReportToResponse(report))
}

// parseFilter builds an audit filter from the request query parameters.
func (h *AuditLogHandler) parseFilter(c *gin.Context) (auditDomain.Filter, error) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		return auditDomain.Filter{}, err
	}

	filter := auditDomain.Filter{
		CorrelationID: c.Query("correlation_id"),
		KeyID:         c.Query("key_id"),
		Operation:     c.Query("operation"),
		Limit:         limit,
		Offset:        offset,
	}

	if fromStr := c.Query("created_at_from"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return auditDomain.Filter{}, fmt.Errorf(
				"invalid created_at_from format: must be RFC3339 (e.g., 2026-08-01T00:00:00Z)")
		}
		filter.Since = parsed.UTC()
	}

	if toStr := c.Query("created_at_to"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return auditDomain.Filter{}, fmt.Errorf(
				"invalid created_at_to format: must be RFC3339 (e.g., 2026-08-25T23:59:59Z)")
		}
		filter.Until = parsed.UTC()
	}

	if !filter.Since.IsZero() && !filter.Until.IsZero() && filter.Since.After(filter.Until) {
		return auditDomain.Filter{}, fmt.Errorf(
			"created_at_from must be before or equal to created_at_to")
	}

	return filter, nil
}
