// Package http provides HTTP handlers for key lifecycle management operations.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cryptellan/crypto-service/internal/httputil"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
	"github.com/cryptellan/crypto-service/internal/keys/http/dto"
	keysUseCase "github.com/cryptellan/crypto-service/internal/keys/usecase"
	customValidation "github.com/cryptellan/crypto-service/internal/validation"
)

// KeyHandler handles HTTP requests for key lifecycle operations. Plaintext
// key material is never exposed over HTTP; handlers only ever return metadata.
type KeyHandler struct {
	keyUseCase keysUseCase.KeyUseCase
	logger     *slog.Logger
}

// NewKeyHandler creates a new key handler with required dependencies.
func NewKeyHandler(keyUseCase keysUseCase.KeyUseCase, logger *slog.Logger) *KeyHandler {
	return &KeyHandler{
		keyUseCase: keyUseCase,
		logger:     logger,
	}
}

// GenerateHandler generates a new key.
// POST /v1/keys - Returns 201 Created with key metadata. Keys requested with
// dual_control start in PENDING_ACTIVATION and must be activated before use.
func (h *KeyHandler) GenerateHandler(c *gin.Context) {
	var req dto.GenerateKeyRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	params, err := req.Params()
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	keyID, err := h.keyUseCase.Generate(c.Request.Context(), params)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	meta, err := h.keyUseCase.Metadata(c.Request.Context(), keyID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapKeyToResponse(meta))
}

// GetHandler retrieves key metadata by identifier.
// GET /v1/keys/:id - Returns 200 OK with key metadata. Keys pending
// destruction or destroyed return 404.
func (h *KeyHandler) GetHandler(c *gin.Context) {
	keyID, ok := h.parseKeyID(c)
	if !ok {
		return
	}

	meta, err := h.keyUseCase.Metadata(c.Request.Context(), keyID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapKeyToResponse(meta))
}

// ListHandler lists the keys of a namespace.
// GET /v1/keys?namespace=payments - Returns 200 OK with key metadata list.
func (h *KeyHandler) ListHandler(c *gin.Context) {
	namespace := c.Query("namespace")
	if namespace == "" {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("namespace query parameter is required"),
			h.logger)
		return
	}

	metas, err := h.keyUseCase.List(c.Request.Context(), namespace)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapKeysToListResponse(metas))
}

// ActivateHandler approves a PENDING_ACTIVATION key for use.
// POST /v1/keys/:id/activate - Returns 200 OK with updated metadata.
// Activating a key in any other state returns 409.
func (h *KeyHandler) ActivateHandler(c *gin.Context) {
	keyID, ok := h.parseKeyID(c)
	if !ok {
		return
	}

	if err := h.keyUseCase.Activate(c.Request.Context(), keyID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	meta, err := h.keyUseCase.Metadata(c.Request.Context(), keyID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapKeyToResponse(meta))
}

// RotateHandler issues an independent successor for an active key.
// POST /v1/keys/:id/rotate - Returns 201 Created with the successor's
// metadata. The old key moves to DEPRECATED and keeps serving decrypt and
// verify until its grace period ends.
func (h *KeyHandler) RotateHandler(c *gin.Context) {
	keyID, ok := h.parseKeyID(c)
	if !ok {
		return
	}

	successorID, err := h.keyUseCase.Rotate(c.Request.Context(), keyID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	meta, err := h.keyUseCase.Metadata(c.Request.Context(), successorID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapKeyToResponse(meta))
}

// DeleteHandler schedules a key for destruction.
// DELETE /v1/keys/:id - Returns 204 No Content. The key behaves as not found
// from this call on; material is erased by the destruction sweep.
func (h *KeyHandler) DeleteHandler(c *gin.Context) {
	keyID, ok := h.parseKeyID(c)
	if !ok {
		return
	}

	if err := h.keyUseCase.Delete(c.Request.Context(), keyID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// parseKeyID extracts and parses the key identifier URL parameter. On failure
// it writes the validation response and returns ok=false.
func (h *KeyHandler) parseKeyID(c *gin.Context) (keysDomain.KeyID, bool) {
	keyID, err := keysDomain.ParseKeyID(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid key ID format: must be namespace:uuid:version"),
			h.logger)
		return keysDomain.KeyID{}, false
	}
	return keyID, true
}
