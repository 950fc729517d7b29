// Package http provides HTTP handlers for payload encryption operations.
package http

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cryptellan/crypto-service/internal/encryption/http/dto"
	encryptionUseCase "github.com/cryptellan/crypto-service/internal/encryption/usecase"
	"github.com/cryptellan/crypto-service/internal/httputil"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
	"github.com/cryptellan/crypto-service/internal/validation"
)

// EncryptionHandler handles HTTP requests for encrypt and decrypt operations.
type EncryptionHandler struct {
	encryptionUseCase encryptionUseCase.EncryptionUseCase
	logger            *slog.Logger
}

// NewEncryptionHandler creates a new encryption handler with required dependencies.
func NewEncryptionHandler(
	useCase encryptionUseCase.EncryptionUseCase,
	logger *slog.Logger,
) *EncryptionHandler {
	return &EncryptionHandler{
		encryptionUseCase: useCase,
		logger:            logger,
	}
}

// EncryptHandler encrypts a payload under a managed key.
// POST /v1/crypto/encrypt - Returns 200 OK with the envelope. The envelope
// shape depends on the key's algorithm; callers must store every field.
func (h *EncryptionHandler) EncryptHandler(c *gin.Context) {
	var req dto.EncryptRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, validation.WrapValidationError(err), h.logger)
		return
	}

	keyID, err := keysDomain.ParseKeyID(req.KeyID)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	plaintext, err := base64.StdEncoding.DecodeString(req.Plaintext)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	defer keysDomain.Zero(plaintext)

	aad, err := base64.StdEncoding.DecodeString(req.AAD)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	envelope, err := h.encryptionUseCase.Encrypt(c.Request.Context(), keyID, plaintext, aad)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEnvelopeToResponse(req.KeyID, envelope))
}

// DecryptHandler recovers the plaintext from an envelope.
// POST /v1/crypto/decrypt - Returns 200 OK with the base64 plaintext. Any
// tampering with the envelope or AAD returns 422 with a generic message.
func (h *EncryptionHandler) DecryptHandler(c *gin.Context) {
	var req dto.DecryptRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, validation.WrapValidationError(err), h.logger)
		return
	}

	keyID, err := keysDomain.ParseKeyID(req.KeyID)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	aad, err := base64.StdEncoding.DecodeString(req.AAD)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	plaintext, err := h.encryptionUseCase.Decrypt(c.Request.Context(), keyID, req.Envelope(), aad)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	defer keysDomain.Zero(plaintext)

	response := dto.DecryptResponse{
		KeyID:     req.KeyID,
		Plaintext: base64.StdEncoding.EncodeToString(plaintext),
	}
	c.JSON(http.StatusOK, response)
}
