// Package http provides HTTP handlers for digital signature operations.
package http

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cryptellan/crypto-service/internal/crypto/engine"
	"github.com/cryptellan/crypto-service/internal/httputil"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
	"github.com/cryptellan/crypto-service/internal/signing/http/dto"
	signingUseCase "github.com/cryptellan/crypto-service/internal/signing/usecase"
	"github.com/cryptellan/crypto-service/internal/validation"
)

// SignatureHandler handles HTTP requests for sign and verify operations.
type SignatureHandler struct {
	signatureUseCase signingUseCase.SignatureUseCase
	logger           *slog.Logger
}

// NewSignatureHandler creates a new signature handler with required dependencies.
func NewSignatureHandler(
	useCase signingUseCase.SignatureUseCase,
	logger *slog.Logger,
) *SignatureHandler {
	return &SignatureHandler{
		signatureUseCase: useCase,
		logger:           logger,
	}
}

// SignHandler signs data under a managed key.
// POST /v1/crypto/sign - Returns 200 OK with the base64 signature. RSA keys
// sign with PSS under the requested digest; ECDSA keys pick the digest from
// their curve.
func (h *SignatureHandler) SignHandler(c *gin.Context) {
	var req dto.SignRequest

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

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	signature, err := h.signatureUseCase.Sign(
		c.Request.Context(),
		keyID,
		data,
		engine.HashAlgorithm(req.HashAlgorithm),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := dto.SignResponse{
		KeyID:     req.KeyID,
		Signature: base64.StdEncoding.EncodeToString(signature),
	}
	c.JSON(http.StatusOK, response)
}

// VerifyHandler verifies a signature under a managed key.
// POST /v1/crypto/verify - Returns 200 OK with valid=true or valid=false.
// Only malformed requests and key resolution failures produce error statuses.
func (h *SignatureHandler) VerifyHandler(c *gin.Context) {
	var req dto.VerifyRequest

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

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	valid, err := h.signatureUseCase.Verify(
		c.Request.Context(),
		keyID,
		data,
		signature,
		engine.HashAlgorithm(req.HashAlgorithm),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := dto.VerifyResponse{
		KeyID: req.KeyID,
		Valid: valid,
	}
	c.JSON(http.StatusOK, response)
}
