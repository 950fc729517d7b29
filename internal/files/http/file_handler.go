// Package http provides HTTP handlers for streaming file encryption operations.
package http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	filesUseCase "github.com/cryptellan/crypto-service/internal/files/usecase"
	"github.com/cryptellan/crypto-service/internal/httputil"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

// FileHandler handles HTTP requests for streaming file encryption. Request
// and response bodies are raw octet streams; neither side is ever buffered
// whole in memory.
type FileHandler struct {
	fileUseCase filesUseCase.FileEncryptionUseCase
	logger      *slog.Logger
}

// NewFileHandler creates a new file handler with required dependencies.
func NewFileHandler(useCase filesUseCase.FileEncryptionUseCase, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		fileUseCase: useCase,
		logger:      logger,
	}
}

// EncryptHandler encrypts the request body stream under a managed key.
// POST /v1/files/encrypt?key_id=namespace:uuid:version
// The request body is the plaintext file; the response body is the encrypted
// stream. Returns 200 OK with Content-Type application/octet-stream.
func (h *FileHandler) EncryptHandler(c *gin.Context) {
	keyID, err := keysDomain.ParseKeyID(c.Query("key_id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			fmt.Errorf("invalid key_id query parameter: must be namespace:uuid:version"),
			h.logger)
		return
	}

	c.Header("Content-Type", "application/octet-stream")
	dst := &trackingWriter{w: c.Writer}

	err = h.fileUseCase.Encrypt(c.Request.Context(), keyID, c.Request.Body, dst)
	if err != nil {
		h.streamError(c, dst, err)
		return
	}

	c.Status(http.StatusOK)
}

// DecryptHandler decrypts an encrypted stream produced by EncryptHandler.
// POST /v1/files/decrypt
// The request body is the encrypted stream; the wrapping key is identified by
// the stream header. The response body is the recovered plaintext. Returns
// 200 OK with Content-Type application/octet-stream.
func (h *FileHandler) DecryptHandler(c *gin.Context) {
	c.Header("Content-Type", "application/octet-stream")
	dst := &trackingWriter{w: c.Writer}

	err := h.fileUseCase.Decrypt(c.Request.Context(), c.Request.Body, dst)
	if err != nil {
		h.streamError(c, dst, err)
		return
	}

	c.Status(http.StatusOK)
}

// streamError reports a streaming failure. Before the first payload byte the
// client gets a normal JSON error response; after that the status line is
// already on the wire, so the stream is cut short and the truncation shows up
// on the client as an integrity failure.
func (h *FileHandler) streamError(c *gin.Context, dst *trackingWriter, err error) {
	if dst.written == 0 {
		c.Header("Content-Type", "application/json")
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Error("file stream aborted",
		slog.Int64("bytes_written", dst.written),
		slog.Any("error", err),
	)
	c.Abort()
}

// trackingWriter counts payload bytes so errors can tell whether the
// response is still untouched.
type trackingWriter struct {
	w       io.Writer
	written int64
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	t.written += int64(n)
	return n, err
}
