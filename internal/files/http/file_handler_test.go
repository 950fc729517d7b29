package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/cryptellan/crypto-service/internal/errors"
	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
)

// fakeFileUseCase prefixes the stream instead of encrypting so tests can
// follow bytes through the handler without key material.
type fakeFileUseCase struct {
	encryptErr error
	decryptErr error
}

const fakeStreamPrefix = "ENC1:"

func (f *fakeFileUseCase) Encrypt(
	ctx context.Context,
	id keysDomain.KeyID,
	src io.Reader,
	dst io.Writer,
) error {
	if f.encryptErr != nil {
		return f.encryptErr
	}
	if _, err := io.WriteString(dst, fakeStreamPrefix); err != nil {
		return err
	}
	_, err := io.Copy(dst, src)
	return err
}

func (f *fakeFileUseCase) Decrypt(ctx context.Context, src io.Reader, dst io.Writer) error {
	if f.decryptErr != nil {
		return f.decryptErr
	}

	prefix := make([]byte, len(fakeStreamPrefix))
	if _, err := io.ReadFull(src, prefix); err != nil || string(prefix) != fakeStreamPrefix {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "input is not an encrypted stream")
	}
	_, err := io.Copy(dst, src)
	return err
}

func newFileHandlerFixture() (*FileHandler, *fakeFileUseCase) {
	useCase := &fakeFileUseCase{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewFileHandler(useCase, logger), useCase
}

// createStreamContext creates a test Gin context with a raw body stream.
func createStreamContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/octet-stream")
	c.Request = req

	return c, w
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func TestFileHandler_EncryptAndDecrypt(t *testing.T) {
	handler, _ := newFileHandlerFixture()
	keyID := keysDomain.NewKeyID("files")
	payload := []byte("file contents that stream through")

	path := fmt.Sprintf("/v1/files/encrypt?key_id=%s", keyID)
	c, w := createStreamContext(http.MethodPost, path, payload)
	handler.EncryptHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	encrypted := w.Body.Bytes()
	require.NotEmpty(t, encrypted)

	c, w = createStreamContext(http.MethodPost, "/v1/files/decrypt", encrypted)
	handler.DecryptHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payload, w.Body.Bytes())
}

func TestFileHandler_Encrypt_InvalidKeyID(t *testing.T) {
	handler, _ := newFileHandlerFixture()

	c, w := createStreamContext(http.MethodPost, "/v1/files/encrypt?key_id=garbage", []byte("payload"))
	handler.EncryptHandler(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")
}

func TestFileHandler_Encrypt_MissingKeyID(t *testing.T) {
	handler, _ := newFileHandlerFixture()

	c, w := createStreamContext(http.MethodPost, "/v1/files/encrypt", []byte("payload"))
	handler.EncryptHandler(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestFileHandler_Encrypt_KeyNotFound(t *testing.T) {
	handler, useCase := newFileHandlerFixture()
	useCase.encryptErr = keysDomain.ErrKeyNotFound
	keyID := keysDomain.NewKeyID("files")

	path := fmt.Sprintf("/v1/files/encrypt?key_id=%s", keyID)
	c, w := createStreamContext(http.MethodPost, path, []byte("payload"))
	handler.EncryptHandler(c)

	// The failure happens before any payload byte, so the client gets a
	// normal JSON error response.
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
}

func TestFileHandler_Decrypt_NotAnEncryptedStream(t *testing.T) {
	handler, _ := newFileHandlerFixture()

	c, w := createStreamContext(http.MethodPost, "/v1/files/decrypt", []byte("plain old file"))
	handler.DecryptHandler(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_input")
}

func TestFileHandler_Encrypt_SizeLimit(t *testing.T) {
	handler, useCase := newFileHandlerFixture()
	useCase.encryptErr = apperrors.Wrap(apperrors.ErrSizeLimitExceeded, "file too large")
	keyID := keysDomain.NewKeyID("files")

	path := fmt.Sprintf("/v1/files/encrypt?key_id=%s", keyID)
	c, w := createStreamContext(http.MethodPost, path, []byte("payload"))
	handler.EncryptHandler(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
