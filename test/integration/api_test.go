// Package integration provides end-to-end integration tests for the crypto
// service API. Tests all API endpoints against both PostgreSQL and MySQL
// databases.
package integration

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptellan/crypto-service/internal/app"
	auditDTO "github.com/cryptellan/crypto-service/internal/audit/http/dto"
	"github.com/cryptellan/crypto-service/internal/config"
	encryptionDTO "github.com/cryptellan/crypto-service/internal/encryption/http/dto"
	keysDTO "github.com/cryptellan/crypto-service/internal/keys/http/dto"
	"github.com/cryptellan/crypto-service/internal/kms"
	signingDTO "github.com/cryptellan/crypto-service/internal/signing/http/dto"
	"github.com/cryptellan/crypto-service/internal/testutil"
)

const testKMSKeyURI = "base64key://smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4="

// integrationTestContext holds all dependencies and state for integration testing.
type integrationTestContext struct {
	container *app.Container
	db        *sql.DB
	server    *httptest.Server
	dbDriver  string
}

// makeRequest performs an HTTP request and returns the response and body.
func (ctx *integrationTestContext) makeRequest(
	t *testing.T,
	method, path string,
	body interface{},
) (*http.Response, []byte) {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ctx.server.URL+path, bodyReader)
	require.NoError(t, err, "failed to create request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Caller-Identity", "integration-test")
	req.Header.Set("X-Caller-Service", "integration-suite")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err, "failed to perform request")

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	if closeErr := resp.Body.Close(); closeErr != nil {
		t.Logf("Warning: failed to close response body: %v", closeErr)
	}

	return resp, respBody
}

// makeStreamRequest performs a raw octet-stream request for the file endpoints.
func (ctx *integrationTestContext) makeStreamRequest(
	t *testing.T,
	path string,
	payload []byte,
) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, ctx.server.URL+path, bytes.NewReader(payload))
	require.NoError(t, err, "failed to create request")
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Caller-Identity", "integration-test")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err, "failed to perform request")

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	if closeErr := resp.Body.Close(); closeErr != nil {
		t.Logf("Warning: failed to close response body: %v", closeErr)
	}

	return resp, respBody
}

// createWrappedAuditSecret generates the AUDIT_SIGNING_SECRET value the way
// the create-audit-secret command does.
func createWrappedAuditSecret(t *testing.T) string {
	t.Helper()

	provider, err := kms.Open(context.Background(), kms.Config{KeyURI: testKMSKeyURI})
	require.NoError(t, err, "failed to open kms provider")
	defer func() { _ = provider.Close() }()

	secret := make([]byte, 32)
	_, err = rand.Read(secret)
	require.NoError(t, err, "failed to generate audit secret")

	wrapped, err := provider.Wrap(context.Background(), secret)
	require.NoError(t, err, "failed to wrap audit secret")

	return base64.StdEncoding.EncodeToString(wrapped)
}

// setupIntegrationTest initializes all components for integration testing.
func setupIntegrationTest(t *testing.T, dbDriver string) *integrationTestContext {
	t.Helper()

	gin.SetMode(gin.TestMode)

	var db *sql.DB
	var dsn string
	if dbDriver == "postgres" {
		testutil.SkipIfNoPostgres(t)
		db = testutil.SetupPostgresDB(t)
		dsn = testutil.GetPostgresTestDSN()
	} else {
		testutil.SkipIfNoMySQL(t)
		db = testutil.SetupMySQLDB(t)
		dsn = testutil.GetMySQLTestDSN()
	}

	cfg := &config.Config{
		DBDriver:             dbDriver,
		DBConnectionString:   dsn,
		DBMaxOpenConnections: 10,
		DBMaxIdleConnections: 5,
		DBConnMaxLifetime:    time.Hour,
		ServerHost:           "localhost",
		ServerPort:           8080,
		LogLevel:             "error",
		KMSKeyURI:            testKMSKeyURI,
		KMSTimeout:           5 * time.Second,
		KMSMaxRetries:        1,
		KeyCacheTTL:          time.Minute,
		KeyGracePeriod:       time.Hour,
		KeyDefaultValidity:   24 * time.Hour,
		MaxPayloadSize:       1024 * 1024,
		FileChunkSize:        64 * 1024,
		FileMaxSize:          16 * 1024 * 1024,
		AuditSigningSecret:   createWrappedAuditSecret(t),
	}

	container := app.NewContainer(cfg)

	httpSrv, err := container.HTTPServer()
	require.NoError(t, err, "failed to get HTTP server")

	router := httpSrv.GetRouter()
	require.NotNil(t, router, "router should not be nil after SetupRouter")

	testServer := httptest.NewServer(router)

	return &integrationTestContext{
		container: container,
		db:        db,
		server:    testServer,
		dbDriver:  dbDriver,
	}
}

// teardownIntegrationTest cleans up all resources.
func teardownIntegrationTest(t *testing.T, ctx *integrationTestContext) {
	t.Helper()

	if ctx.server != nil {
		ctx.server.Close()
	}

	if ctx.container != nil {
		if err := ctx.container.Shutdown(context.Background()); err != nil {
			t.Logf("Warning: container shutdown error: %v", err)
		}
	}
}

// forEachDriver runs fn against both PostgreSQL and MySQL.
func forEachDriver(t *testing.T, fn func(t *testing.T, ctx *integrationTestContext)) {
	t.Helper()

	for _, driver := range []string{"postgres", "mysql"} {
		t.Run(driver, func(t *testing.T) {
			ctx := setupIntegrationTest(t, driver)
			defer teardownIntegrationTest(t, ctx)
			fn(t, ctx)
		})
	}
}

// generateKey creates a key via the API and returns its response.
func generateKey(
	t *testing.T,
	ctx *integrationTestContext,
	req keysDTO.GenerateKeyRequest,
) keysDTO.KeyResponse {
	t.Helper()

	resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/keys", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "generate key: %s", body)

	var key keysDTO.KeyResponse
	require.NoError(t, json.Unmarshal(body, &key))
	return key
}

func TestIntegration_Health(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	forEachDriver(t, func(t *testing.T, ctx *integrationTestContext) {
		resp, body := ctx.makeRequest(t, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "healthy")

		resp, _ = ctx.makeRequest(t, http.MethodGet, "/ready", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestIntegration_KeyLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	forEachDriver(t, func(t *testing.T, ctx *integrationTestContext) {
		key := generateKey(t, ctx, keysDTO.GenerateKeyRequest{
			Namespace:         "payments",
			Algorithm:         "aes-256-gcm",
			OwnerService:      "billing-api",
			AllowedOperations: []string{"encrypt", "decrypt"},
		})
		assert.Equal(t, "ACTIVE", key.State)
		assert.Equal(t, "aes-256-gcm", key.Algorithm)

		// Get
		resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/keys/"+key.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var fetched keysDTO.KeyResponse
		require.NoError(t, json.Unmarshal(body, &fetched))
		assert.Equal(t, key.ID, fetched.ID)

		// List by namespace
		resp, body = ctx.makeRequest(t, http.MethodGet, "/v1/keys?namespace=payments", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var list keysDTO.ListKeysResponse
		require.NoError(t, json.Unmarshal(body, &list))
		require.Len(t, list.Keys, 1)

		// Rotate
		resp, body = ctx.makeRequest(t, http.MethodPost, "/v1/keys/"+key.ID+"/rotate", nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode, "rotate: %s", body)
		var successor keysDTO.KeyResponse
		require.NoError(t, json.Unmarshal(body, &successor))
		assert.Equal(t, key.ID, successor.PreviousVersion)
		assert.Equal(t, "ACTIVE", successor.State)
		assert.NotEqual(t, key.ID, successor.ID)

		// Old version is deprecated but still visible
		resp, body = ctx.makeRequest(t, http.MethodGet, "/v1/keys/"+key.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(body, &fetched))
		assert.Equal(t, "DEPRECATED", fetched.State)

		// Delete the successor
		resp, _ = ctx.makeRequest(t, http.MethodDelete, "/v1/keys/"+successor.ID, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		// Deleted key behaves as not found
		resp, _ = ctx.makeRequest(t, http.MethodGet, "/v1/keys/"+successor.ID, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestIntegration_DualControl(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	forEachDriver(t, func(t *testing.T, ctx *integrationTestContext) {
		key := generateKey(t, ctx, keysDTO.GenerateKeyRequest{
			Namespace:   "restricted",
			Algorithm:   "aes-256-gcm",
			DualControl: true,
		})
		assert.Equal(t, "PENDING_ACTIVATION", key.State)

		// Pending keys refuse cryptographic use
		plaintext := base64.StdEncoding.EncodeToString([]byte("too early"))
		resp, _ := ctx.makeRequest(t, http.MethodPost, "/v1/crypto/encrypt", encryptionDTO.EncryptRequest{
			KeyID:     key.ID,
			Plaintext: plaintext,
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		// Activate, then the key serves
		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/keys/"+key.ID+"/activate", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "activate: %s", body)
		var activated keysDTO.KeyResponse
		require.NoError(t, json.Unmarshal(body, &activated))
		assert.Equal(t, "ACTIVE", activated.State)

		resp, _ = ctx.makeRequest(t, http.MethodPost, "/v1/crypto/encrypt", encryptionDTO.EncryptRequest{
			KeyID:     key.ID,
			Plaintext: plaintext,
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestIntegration_EncryptDecrypt(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	forEachDriver(t, func(t *testing.T, ctx *integrationTestContext) {
		key := generateKey(t, ctx, keysDTO.GenerateKeyRequest{
			Namespace: "payments",
			Algorithm: "aes-256-gcm",
		})

		plaintext := []byte("integration test payload")
		aad := []byte("tenant-42")

		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/crypto/encrypt", encryptionDTO.EncryptRequest{
			KeyID:     key.ID,
			Plaintext: base64.StdEncoding.EncodeToString(plaintext),
			AAD:       base64.StdEncoding.EncodeToString(aad),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "encrypt: %s", body)

		var encrypted encryptionDTO.EncryptResponse
		require.NoError(t, json.Unmarshal(body, &encrypted))
		assert.Equal(t, key.ID, encrypted.KeyID)
		assert.NotEmpty(t, encrypted.Ciphertext)

		resp, body = ctx.makeRequest(t, http.MethodPost, "/v1/crypto/decrypt", encryptionDTO.DecryptRequest{
			KeyID:      encrypted.KeyID,
			Ciphertext: encrypted.Ciphertext,
			IV:         encrypted.IV,
			Tag:        encrypted.Tag,
			WrappedKey: encrypted.WrappedKey,
			AAD:        base64.StdEncoding.EncodeToString(aad),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "decrypt: %s", body)

		var decrypted encryptionDTO.DecryptResponse
		require.NoError(t, json.Unmarshal(body, &decrypted))
		roundTrip, err := base64.StdEncoding.DecodeString(decrypted.Plaintext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, roundTrip)

		// Wrong AAD fails the integrity check without leaking detail
		resp, body = ctx.makeRequest(t, http.MethodPost, "/v1/crypto/decrypt", encryptionDTO.DecryptRequest{
			KeyID:      encrypted.KeyID,
			Ciphertext: encrypted.Ciphertext,
			IV:         encrypted.IV,
			Tag:        encrypted.Tag,
			AAD:        base64.StdEncoding.EncodeToString([]byte("tenant-43")),
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.NotContains(t, string(body), "gcm")
	})
}

func TestIntegration_RotationGracePeriod(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	forEachDriver(t, func(t *testing.T, ctx *integrationTestContext) {
		key := generateKey(t, ctx, keysDTO.GenerateKeyRequest{
			Namespace: "payments",
			Algorithm: "aes-256-gcm",
		})

		plaintext := base64.StdEncoding.EncodeToString([]byte("pre-rotation data"))
		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/crypto/encrypt", encryptionDTO.EncryptRequest{
			KeyID:     key.ID,
			Plaintext: plaintext,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var encrypted encryptionDTO.EncryptResponse
		require.NoError(t, json.Unmarshal(body, &encrypted))

		resp, _ = ctx.makeRequest(t, http.MethodPost, "/v1/keys/"+key.ID+"/rotate", nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		// Deprecated key still decrypts within the grace period
		resp, body = ctx.makeRequest(t, http.MethodPost, "/v1/crypto/decrypt", encryptionDTO.DecryptRequest{
			KeyID:      encrypted.KeyID,
			Ciphertext: encrypted.Ciphertext,
			IV:         encrypted.IV,
			Tag:        encrypted.Tag,
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode, "decrypt after rotate: %s", body)

		// But refuses new encryptions
		resp, _ = ctx.makeRequest(t, http.MethodPost, "/v1/crypto/encrypt", encryptionDTO.EncryptRequest{
			KeyID:     key.ID,
			Plaintext: plaintext,
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestIntegration_SignVerify(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	forEachDriver(t, func(t *testing.T, ctx *integrationTestContext) {
		key := generateKey(t, ctx, keysDTO.GenerateKeyRequest{
			Namespace: "documents",
			Algorithm: "ecdsa-p256",
		})

		data := base64.StdEncoding.EncodeToString([]byte("document to sign"))

		resp, body := ctx.makeRequest(t, http.MethodPost, "/v1/crypto/sign", signingDTO.SignRequest{
			KeyID: key.ID,
			Data:  data,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, "sign: %s", body)

		var signed signingDTO.SignResponse
		require.NoError(t, json.Unmarshal(body, &signed))
		assert.NotEmpty(t, signed.Signature)

		resp, body = ctx.makeRequest(t, http.MethodPost, "/v1/crypto/verify", signingDTO.VerifyRequest{
			KeyID:     key.ID,
			Data:      data,
			Signature: signed.Signature,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var verified signingDTO.VerifyResponse
		require.NoError(t, json.Unmarshal(body, &verified))
		assert.True(t, verified.Valid)

		// Tampered data verifies false but is not an HTTP error
		resp, body = ctx.makeRequest(t, http.MethodPost, "/v1/crypto/verify", signingDTO.VerifyRequest{
			KeyID:     key.ID,
			Data:      base64.StdEncoding.EncodeToString([]byte("tampered document")),
			Signature: signed.Signature,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(body, &verified))
		assert.False(t, verified.Valid)
	})
}

func TestIntegration_FileEncryptDecrypt(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	forEachDriver(t, func(t *testing.T, ctx *integrationTestContext) {
		key := generateKey(t, ctx, keysDTO.GenerateKeyRequest{
			Namespace: "files",
			Algorithm: "aes-256-gcm",
		})

		// Payload larger than one chunk
		payload := make([]byte, 200*1024)
		_, err := rand.Read(payload)
		require.NoError(t, err)

		resp, encrypted := ctx.makeStreamRequest(t,
			fmt.Sprintf("/v1/files/encrypt?key_id=%s", key.ID), payload)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEqual(t, payload, encrypted)

		resp, decrypted := ctx.makeStreamRequest(t, "/v1/files/decrypt", encrypted)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, payload, decrypted)

		// A corrupted stream never reproduces the plaintext. The failure may
		// surface as an error status or as a truncated body, depending on how
		// much had been streamed before the bad chunk.
		corrupted := append([]byte(nil), encrypted...)
		corrupted[len(corrupted)-1] ^= 0xff
		resp, out := ctx.makeStreamRequest(t, "/v1/files/decrypt", corrupted)
		if resp.StatusCode == http.StatusOK {
			assert.NotEqual(t, payload, out)
		}
	})
}

func TestIntegration_AuditTrail(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	forEachDriver(t, func(t *testing.T, ctx *integrationTestContext) {
		key := generateKey(t, ctx, keysDTO.GenerateKeyRequest{
			Namespace: "payments",
			Algorithm: "aes-256-gcm",
		})

		plaintext := base64.StdEncoding.EncodeToString([]byte("audited payload"))
		resp, _ := ctx.makeRequest(t, http.MethodPost, "/v1/crypto/encrypt", encryptionDTO.EncryptRequest{
			KeyID:     key.ID,
			Plaintext: plaintext,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// The trail holds the generate and encrypt entries
		resp, body := ctx.makeRequest(t, http.MethodGet, "/v1/audit-logs?key_id="+key.ID, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var logs auditDTO.ListAuditLogsResponse
		require.NoError(t, json.Unmarshal(body, &logs))
		require.NotEmpty(t, logs.Data)

		operations := make(map[string]bool)
		for _, entry := range logs.Data {
			operations[entry.Operation] = true
			assert.NotEmpty(t, entry.Signature, "every entry carries a signature")
			assert.Equal(t, "integration-test", entry.CallerIdentity)
		}
		assert.True(t, operations["key.generate"])
		assert.True(t, operations["data.encrypt"])

		// Signatures verify clean
		resp, body = ctx.makeRequest(t, http.MethodGet, "/v1/audit-logs/verify", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var report auditDTO.VerificationReportResponse
		require.NoError(t, json.Unmarshal(body, &report))
		assert.Greater(t, report.Checked, 0)
		assert.Empty(t, report.InvalidIDs)
	})
}
