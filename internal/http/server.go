// Package http provides HTTP server implementation and request routing.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	auditHTTP "github.com/cryptellan/crypto-service/internal/audit/http"
	encryptionHTTP "github.com/cryptellan/crypto-service/internal/encryption/http"
	filesHTTP "github.com/cryptellan/crypto-service/internal/files/http"
	keysHTTP "github.com/cryptellan/crypto-service/internal/keys/http"
	signingHTTP "github.com/cryptellan/crypto-service/internal/signing/http"
)

// Server represents the HTTP server for the crypto API.
type Server struct {
	db     *sql.DB
	router *gin.Engine
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a new HTTP server. The database handle is used by the
// readiness endpoint; routes are registered by SetupRouter.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// RouterConfig carries the handlers and middleware settings for SetupRouter.
type RouterConfig struct {
	KeyHandler        *keysHTTP.KeyHandler
	EncryptionHandler *encryptionHTTP.EncryptionHandler
	SignatureHandler  *signingHTTP.SignatureHandler
	FileHandler       *filesHTTP.FileHandler
	AuditLogHandler   *auditHTTP.AuditLogHandler

	CORSEnabled      bool
	CORSAllowOrigins string

	// RateLimitRPS limits cryptographic endpoints per caller; zero disables
	// rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// SetupRouter builds the Gin router with all middleware and routes.
func (s *Server) SetupRouter(cfg RouterConfig) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))
	router.Use(RequestInfoMiddleware())

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")

	if cfg.KeyHandler != nil {
		keys := v1.Group("/keys")
		keys.POST("", cfg.KeyHandler.GenerateHandler)
		keys.GET("", cfg.KeyHandler.ListHandler)
		keys.GET("/:id", cfg.KeyHandler.GetHandler)
		keys.POST("/:id/activate", cfg.KeyHandler.ActivateHandler)
		keys.POST("/:id/rotate", cfg.KeyHandler.RotateHandler)
		keys.DELETE("/:id", cfg.KeyHandler.DeleteHandler)
	}

	// Data-plane endpoints carry the per-caller rate limit.
	var limited []gin.HandlerFunc
	if cfg.RateLimitRPS > 0 {
		limited = append(limited, RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, s.logger))
	}

	crypto := v1.Group("/crypto", limited...)
	if cfg.EncryptionHandler != nil {
		crypto.POST("/encrypt", cfg.EncryptionHandler.EncryptHandler)
		crypto.POST("/decrypt", cfg.EncryptionHandler.DecryptHandler)
	}
	if cfg.SignatureHandler != nil {
		crypto.POST("/sign", cfg.SignatureHandler.SignHandler)
		crypto.POST("/verify", cfg.SignatureHandler.VerifyHandler)
	}

	if cfg.FileHandler != nil {
		files := v1.Group("/files", limited...)
		files.POST("/encrypt", cfg.FileHandler.EncryptHandler)
		files.POST("/decrypt", cfg.FileHandler.DecryptHandler)
	}

	if cfg.AuditLogHandler != nil {
		v1.GET("/audit-logs", cfg.AuditLogHandler.ListHandler)
		v1.GET("/audit-logs/verify", cfg.AuditLogHandler.VerifyHandler)
	}

	s.router = router
}

// GetRouter returns the router for testing purposes.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Start starts the HTTP server. SetupRouter must have been called first.
func (s *Server) Start(ctx context.Context) error {
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can serve traffic. The database
// is the only hard dependency checked here; the key encryption provider is
// exercised lazily and reports through the error path instead.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{}
	ready := true

	if s.db == nil {
		components["database"] = "error"
		ready = false
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := s.db.PingContext(ctx); err != nil {
			components["database"] = "error"
			ready = false
		} else {
			components["database"] = "ok"
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}
