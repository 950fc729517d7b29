// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"sync"

	auditHTTP "github.com/cryptellan/crypto-service/internal/audit/http"
	auditRepository "github.com/cryptellan/crypto-service/internal/audit/repository"
	auditService "github.com/cryptellan/crypto-service/internal/audit/service"
	auditUseCase "github.com/cryptellan/crypto-service/internal/audit/usecase"
	"github.com/cryptellan/crypto-service/internal/config"
	"github.com/cryptellan/crypto-service/internal/database"
	encryptionHTTP "github.com/cryptellan/crypto-service/internal/encryption/http"
	encryptionUseCase "github.com/cryptellan/crypto-service/internal/encryption/usecase"
	filesHTTP "github.com/cryptellan/crypto-service/internal/files/http"
	filesUseCase "github.com/cryptellan/crypto-service/internal/files/usecase"
	"github.com/cryptellan/crypto-service/internal/http"
	keysCache "github.com/cryptellan/crypto-service/internal/keys/cache"
	keysHTTP "github.com/cryptellan/crypto-service/internal/keys/http"
	keysRepository "github.com/cryptellan/crypto-service/internal/keys/repository"
	keysUseCase "github.com/cryptellan/crypto-service/internal/keys/usecase"
	"github.com/cryptellan/crypto-service/internal/kms"
	"github.com/cryptellan/crypto-service/internal/metrics"
	signingHTTP "github.com/cryptellan/crypto-service/internal/signing/http"
	signingUseCase "github.com/cryptellan/crypto-service/internal/signing/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	kmsProvider     kms.Provider
	keyCache        *keysCache.KeyCache
	metricsProvider *metrics.Provider

	// Managers
	txManager database.TxManager

	// Repositories
	keyRepo      keysUseCase.KeyRepository
	auditLogRepo auditUseCase.AuditLogRepository

	// Use Cases
	auditUC      auditUseCase.AuditUseCase
	keyUC        keysUseCase.KeyUseCase
	encryptionUC encryptionUseCase.EncryptionUseCase
	signatureUC  signingUseCase.SignatureUseCase
	fileUC       filesUseCase.FileEncryptionUseCase

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	dbInit              sync.Once
	kmsProviderInit     sync.Once
	keyCacheInit        sync.Once
	metricsProviderInit sync.Once
	txManagerInit       sync.Once
	keyRepoInit         sync.Once
	auditLogRepoInit    sync.Once
	auditUCInit         sync.Once
	keyUCInit           sync.Once
	encryptionUCInit    sync.Once
	signatureUCInit     sync.Once
	fileUCInit          sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := c.initDB()
		if err != nil {
			c.initErrors["db"] = err
			return
		}
		c.db = db
	})
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// KMSProvider returns the key encryption provider.
func (c *Container) KMSProvider() (kms.Provider, error) {
	c.kmsProviderInit.Do(func() {
		provider, err := kms.Open(context.Background(), kms.Config{
			KeyURI:           c.config.KMSKeyURI,
			Timeout:          c.config.KMSTimeout,
			MaxRetries:       c.config.KMSMaxRetries,
			BreakerThreshold: c.config.KMSBreakerThreshold,
		})
		if err != nil {
			c.initErrors["kmsProvider"] = fmt.Errorf("failed to open kms provider: %w", err)
			return
		}
		c.kmsProvider = provider
	})
	if storedErr, exists := c.initErrors["kmsProvider"]; exists {
		return nil, storedErr
	}
	return c.kmsProvider, nil
}

// KeyCache returns the plaintext key material cache.
func (c *Container) KeyCache() *keysCache.KeyCache {
	c.keyCacheInit.Do(func() {
		c.keyCache = keysCache.New(c.config.KeyCacheTTL, 0)
	})
	return c.keyCache
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["txManager"] = fmt.Errorf("failed to get database for tx manager: %w", err)
			return
		}
		c.txManager = database.NewTxManager(db)
	})
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// KeyRepository returns the wrapped key repository instance.
func (c *Container) KeyRepository() (keysUseCase.KeyRepository, error) {
	c.keyRepoInit.Do(func() {
		repo, err := c.initKeyRepository()
		if err != nil {
			c.initErrors["keyRepo"] = err
			return
		}
		c.keyRepo = repo
	})
	if storedErr, exists := c.initErrors["keyRepo"]; exists {
		return nil, storedErr
	}
	return c.keyRepo, nil
}

// AuditLogRepository returns the audit log repository instance.
func (c *Container) AuditLogRepository() (auditUseCase.AuditLogRepository, error) {
	c.auditLogRepoInit.Do(func() {
		repo, err := c.initAuditLogRepository()
		if err != nil {
			c.initErrors["auditLogRepo"] = err
			return
		}
		c.auditLogRepo = repo
	})
	if storedErr, exists := c.initErrors["auditLogRepo"]; exists {
		return nil, storedErr
	}
	return c.auditLogRepo, nil
}

// AuditUseCase returns the audit use case instance.
func (c *Container) AuditUseCase() (auditUseCase.AuditUseCase, error) {
	c.auditUCInit.Do(func() {
		useCase, err := c.initAuditUseCase()
		if err != nil {
			c.initErrors["auditUC"] = err
			return
		}
		c.auditUC = useCase
	})
	if storedErr, exists := c.initErrors["auditUC"]; exists {
		return nil, storedErr
	}
	return c.auditUC, nil
}

// KeyUseCase returns the key lifecycle use case instance.
func (c *Container) KeyUseCase() (keysUseCase.KeyUseCase, error) {
	c.keyUCInit.Do(func() {
		useCase, err := c.initKeyUseCase()
		if err != nil {
			c.initErrors["keyUC"] = err
			return
		}
		c.keyUC = useCase
	})
	if storedErr, exists := c.initErrors["keyUC"]; exists {
		return nil, storedErr
	}
	return c.keyUC, nil
}

// EncryptionUseCase returns the payload encryption use case instance.
func (c *Container) EncryptionUseCase() (encryptionUseCase.EncryptionUseCase, error) {
	c.encryptionUCInit.Do(func() {
		keyUC, err := c.KeyUseCase()
		if err != nil {
			c.initErrors["encryptionUC"] = err
			return
		}
		auditUC, err := c.AuditUseCase()
		if err != nil {
			c.initErrors["encryptionUC"] = err
			return
		}
		c.encryptionUC = encryptionUseCase.NewEncryptionUseCase(
			keyUC,
			auditUC,
			encryptionUseCase.Config{MaxPayloadSize: c.config.MaxPayloadSize},
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["encryptionUC"]; exists {
		return nil, storedErr
	}
	return c.encryptionUC, nil
}

// SignatureUseCase returns the signature use case instance.
func (c *Container) SignatureUseCase() (signingUseCase.SignatureUseCase, error) {
	c.signatureUCInit.Do(func() {
		keyUC, err := c.KeyUseCase()
		if err != nil {
			c.initErrors["signatureUC"] = err
			return
		}
		auditUC, err := c.AuditUseCase()
		if err != nil {
			c.initErrors["signatureUC"] = err
			return
		}
		c.signatureUC = signingUseCase.NewSignatureUseCase(keyUC, auditUC, c.Logger())
	})
	if storedErr, exists := c.initErrors["signatureUC"]; exists {
		return nil, storedErr
	}
	return c.signatureUC, nil
}

// FileUseCase returns the streaming file encryption use case instance.
func (c *Container) FileUseCase() (filesUseCase.FileEncryptionUseCase, error) {
	c.fileUCInit.Do(func() {
		keyUC, err := c.KeyUseCase()
		if err != nil {
			c.initErrors["fileUC"] = err
			return
		}
		auditUC, err := c.AuditUseCase()
		if err != nil {
			c.initErrors["fileUC"] = err
			return
		}
		c.fileUC = filesUseCase.NewFileUseCase(
			keyUC,
			auditUC,
			filesUseCase.Config{
				ChunkSize:   c.config.FileChunkSize,
				MaxFileSize: c.config.FileMaxSize,
			},
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["fileUC"]; exists {
		return nil, storedErr
	}
	return c.fileUC, nil
}

// HTTPServer returns the HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		server, err := c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}
		c.httpServer = server
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server instance, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Zero the in-memory audit signing secret.
	if c.auditUC != nil {
		if err := c.auditUC.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("audit use case close: %w", err))
		}
	}

	// Purge cached plaintext key material.
	if c.keyCache != nil {
		c.keyCache.Close()
	}

	if c.kmsProvider != nil {
		if err := c.kmsProvider.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("kms provider close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initKeyRepository creates the wrapped key repository instance.
func (c *Container) initKeyRepository() (keysUseCase.KeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for key repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return keysRepository.NewMySQLKeyRepository(db), nil
	case "postgres":
		return keysRepository.NewPostgreSQLKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initAuditLogRepository creates the audit log repository instance.
func (c *Container) initAuditLogRepository() (auditUseCase.AuditLogRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for audit log repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return auditRepository.NewMySQLAuditLogRepository(db), nil
	case "postgres":
		return auditRepository.NewPostgreSQLAuditLogRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initAuditUseCase creates the audit use case with all its dependencies.
func (c *Container) initAuditUseCase() (auditUseCase.AuditUseCase, error) {
	repo, err := c.AuditLogRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log repository for audit use case: %w", err)
	}

	provider, err := c.KMSProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get kms provider for audit use case: %w", err)
	}

	if c.config.AuditSigningSecret == "" {
		return nil, fmt.Errorf("AUDIT_SIGNING_SECRET is required")
	}
	wrappedSecret, err := base64.StdEncoding.DecodeString(c.config.AuditSigningSecret)
	if err != nil {
		return nil, fmt.Errorf("AUDIT_SIGNING_SECRET is not valid base64: %w", err)
	}

	return auditUseCase.NewAuditUseCase(
		repo,
		auditService.NewSigner(),
		provider,
		wrappedSecret,
		c.Logger(),
	), nil
}

// initKeyUseCase creates the key use case with all its dependencies.
func (c *Container) initKeyUseCase() (keysUseCase.KeyUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for key use case: %w", err)
	}

	keyRepo, err := c.KeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key repository for key use case: %w", err)
	}

	provider, err := c.KMSProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get kms provider for key use case: %w", err)
	}

	auditUC, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for key use case: %w", err)
	}

	useCase := keysUseCase.NewKeyUseCase(
		txManager,
		keyRepo,
		provider,
		c.KeyCache(),
		auditUC,
		keysUseCase.Config{
			GracePeriod:     c.config.KeyGracePeriod,
			DefaultValidity: c.config.KeyDefaultValidity,
		},
		c.Logger(),
	)

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for key use case: %w", err)
	}
	if metricsProvider != nil {
		businessMetrics, err := metrics.NewBusinessMetrics(
			metricsProvider.MeterProvider(),
			c.config.MetricsNamespace,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create business metrics: %w", err)
		}
		useCase = keysUseCase.NewKeyUseCaseWithMetrics(useCase, businessMetrics)
	}

	return useCase, nil
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	keyUC, err := c.KeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key use case for http server: %w", err)
	}

	encryptionUC, err := c.EncryptionUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption use case for http server: %w", err)
	}

	signatureUC, err := c.SignatureUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get signature use case for http server: %w", err)
	}

	fileUC, err := c.FileUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get file use case for http server: %w", err)
	}

	auditUC, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for http server: %w", err)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)

	routerConfig := http.RouterConfig{
		KeyHandler:        keysHTTP.NewKeyHandler(keyUC, logger),
		EncryptionHandler: encryptionHTTP.NewEncryptionHandler(encryptionUC, logger),
		SignatureHandler:  signingHTTP.NewSignatureHandler(signatureUC, logger),
		FileHandler:       filesHTTP.NewFileHandler(fileUC, logger),
		AuditLogHandler:   auditHTTP.NewAuditLogHandler(auditUC, logger),
		CORSEnabled:       c.config.CORSEnabled,
		CORSAllowOrigins:  c.config.CORSAllowOrigins,
	}
	if c.config.RateLimitEnabled {
		routerConfig.RateLimitRPS = c.config.RateLimitRequestsPerSec
		routerConfig.RateLimitBurst = c.config.RateLimitBurst
	}
	server.SetupRouter(routerConfig)

	return server, nil
}
