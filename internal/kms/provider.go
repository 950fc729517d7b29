// Package kms provides the key encryption provider abstraction: wrapping and
// unwrapping key material under a key-encryption-key (KEK) held by an external
// custodian (cloud KMS, HashiCorp Vault, or a local key for development).
//
// Providers are opened from a gocloud.dev/secrets key URI, so the backing
// custodian is swappable through configuration alone. No other component knows
// which variant is active.
package kms

import (
	"context"
	"fmt"
	"time"

	"gocloud.dev/secrets"

	apperrors "github.com/cryptellan/crypto-service/internal/errors"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// Provider wraps and unwraps key material under an external KEK.
type Provider interface {
	// Wrap encrypts plaintext key material under the KEK.
	Wrap(ctx context.Context, plaintext []byte) ([]byte, error)

	// Unwrap decrypts previously wrapped key material.
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)

	// KekID identifies the wrapping key so stored records can name the KEK
	// that protects them.
	KekID() string

	// Close releases the underlying keeper.
	Close() error
}

// Config tunes the provider's resilience behavior. KMS calls cross the
// network: every call gets a timeout, transient failures are retried with
// exponential backoff, and a failure threshold opens a circuit breaker so a
// dead custodian is denied fast instead of hanging every request.
type Config struct {
	KeyURI           string
	Timeout          time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// keeperProvider implements Provider over a gocloud.dev secrets.Keeper.
type keeperProvider struct {
	keeper  *secrets.Keeper
	cfg     Config
	breaker *breaker
}

// Open opens a Provider for the configured key URI.
// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
func Open(ctx context.Context, cfg Config) (Provider, error) {
	if cfg.KeyURI == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "kms key uri is required")
	}

	keeper, err := secrets.OpenKeeper(ctx, cfg.KeyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 100 * time.Millisecond
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	return &keeperProvider{
		keeper:  keeper,
		cfg:     cfg,
		breaker: newBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
	}, nil
}

// Wrap encrypts plaintext key material under the KEK.
func (p *keeperProvider) Wrap(ctx context.Context, plaintext []byte) ([]byte, error) {
	return p.call(ctx, func(ctx context.Context) ([]byte, error) {
		return p.keeper.Encrypt(ctx, plaintext)
	})
}

// Unwrap decrypts previously wrapped key material.
func (p *keeperProvider) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	return p.call(ctx, func(ctx context.Context) ([]byte, error) {
		return p.keeper.Decrypt(ctx, wrapped)
	})
}

// KekID returns the configured key URI as the KEK identifier.
func (p *keeperProvider) KekID() string {
	return p.cfg.KeyURI
}

// Close releases the underlying keeper.
func (p *keeperProvider) Close() error {
	return p.keeper.Close()
}

// call runs fn with timeout, retry with exponential backoff, and circuit
// breaking. An open breaker denies immediately with ErrKMSUnavailable.
func (p *keeperProvider) call(ctx context.Context, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if !p.breaker.Allow() {
		return nil, apperrors.Wrap(apperrors.ErrKMSUnavailable, "circuit breaker open")
	}

	var lastErr error
	delay := p.cfg.RetryBaseDelay

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		out, err := fn(callCtx)
		cancel()

		if err == nil {
			p.breaker.Success()
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	p.breaker.Failure()
	return nil, apperrors.Wrap(apperrors.ErrKMSUnavailable, lastErr.Error())
}
