package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"

	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
	"github.com/cryptellan/crypto-service/internal/kms"
)

// RunCreateAuditSecret generates the 32-byte HMAC secret that signs audit log
// entries, wraps it under the configured key encryption key and prints the
// resulting AUDIT_SIGNING_SECRET value. Should only be run once per
// environment; rotating the secret invalidates signatures on existing entries.
//
// For local development, use KMS_KEY_URI="base64key://<32-byte-base64-key>".
// In production, use a cloud KMS URI (gcpkms://, awskms://, azurekeyvault://,
// hashivault://).
func RunCreateAuditSecret(
	ctx context.Context,
	provider kms.Provider,
	logger *slog.Logger,
	writer io.Writer,
	keyURI string,
) error {
	if keyURI == "" {
		return fmt.Errorf("KMS_KEY_URI is required to wrap the audit signing secret")
	}

	// Generate a cryptographically secure 32-byte signing secret
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("failed to generate audit signing secret: %w", err)
	}
	defer keysDomain.Zero(secret)

	wrapped, err := provider.Wrap(ctx, secret)
	if err != nil {
		return fmt.Errorf("failed to wrap audit signing secret: %w", err)
	}

	logger.Info("audit signing secret created", slog.String("kek_id", provider.KekID()))

	encoded := base64.StdEncoding.EncodeToString(wrapped)

	_, _ = fmt.Fprintln(writer, "# Audit Trail Configuration")
	_, _ = fmt.Fprintln(writer, "# Copy these environment variables to your .env file or secrets manager")
	_, _ = fmt.Fprintln(writer)
	_, _ = fmt.Fprintf(writer, "KMS_KEY_URI=%q\n", keyURI)
	_, _ = fmt.Fprintf(writer, "AUDIT_SIGNING_SECRET=%q\n", encoded)

	return nil
}
