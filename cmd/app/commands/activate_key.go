package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	keysUseCase "github.com/cryptellan/crypto-service/internal/keys/usecase"
)

// RunActivateKey moves a PENDING_ACTIVATION key to ACTIVE. Used as the second
// step of dual-control key generation.
func RunActivateKey(
	ctx context.Context,
	keyUseCase keysUseCase.KeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	idStr string,
) error {
	id, err := parseKeyID(idStr)
	if err != nil {
		return err
	}

	logger.Info("activating key", slog.String("key_id", id.String()))

	if err := keyUseCase.Activate(ctx, id); err != nil {
		return fmt.Errorf("failed to activate key: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Key %s activated\n", id.String())
	return nil
}
