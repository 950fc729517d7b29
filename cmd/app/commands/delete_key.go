package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	keysUseCase "github.com/cryptellan/crypto-service/internal/keys/usecase"
)

// RunDeleteKey marks a key PENDING_DESTRUCTION. From this point the key is
// unreachable through the API; a later purge-destroyed erases its material.
func RunDeleteKey(
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

	logger.Info("deleting key", slog.String("key_id", id.String()))

	if err := keyUseCase.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Key %s marked for destruction\n", id.String())
	return nil
}
