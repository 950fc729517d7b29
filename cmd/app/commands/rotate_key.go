package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	keysUseCase "github.com/cryptellan/crypto-service/internal/keys/usecase"
)

// RunRotateKey issues a successor for an ACTIVE key and deprecates the old
// version. The deprecated version keeps serving decrypt and verify for the
// configured grace period.
func RunRotateKey(
	ctx context.Context,
	keyUseCase keysUseCase.KeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	idStr string,
	format string,
) error {
	id, err := parseKeyID(idStr)
	if err != nil {
		return err
	}

	logger.Info("rotating key", slog.String("key_id", id.String()))

	successorID, err := keyUseCase.Rotate(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to rotate key: %w", err)
	}

	meta, err := keyUseCase.Metadata(ctx, successorID)
	if err != nil {
		return fmt.Errorf("failed to load successor metadata: %w", err)
	}

	if format == "json" {
		return outputKeyJSON(writer, meta)
	}

	_, _ = fmt.Fprintf(writer, "Rotated %s\n\n", id.String())
	outputKeyText(writer, meta)
	return nil
}
