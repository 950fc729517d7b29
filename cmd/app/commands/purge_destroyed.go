package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	keysUseCase "github.com/cryptellan/crypto-service/internal/keys/usecase"
)

// RunPurgeDestroyed finalizes every PENDING_DESTRUCTION key by erasing its
// stored material. Intended to run from a scheduled job.
func RunPurgeDestroyed(
	ctx context.Context,
	keyUseCase keysUseCase.KeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	logger.Info("purging keys pending destruction")

	purged, err := keyUseCase.PurgeDestroyed(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge keys: %w", err)
	}

	logger.Info("purge completed", slog.Int("purged", purged))

	if format == "json" {
		result := map[string]interface{}{
			"purged": purged,
		}
		jsonBytes, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, _ = fmt.Fprintln(writer, string(jsonBytes))
		return nil
	}

	_, _ = fmt.Fprintf(writer, "Purged %d key(s)\n", purged)
	return nil
}
