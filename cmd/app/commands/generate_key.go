package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	keysDomain "github.com/cryptellan/crypto-service/internal/keys/domain"
	keysUseCase "github.com/cryptellan/crypto-service/internal/keys/usecase"
)

// RunGenerateKey creates a new key in the given namespace. With dual control
// enabled the key is created in PENDING_ACTIVATION and requires a separate
// activate-key invocation before use.
func RunGenerateKey(
	ctx context.Context,
	keyUseCase keysUseCase.KeyUseCase,
	logger *slog.Logger,
	writer io.Writer,
	namespace string,
	algorithmStr string,
	ownerService string,
	operations []string,
	validityStr string,
	dualControl bool,
	format string,
) error {
	algorithm := keysDomain.Algorithm(algorithmStr)
	if !algorithm.IsValid() {
		return fmt.Errorf(
			"invalid algorithm: %s (valid options: %s)",
			algorithmStr,
			supportedAlgorithms(),
		)
	}

	var allowedOps []keysDomain.Operation
	for _, opStr := range operations {
		op := keysDomain.Operation(opStr)
		switch op {
		case keysDomain.OpEncrypt, keysDomain.OpDecrypt,
			keysDomain.OpSign, keysDomain.OpVerify,
			keysDomain.OpWrap, keysDomain.OpUnwrap:
		default:
			return fmt.Errorf(
				"invalid operation: %s (valid options: encrypt, decrypt, sign, verify, wrap, unwrap)",
				opStr,
			)
		}
		allowedOps = append(allowedOps, op)
	}

	var validity time.Duration
	if validityStr != "" {
		parsed, err := time.ParseDuration(validityStr)
		if err != nil || parsed <= 0 {
			return fmt.Errorf("invalid validity period: %s (expected a positive Go duration, e.g. 8760h)", validityStr)
		}
		validity = parsed
	}

	logger.Info("generating key",
		slog.String("namespace", namespace),
		slog.String("algorithm", algorithmStr),
		slog.Bool("dual_control", dualControl),
	)

	id, err := keyUseCase.Generate(ctx, keysDomain.GenerationParams{
		Namespace:         namespace,
		Algorithm:         algorithm,
		OwnerService:      ownerService,
		AllowedOperations: allowedOps,
		ValidityPeriod:    validity,
		DualControl:       dualControl,
	})
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	meta, err := keyUseCase.Metadata(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load key metadata: %w", err)
	}

	if format == "json" {
		return outputKeyJSON(writer, meta)
	}
	outputKeyText(writer, meta)

	if meta.State == keysDomain.PendingActivation {
		_, _ = fmt.Fprintf(writer, "\nDual control is enabled. Activate with:\n")
		_, _ = fmt.Fprintf(writer, "  app activate-key --id %s\n", id.String())
	}

	return nil
}

// supportedAlgorithms returns a comma-separated list for error messages.
func supportedAlgorithms() string {
	return "aes-128-gcm, aes-256-gcm, aes-128-cbc, aes-256-cbc, " +
		"rsa-2048, rsa-3072, rsa-4096, ecdsa-p256, ecdsa-p384, ecdsa-p521"
}

// outputKeyText outputs key metadata in human-readable text format.
func outputKeyText(writer io.Writer, meta *keysDomain.KeyMetadata) {
	_, _ = fmt.Fprintf(writer, "Key ID:       %s\n", meta.ID.String())
	_, _ = fmt.Fprintf(writer, "Algorithm:    %s\n", meta.Algorithm)
	_, _ = fmt.Fprintf(writer, "Type:         %s\n", meta.Type)
	_, _ = fmt.Fprintf(writer, "State:        %s\n", meta.State)
	_, _ = fmt.Fprintf(writer, "Created At:   %s\n", meta.CreatedAt.Format(time.RFC3339))
	if !meta.ExpiresAt.IsZero() {
		_, _ = fmt.Fprintf(writer, "Expires At:   %s\n", meta.ExpiresAt.Format(time.RFC3339))
	}
	if meta.OwnerService != "" {
		_, _ = fmt.Fprintf(writer, "Owner:        %s\n", meta.OwnerService)
	}
	if len(meta.AllowedOperations) > 0 {
		_, _ = fmt.Fprintf(writer, "Operations:   %v\n", meta.AllowedOperations)
	}
}

// outputKeyJSON outputs key metadata in JSON format for machine consumption.
func outputKeyJSON(writer io.Writer, meta *keysDomain.KeyMetadata) error {
	result := map[string]interface{}{
		"id":         meta.ID.String(),
		"algorithm":  meta.Algorithm,
		"type":       meta.Type,
		"state":      meta.State,
		"created_at": meta.CreatedAt.Format(time.RFC3339),
	}
	if !meta.ExpiresAt.IsZero() {
		result["expires_at"] = meta.ExpiresAt.Format(time.RFC3339)
	}
	if meta.OwnerService != "" {
		result["owner_service"] = meta.OwnerService
	}
	if len(meta.AllowedOperations) > 0 {
		result["allowed_operations"] = meta.AllowedOperations
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	_, _ = fmt.Fprintln(writer, string(jsonBytes))
	return nil
}
