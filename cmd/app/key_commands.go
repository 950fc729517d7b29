package main

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/cryptellan/crypto-service/cmd/app/commands"
	"github.com/cryptellan/crypto-service/internal/app"
	"github.com/cryptellan/crypto-service/internal/config"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "generate-key",
			Usage: "Generate a new cryptographic key in a namespace",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "namespace",
					Aliases:  []string{"n"},
					Required: true,
					Usage:    "Namespace the key belongs to (e.g., payments)",
				},
				&cli.StringFlag{
					Name:     "algorithm",
					Aliases:  []string{"alg"},
					Required: true,
					Usage:    "Key algorithm (e.g., aes-256-gcm, rsa-2048, ecdsa-p256)",
				},
				&cli.StringFlag{
					Name:    "owner-service",
					Aliases: []string{"o"},
					Value:   "",
					Usage:   "Service that owns the key",
				},
				&cli.StringFlag{
					Name:    "operations",
					Aliases: []string{"ops"},
					Value:   "",
					Usage:   "Comma-separated allowed operations (omit to allow all supported by the algorithm)",
				},
				&cli.StringFlag{
					Name:    "validity",
					Aliases: []string{"v"},
					Value:   "",
					Usage:   "Validity period as a Go duration (e.g., 8760h); omit for the configured default",
				},
				&cli.BoolFlag{
					Name:    "dual-control",
					Aliases: []string{"d"},
					Value:   false,
					Usage:   "Create in PENDING_ACTIVATION and require a separate activation",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				var operations []string
				if opsStr := cmd.String("operations"); opsStr != "" {
					for _, op := range strings.Split(opsStr, ",") {
						operations = append(operations, strings.TrimSpace(op))
					}
				}

				return commands.RunGenerateKey(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("namespace"),
					cmd.String("algorithm"),
					cmd.String("owner-service"),
					operations,
					cmd.String("validity"),
					cmd.Bool("dual-control"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "activate-key",
			Usage: "Activate a key created under dual control",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Key ID (namespace:uuid:version)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunActivateKey(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
				)
			},
		},
		{
			Name:  "rotate-key",
			Usage: "Rotate a key, deprecating the current version",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Key ID (namespace:uuid:version)",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunRotateKey(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "delete-key",
			Usage: "Mark a key for destruction",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Key ID (namespace:uuid:version)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunDeleteKey(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
				)
			},
		},
		{
			Name:  "purge-destroyed",
			Usage: "Erase the material of every key pending destruction",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunPurgeDestroyed(
					ctx,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
	}
}
