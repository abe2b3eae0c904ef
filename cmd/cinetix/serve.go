package main

import (
	"fmt"
	"log/slog"

	"github.com/kirinyoku/cinetix/internal/app"
	"github.com/kirinyoku/cinetix/internal/config"
	"github.com/spf13/cobra"
)

func serveCmd(logger *slog.Logger) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, realtime hub and outbox dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			application, err := app.New(cmd.Context(), cfg, logger, app.Options{Migrate: migrate})
			if err != nil {
				return fmt.Errorf("failed to create application: %w", err)
			}

			if err := application.Run(cmd.Context()); err != nil {
				return fmt.Errorf("application finished with error: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before serving")

	return cmd
}
