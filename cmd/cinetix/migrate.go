package main

import (
	"fmt"
	"log/slog"

	"github.com/kirinyoku/cinetix/internal/app"
	"github.com/kirinyoku/cinetix/internal/config"
	"github.com/kirinyoku/cinetix/internal/postgres"
	"github.com/spf13/cobra"
)

func migrateCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			pool, err := postgres.New(cmd.Context(), app.PostgresConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := postgres.Migrate(cmd.Context(), pool, logger)
			if err != nil {
				return err
			}

			logger.Info("migrations complete", "applied", applied)
			return nil
		},
	}
}
