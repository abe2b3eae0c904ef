package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/kirinyoku/cinetix/docs"
	"github.com/spf13/cobra"
)

var Version = "dev"

// @title Cinetix API
// @version 1.0
// @description Checkout, payment confirmation and order status service for cinema ticket sales.
// @host localhost:8080
// @BasePath /
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	rootCmd := &cobra.Command{
		Use:           "cinetix",
		Short:         "Cinetix payment service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd(logger))
	rootCmd.AddCommand(migrateCmd(logger))
	rootCmd.AddCommand(watchCmd(logger))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
