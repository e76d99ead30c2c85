package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.io/infrasutra/emlconvert/internal/config"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if err := newRootCmd(&cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	var logLevel string
	level := new(slog.LevelVar)

	rootCmd := &cobra.Command{
		Use:           "emlconvert",
		Short:         "Turn email threads into spreadsheet and PDF exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level.Set(cfg.LogLevel)
			if logLevel != "" {
				var parsed slog.Level
				if err := parsed.UnmarshalText([]byte(logLevel)); err != nil {
					return fmt.Errorf("parse log level: %w", err)
				}
				level.Set(parsed)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	logger := setupLogger(level)
	serveCmd := newServeCmd(cfg, logger)
	rootCmd.AddCommand(serveCmd, newConvertCmd(cfg, logger))
	rootCmd.RunE = serveCmd.RunE
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
	return rootCmd
}

func setupLogger(level *slog.LevelVar) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
