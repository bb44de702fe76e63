package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/grade-compass/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending analytics store migrations",
	RunE:  runMigrate,
}

var migrateDSN string

func init() {
	migrateCmd.Flags().StringVar(&migrateDSN, "dsn", "", "PostgreSQL DSN (overrides DATABASE_DSN env var)")

	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	setupLogging(slog.LevelInfo)

	dsn := migrateDSN
	if dsn == "" {
		dsn = os.Getenv("DATABASE_DSN")
	}
	if dsn == "" {
		return errors.New("database DSN is required (set DATABASE_DSN or use --dsn)")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if err := storage.MigrateFromDSN(ctx, dsn); err != nil {
		return err
	}

	slog.Info("migrations applied")
	return nil
}
