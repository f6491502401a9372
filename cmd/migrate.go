package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/psds-microservice/ticket-bot/internal/config"
	"github.com/psds-microservice/ticket-bot/internal/database"
	"github.com/psds-microservice/ticket-bot/internal/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !cfg.PersistenceEnabled() {
		return errors.New("config: DB_HOST is not set, nothing to migrate")
	}
	log := logger.New(cfg.AppEnv, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := database.MigrateUp(context.Background(), cfg.DatabaseURL(), log); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrate up: ok")
	return nil
}
