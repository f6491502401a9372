package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/psds-microservice/ticket-bot/internal/application"
	"github.com/psds-microservice/ticket-bot/internal/config"
	"github.com/psds-microservice/ticket-bot/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Discord, poll the website and serve /check-member",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.AppEnv, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := application.NewBot(ctx, cfg, log)
	if err != nil {
		return err
	}
	log.Info("starting ticket bot",
		zap.String("env", cfg.AppEnv),
		zap.String("website", cfg.WebsiteURL),
		zap.Int("admins", len(cfg.AdminIDs)),
		zap.Bool("persistent_registry", cfg.PersistenceEnabled()),
	)
	if err := bot.Run(ctx); err != nil {
		log.Error("ticket bot stopped", zap.Error(err))
		return err
	}
	log.Info("ticket bot stopped")
	return nil
}
