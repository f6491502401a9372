package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/psds-microservice/ticket-bot/internal/config"
	"github.com/psds-microservice/ticket-bot/internal/database"
	"github.com/psds-microservice/ticket-bot/internal/kafka"
	"github.com/psds-microservice/ticket-bot/internal/logger"
	"github.com/psds-microservice/ticket-bot/internal/registry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var republishCmd = &cobra.Command{
	Use:   "republish-events",
	Short: "Publish a ticket.created event for every persisted ticket (rebuilds downstream consumers)",
	RunE:  runRepublish,
}

func runRepublish(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !cfg.PersistenceEnabled() {
		return errors.New("config: DB_HOST is not set, no persisted tickets")
	}
	if len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopicTicket == "" {
		return errors.New("config: KAFKA_BROKERS and KAFKA_TOPIC_TICKET are required")
	}
	log := logger.New(cfg.AppEnv, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DSN())
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	tickets, err := registry.NewGormStore(db).LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("list tickets: %w", err)
	}
	log.Info("republishing ticket events", zap.Int("tickets", len(tickets)))

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket, log)
	defer producer.Close()
	for i := range tickets {
		t := &tickets[i]
		producer.ProduceTicketEvent(ctx, kafka.EventTicketCreated, map[string]interface{}{
			"order_id":   t.OrderID,
			"channel_id": t.ChannelID,
			"kind":       string(t.Kind),
			"created_at": t.CreatedAt.UTC().Format(time.RFC3339),
		})
		if (i+1)%50 == 0 || i == len(tickets)-1 {
			log.Info("republish progress", zap.Int("sent", i+1), zap.Int("total", len(tickets)))
		}
	}
	return nil
}
