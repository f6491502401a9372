package service

import (
	"context"
	"time"

	"github.com/psds-microservice/ticket-bot/internal/kafka"
)

const eventTimeout = 5 * time.Second

// publish отправляет событие в фоне: ни отмена вызывающего, ни зависший брокер
// не задерживают тикет.
func publish(events kafka.TicketEventProducer, event string, payload map[string]interface{}) {
	if events == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		events.ProduceTicketEvent(ctx, event, payload)
	}()
}
