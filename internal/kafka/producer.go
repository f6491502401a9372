package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventTicketCreated = "ticket.created"
	EventTicketClosed  = "ticket.closed"
)

// TicketEventProducer — интерфейс для отправки событий тикета в Kafka (для подмены в тестах).
type TicketEventProducer interface {
	ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{})
}

// Producer пишет события тикетов в топик Kafka (best-effort, не влияет на результат вызывающего).
type Producer struct {
	writer *kafka.Writer
	topic  string
	log    *zap.Logger
}

// NewProducer создаёт продюсер. Если brokers пустой или topic пустой — методы no-op.
func NewProducer(brokers []string, topic string, log *zap.Logger) *Producer {
	p := &Producer{log: log.Named("kafka")}
	if len(brokers) == 0 || topic == "" {
		return p
	}
	p.topic = topic
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return p
}

// ProduceTicketEvent отправляет {"event": event, ...payload}. Поле "order_id" используется
// как ключ сообщения, чтобы события одного заказа шли по порядку.
func (p *Producer) ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{}) {
	if p.writer == nil {
		return
	}
	msg := map[string]interface{}{"event": event, "at": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range payload {
		msg[k] = v
	}
	body, err := json.Marshal(msg)
	if err != nil {
		p.log.Warn("marshal ticket event", zap.String("event", event), zap.Error(err))
		return
	}
	var key []byte
	if orderID, ok := payload["order_id"].(string); ok {
		key = []byte(orderID)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: body}); err != nil {
		p.log.Warn("write ticket event", zap.String("event", event), zap.Error(err))
	}
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
