package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewProducer_UnconfiguredIsNoop(t *testing.T) {
	for _, tc := range []struct {
		name    string
		brokers []string
		topic   string
	}{
		{"no brokers", nil, "ticket.events"},
		{"no topic", []string{"localhost:9092"}, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := NewProducer(tc.brokers, tc.topic, zap.NewNop())
			assert.Nil(t, p.writer)
			assert.NotPanics(t, func() {
				p.ProduceTicketEvent(context.Background(), EventTicketCreated, map[string]interface{}{"order_id": "o-1"})
			})
			assert.NoError(t, p.Close())
		})
	}
}

func TestNewProducer_Configured(t *testing.T) {
	p := NewProducer([]string{"kafka-1:9092", "kafka-2:9092"}, "ticket.events", zap.NewNop())
	if assert.NotNil(t, p.writer) {
		assert.Equal(t, "ticket.events", p.writer.Topic)
		assert.Equal(t, "kafka-1:9092,kafka-2:9092", p.writer.Addr.String())
	}
	assert.NoError(t, p.Close())
}
