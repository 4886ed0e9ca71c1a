// Package events publishes a best-effort audit trail of mutations to Kafka,
// supplemental to the realtime broker plane (internal/broker), mirroring
// chat_handler.go's publishEvent/kafka.Writer.WriteMessages calls and
// chat_repository.go's r.publishEvent(ctx, "conversation.created", conv).
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Publisher writes audit records to the "chat-events" topic. A nil
// Publisher (no brokers configured) is a valid no-op.
type Publisher struct {
	writer *kafka.Writer
	log    *logrus.Entry
}

func New(brokers []string, log *logrus.Entry) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        "chat-events",
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			Compression:  kafka.Snappy,
		},
		log: log.WithField("component", "events"),
	}
}

type record struct {
	Type      string      `json:"type"`
	At        time.Time   `json:"at"`
	Payload   interface{} `json:"payload"`
}

// Publish is fire-and-forget; failures are logged and discarded, same
// failure semantics as the realtime broker publish.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload interface{}) {
	if p == nil {
		return
	}
	data, err := json.Marshal(record{Type: eventType, At: time.Now(), Payload: payload})
	if err != nil {
		p.log.WithError(err).Warn("marshal audit event failed")
		return
	}
	go func() {
		if err := p.writer.WriteMessages(ctx, kafka.Message{Value: data}); err != nil {
			p.log.WithError(err).WithField("event_type", eventType).Warn("publish audit event failed")
		}
	}()
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
