// internal/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Event types published to the settlement topic. Consumers are the
// out-of-scope collaborators (notifications, analytics, real-time broadcast).
const (
	EventTransactionSucceeded = "transaction.succeeded"
	EventTransactionFailed    = "transaction.failed"
	EventEscrowReleased       = "escrow.released"
	EventEscrowDisputed       = "escrow.disputed"
	EventCommissionCreated    = "commission.created"
	EventPayoutCreated        = "payout.created"
)

// Publisher emits settlement events to Kafka. Publishing is strictly
// best-effort: settlement state lives in the database, and a publish failure
// must never roll back a committed transition. A nil Publisher is a no-op so
// deployments without brokers need no special casing.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	if len(brokers) == 0 {
		return nil
	}

	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 5 * time.Second,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

type envelope struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Publish serializes and sends one event keyed on the related aggregate id.
// Errors are logged and swallowed.
func (p *Publisher) Publish(ctx context.Context, eventType, key string, payload interface{}) {
	if p == nil {
		return
	}

	value, err := json.Marshal(envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		logrus.WithError(err).WithField("event_type", eventType).Warn("Failed to encode settlement event")
		return
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	}); err != nil {
		logrus.WithError(err).WithField("event_type", eventType).Warn("Failed to publish settlement event")
	}
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
