// Package audit publishes strategy activation audit events for the
// downstream reporting pipeline.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const defaultTopic = "strategy-audit-events"

// Event is one activation-cycle record. Deactivation events carry the
// activation stamp they close, so the consumer always sees complete pairs.
type Event struct {
	UserID       string     `json:"userId"`
	StrategyID   string     `json:"strategyId"`
	Kind         string     `json:"kind"` // "ACTIVATED", "DEACTIVATED", "CREATED", "DELETED"
	OccurredAt   time.Time  `json:"occurredAt"`
	ClosesActive *time.Time `json:"closesActive,omitempty"`
}

// Publisher writes events to Kafka. A nil writer (no broker configured)
// disables publishing; mutations never fail because auditing is down.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher for the comma-separated broker list.
// An empty list returns a disabled publisher.
func NewPublisher(brokers string, topic string) *Publisher {
	brokers = strings.TrimSpace(brokers)
	if brokers == "" {
		log.Println("Warning: No Kafka brokers configured. Audit events disabled.")
		return &Publisher{}
	}
	if topic == "" {
		topic = defaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Publish writes one event, keyed by user so a consumer reads each user's
// cycle events in order. Failures are logged, not propagated.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil || p.writer == nil {
		return
	}

	b, err := json.Marshal(event)
	if err != nil {
		log.Printf("audit: marshal event: %v", err)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: b,
	})
	if err != nil {
		log.Printf("audit: publish %s for strategy %s: %v", event.Kind, event.StrategyID, err)
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
