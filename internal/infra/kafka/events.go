package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/core/port"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka. Security
// events travel on topics named after the event type, for example
// telemed.account.locked.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string               `json:"event_id"`
	EventType string               `json:"event_type"`
	Timestamp time.Time            `json:"timestamp"`
	Version   string               `json:"version"`
	Payload   domain.SecurityEvent `json:"payload"`
	Metadata  map[string]string    `json:"metadata,omitempty"`
}

// Publish sends a security event to the side channel. Callers treat the
// error as advisory; the audited action has already happened.
func (p *EventPublisher) Publish(ctx context.Context, event domain.SecurityEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	envelope := eventEnvelope{
		EventID:   uuid.NewString(),
		EventType: string(event.Type),
		Timestamp: event.OccurredAt.UTC(),
		Version:   schemaVersion,
		Payload:   event,
		Metadata: map[string]string{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(string(event.Type)),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts down the underlying producer.
func (p *EventPublisher) Close() error {
	return p.producer.Close()
}

var _ port.EventPublisher = (*EventPublisher)(nil)
