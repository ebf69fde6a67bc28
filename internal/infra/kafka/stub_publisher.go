package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

// Publish logs the security event at info level.
func (p *StubPublisher) Publish(_ context.Context, event domain.SecurityEvent) error {
	at := event.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", string(event.Type)),
		zap.String("actor_id", event.ActorID),
		zap.String("entity_type", event.EntityType),
		zap.String("entity_id", event.EntityID),
		zap.String("detail", event.Detail),
		zap.Time("timestamp", at.UTC()),
	)
	return nil
}

// Close is a no-op for the stub.
func (p *StubPublisher) Close() error {
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
