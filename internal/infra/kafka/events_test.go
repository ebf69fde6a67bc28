package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func TestPublishSecurityEvent(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()

	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "telemed",
		},
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name: "telemedicina",
		Env:  "test",
	}, zaptest.NewLogger(t))

	occurredAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	event := domain.SecurityEvent{
		Type:       domain.EventAccountLocked,
		ActorID:    "user-789",
		ActorRole:  "medico",
		EntityType: "usuario",
		EntityID:   "user-789",
		Detail:     "5 intentos fallidos",
		OccurredAt: occurredAt,
	}

	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "telemed.account.locked" {
			t.Fatalf("expected topic telemed.account.locked, got %s", msg.Topic)
		}

		raw, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("encode message: %v", err)
		}

		var envelope eventEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}

		if envelope.EventType != string(domain.EventAccountLocked) {
			t.Fatalf("expected event type %s, got %s", domain.EventAccountLocked, envelope.EventType)
		}
		if envelope.EventID == "" {
			t.Fatalf("expected generated event id")
		}
		if !envelope.Timestamp.Equal(occurredAt) {
			t.Fatalf("expected timestamp %v, got %v", occurredAt, envelope.Timestamp)
		}
		if envelope.Payload.ActorID != "user-789" {
			t.Fatalf("expected actor id user-789, got %s", envelope.Payload.ActorID)
		}
		if envelope.Metadata["service"] != "telemedicina" {
			t.Fatalf("expected service metadata, got %v", envelope.Metadata)
		}
	default:
		t.Fatalf("expected message on producer input channel")
	}
}

func TestPublishSecurityEvent_ContextCancelled(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	// Fill the buffer so the next publish blocks on the input channel.
	asyncProducer.input <- &sarama.ProducerMessage{}

	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg:      config.KafkaSettings{TopicPrefix: "telemed"},
		errChan:  make(chan error, 1),
		done:     make(chan struct{}),
	}

	publisher := NewEventPublisher(producer, config.AppSettings{Name: "telemedicina", Env: "test"}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.Publish(ctx, domain.SecurityEvent{Type: domain.EventAuditWriteFailed})
	if err == nil {
		t.Fatalf("expected context error")
	}
}
