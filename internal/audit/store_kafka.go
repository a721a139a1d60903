package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"leadcrm/internal/platform/kafka/producer"
	"leadcrm/pkg/platform/circuit"
)

// KafkaStore decorates an audit store with fan-out to a Kafka topic so
// downstream consumers (SIEM, compliance reporting) receive every event.
// Persistence to the inner store is authoritative; publishing is best-effort
// and failures are logged, never surfaced to the emitting domain logic.
// A circuit breaker gates the error logging so a broker outage produces one
// line when the circuit opens and one when it recovers, not one per event.
type KafkaStore struct {
	inner    Store
	producer *producer.Producer
	topic    string
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

// NewKafkaStore wraps inner with Kafka fan-out on the given topic.
func NewKafkaStore(inner Store, prod *producer.Producer, topic string, logger *slog.Logger) *KafkaStore {
	return &KafkaStore{
		inner:    inner,
		producer: prod,
		topic:    topic,
		breaker:  circuit.New("audit-kafka", circuit.WithFailureThreshold(3)),
		logger:   logger,
	}
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	if err := s.inner.Append(ctx, event); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to encode audit event", "error", err, "action", event.Action)
		}
		return nil
	}

	msg := &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.Subject), // partition by subject to preserve per-subject ordering
		Value: payload,
	}
	if err := s.producer.Produce(ctx, msg); err != nil {
		suppress, change := s.breaker.RecordFailure()
		if s.logger != nil {
			switch {
			case change.Opened:
				s.logger.Error("audit fan-out failing, suppressing per-event errors",
					"error", err, "topic", s.topic)
			case !suppress:
				s.logger.Error("failed to publish audit event",
					"error", err,
					"action", event.Action,
					"subject", event.Subject,
				)
			}
		}
		return nil
	}

	if _, change := s.breaker.RecordSuccess(); change.Closed && s.logger != nil {
		s.logger.Info("audit fan-out recovered", "topic", s.topic)
	}
	return nil
}

func (s *KafkaStore) ListBySubject(ctx context.Context, subject string) ([]Event, error) {
	return s.inner.ListBySubject(ctx, subject)
}
