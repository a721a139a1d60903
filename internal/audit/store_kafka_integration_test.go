//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"leadcrm/internal/audit"
	"leadcrm/internal/platform/kafka/producer"
	"leadcrm/pkg/testutil"
	"leadcrm/pkg/testutil/containers"
)

const auditTopic = "leadcrm.audit.events"

type KafkaStoreIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
	store    *audit.KafkaStore
}

func TestKafkaStoreIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaStoreIntegrationSuite))
}

func (s *KafkaStoreIntegrationSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.kafka = mgr.GetKafka(s.T())

	s.Require().NoError(s.kafka.CreateTopic(context.Background(), auditTopic, 1, 1))

	prod, err := producer.New(producer.Config{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, slog.Default())
	s.Require().NoError(err)
	s.producer = prod

	s.store = audit.NewKafkaStore(audit.NewInMemoryStore(), prod, auditTopic, slog.Default())
}

func (s *KafkaStoreIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

// Appended events must fan out to the topic keyed by subject, so downstream
// consumers see per-subject ordering.
func (s *KafkaStoreIntegrationSuite) TestAppendFansOutToTopic() {
	ctx := context.Background()
	subject := testutil.TestSubjects.Jane

	event := audit.Event{
		Timestamp: time.Now().UTC(),
		Subject:   subject,
		Actor:     "dpo@leadcrm.example",
		Action:    audit.ActionRequestSubmitted,
		RequestID: "req_fanout",
		Detail:    "export requested",
	}
	s.Require().NoError(s.store.Append(ctx, event))

	consumer, err := s.kafka.NewConsumer(ctx, "audit-verify", auditTopic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForMessage(ctx, consumer, 30*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == subject
	})
	s.Require().NotNil(record, "audit event should reach the topic")

	var published audit.Event
	s.Require().NoError(json.Unmarshal(record.Value, &published))
	s.Equal(audit.ActionRequestSubmitted, published.Action)
	s.Equal("req_fanout", published.RequestID)
	s.Equal(subject, published.Subject)
}

// Persistence is authoritative; a broken broker connection must not fail the append.
func (s *KafkaStoreIntegrationSuite) TestAppendSurvivesPublishFailure() {
	ctx := context.Background()

	prod, err := producer.New(producer.Config{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         0,
		DeliveryTimeout: 2 * time.Second,
	}, slog.Default())
	s.Require().NoError(err)
	prod.Close()

	inner := audit.NewInMemoryStore()
	store := audit.NewKafkaStore(inner, prod, auditTopic, slog.Default())

	event := audit.Event{
		Timestamp: time.Now().UTC(),
		Subject:   testutil.TestSubjects.Bob,
		Action:    audit.ActionConsentRecorded,
	}
	s.Require().NoError(store.Append(ctx, event))

	persisted, err := inner.ListBySubject(ctx, testutil.TestSubjects.Bob)
	s.Require().NoError(err)
	s.Len(persisted, 1)
}
