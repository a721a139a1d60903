package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"leadcrm/internal/audit"
	"leadcrm/internal/consent/models"
	"leadcrm/internal/consent/store"
	dErrors "leadcrm/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	store      *store.InMemoryStore
	service    *Service
	auditStore *audit.InMemoryStore
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.New()
	s.auditStore = audit.NewInMemoryStore()
	auditor := audit.NewPublisher(s.auditStore)
	s.service = NewService(
		s.store,
		auditor,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestRecordThenHasConsentRoundTrip() {
	ctx := context.Background()

	record, err := s.service.Record(ctx, "jane@example.com", models.TypeMarketing, true, models.MethodExplicit, "signup form")
	s.Require().NoError(err)
	s.True(record.IsActive())

	has, err := s.service.HasConsent(ctx, "jane@example.com", models.TypeMarketing)
	s.Require().NoError(err)
	s.True(has)

	s.Require().NoError(s.service.Withdraw(ctx, "jane@example.com", models.TypeMarketing, "unsubscribed"))

	has, err = s.service.HasConsent(ctx, "jane@example.com", models.TypeMarketing)
	s.Require().NoError(err)
	s.False(has)
}

// TestRecordRejectsDuplicateActiveGrant pins the ledger policy: a second
// active grant for the same (subject, type) is rejected, never superseded.
func (s *ServiceSuite) TestRecordRejectsDuplicateActiveGrant() {
	ctx := context.Background()

	_, err := s.service.Record(ctx, "jane@example.com", models.TypeAnalytics, true, models.MethodExplicit, "")
	s.Require().NoError(err)

	_, err = s.service.Record(ctx, "jane@example.com", models.TypeAnalytics, true, models.MethodImplicit, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateConsent))

	// The original grant is untouched
	has, err := s.service.HasConsent(ctx, "jane@example.com", models.TypeAnalytics)
	s.Require().NoError(err)
	s.True(has)
}

func (s *ServiceSuite) TestWithdrawWithoutActiveGrant() {
	ctx := context.Background()

	err := s.service.Withdraw(ctx, "nobody@example.com", models.TypeMarketing, "reason")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNoActiveConsent))
}

func (s *ServiceSuite) TestWithdrawTwiceFails() {
	ctx := context.Background()

	_, err := s.service.Record(ctx, "jane@example.com", models.TypeFunctional, true, models.MethodExplicit, "")
	s.Require().NoError(err)
	s.Require().NoError(s.service.Withdraw(ctx, "jane@example.com", models.TypeFunctional, "first"))

	err = s.service.Withdraw(ctx, "jane@example.com", models.TypeFunctional, "second")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNoActiveConsent))
}

func (s *ServiceSuite) TestValidationErrors() {
	ctx := context.Background()

	s.Run("invalid type on record", func() {
		_, err := s.service.Record(ctx, "jane@example.com", models.Type("bogus"), true, models.MethodExplicit, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("missing subject on has-consent", func() {
		_, err := s.service.HasConsent(ctx, "", models.TypeMarketing)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("invalid type on withdraw", func() {
		err := s.service.Withdraw(ctx, "jane@example.com", models.Type("bogus"), "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestAuditTrailGrowsWithLedger() {
	ctx := context.Background()

	_, err := s.service.Record(ctx, "jane@example.com", models.TypeMarketing, true, models.MethodExplicit, "")
	s.Require().NoError(err)
	s.Require().NoError(s.service.Withdraw(ctx, "jane@example.com", models.TypeMarketing, "done"))

	events, err := s.auditStore.ListBySubject(ctx, "jane@example.com")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	assert.Equal(s.T(), audit.ActionConsentRecorded, events[0].Action)
	assert.Equal(s.T(), audit.ActionConsentWithdrawn, events[1].Action)
}

func TestListReturnsFullHistory(t *testing.T) {
	ctx := context.Background()
	memStore := store.New()
	svc := NewService(memStore, audit.NewPublisher(audit.NewInMemoryStore()), slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := svc.Record(ctx, "jane@example.com", models.TypeMarketing, true, models.MethodExplicit, "")
	require.NoError(t, err)
	require.NoError(t, svc.Withdraw(ctx, "jane@example.com", models.TypeMarketing, "cycle 1"))
	_, err = svc.Record(ctx, "jane@example.com", models.TypeMarketing, true, models.MethodExplicit, "")
	require.NoError(t, err)

	records, err := svc.List(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

type failingAuditStore struct{}

func (failingAuditStore) Append(context.Context, audit.Event) error {
	return errors.New("audit backend down")
}

func (failingAuditStore) ListBySubject(context.Context, string) ([]audit.Event, error) {
	return nil, nil
}

// The ledger stays authoritative when the audit backend misbehaves: the
// grant succeeds and the emit failure is logged, not swallowed.
func TestRecordSurvivesAuditFailure(t *testing.T) {
	ctx := context.Background()
	var logBuf bytes.Buffer
	svc := NewService(
		store.New(),
		audit.NewPublisher(failingAuditStore{}),
		slog.New(slog.NewTextHandler(&logBuf, nil)),
	)

	record, err := svc.Record(ctx, "jane@example.com", models.TypeMarketing, true, models.MethodExplicit, "")
	require.NoError(t, err)
	require.NotNil(t, record)

	given, err := svc.HasConsent(ctx, "jane@example.com", models.TypeMarketing)
	require.NoError(t, err)
	assert.True(t, given)
	assert.Contains(t, logBuf.String(), "audit emit failed")
}
