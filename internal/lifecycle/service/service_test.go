package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"leadcrm/internal/artifact"
	"leadcrm/internal/audit"
	consentmodels "leadcrm/internal/consent/models"
	consentstore "leadcrm/internal/consent/store"
	"leadcrm/internal/lifecycle/anonymize"
	"leadcrm/internal/lifecycle/collector"
	"leadcrm/internal/lifecycle/deletion"
	"leadcrm/internal/lifecycle/models"
	"leadcrm/internal/lifecycle/store"
	"leadcrm/internal/lifecycle/store/mocks"
	subjectmodels "leadcrm/internal/subject/models"
	"leadcrm/internal/subject/registry"
	subjectstore "leadcrm/internal/subject/store"
	dErrors "leadcrm/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	requests  *store.InMemoryStore
	subjects  *subjectstore.InMemoryStore
	consents  *consentstore.InMemoryStore
	audits    *audit.InMemoryStore
	artifacts *artifact.InMemoryStore
	signer    *artifact.URLSigner
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.requests = store.New()
	s.subjects = subjectstore.New()
	s.consents = consentstore.New()
	s.audits = audit.NewInMemoryStore()
	s.artifacts = artifact.NewMemory()
	s.signer = artifact.NewURLSigner("test-key", "https://crm.example.com")

	logger := slog.Default()
	reg := registry.New(s.subjects, s.consents, logger)
	coll := collector.New(reg, s.audits, logger)
	uow := deletion.NewMemoryUnitOfWork(s.subjects, s.consents)
	coord := deletion.NewCoordinator(reg, uow, anonymize.NewEngine(), 90*24*time.Hour, logger)

	s.service = NewService(
		s.requests, coll, coord, s.artifacts, s.signer,
		audit.NewPublisher(s.audits), 7*24*time.Hour, logger,
	)
}

func (s *ServiceSuite) seedJane() {
	s.subjects.AddProfile(&subjectmodels.Profile{ID: "prof-1", Email: "jane@example.com", FirstName: "Jane"})
	for _, id := range []string{"lead-1", "lead-2", "lead-3"} {
		s.subjects.AddLead(&subjectmodels.Lead{ID: id, Email: "jane@example.com"})
	}
	for i, id := range []string{"task-1", "task-2", "task-3", "task-4", "task-5"} {
		s.subjects.AddTask(&subjectmodels.Task{ID: id, LeadID: []string{"lead-1", "lead-2"}[i%2]})
	}
	for i, ct := range []consentmodels.Type{consentmodels.TypeMarketing, consentmodels.TypeAnalytics} {
		rec, err := consentmodels.NewRecord(
			[]string{"consent-1", "consent-2"}[i], "jane@example.com", ct, true,
			consentmodels.MethodExplicit, "signup", time.Now(),
		)
		s.Require().NoError(err)
		s.Require().NoError(s.consents.Save(s.ctx, rec))
	}
}

func (s *ServiceSuite) TestExportEndToEnd() {
	s.seedJane()

	id, err := s.service.Submit(s.ctx, models.KindExport, "jane@example.com", "", "dpo@crm")
	s.Require().NoError(err)

	req, err := s.service.Status(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, req.Status)

	s.Require().NoError(s.service.Execute(s.ctx, id))

	req, err = s.service.Status(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, req.Status)
	s.NotEmpty(req.ArtifactKey)
	s.Require().NotNil(req.ArtifactExpiry)
	s.NotNil(req.CompletedAt)

	stored, err := s.artifacts.Get(s.ctx, req.ArtifactKey)
	s.Require().NoError(err)

	var doc collector.ExportDocument
	s.Require().NoError(json.Unmarshal(stored.Payload, &doc))
	s.Len(doc.Data.Leads, 3)
	s.Len(doc.Data.Tasks, 5)
	s.Len(doc.Data.Consents, 2)
	s.Empty(doc.Data.Activities)

	link, err := s.signer.SignedURL(stored)
	s.Require().NoError(err)
	s.Contains(link, "token=")

	// Status attaches a signed link once the export is downloadable.
	s.Require().NotEmpty(req.DownloadURL)
	s.Contains(req.DownloadURL, "/v1/privacy/exports/download?token=")
}

func (s *ServiceSuite) TestExecuteIdempotentOnTerminalRequest() {
	s.seedJane()

	id, err := s.service.Submit(s.ctx, models.KindExport, "jane@example.com", "", "dpo@crm")
	s.Require().NoError(err)
	s.Require().NoError(s.service.Execute(s.ctx, id))

	first, err := s.service.Status(s.ctx, id)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Execute(s.ctx, id))

	second, err := s.service.Status(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(first, second)

	// No duplicate side effects: exactly one export event was audited.
	events, err := s.audits.ListBySubject(s.ctx, "jane@example.com")
	s.Require().NoError(err)
	exported := 0
	for _, e := range events {
		if e.Action == audit.ActionDataExported {
			exported++
		}
	}
	s.Equal(1, exported)
}

func (s *ServiceSuite) TestSubmitConflictWhileInFlight() {
	s.seedJane()

	_, err := s.service.Submit(s.ctx, models.KindExport, "jane@example.com", "", "dpo@crm")
	s.Require().NoError(err)

	_, err = s.service.Submit(s.ctx, models.KindExport, "jane@example.com", "", "dpo@crm")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRequestConflict))

	requests, err := s.requests.ListBySubject(s.ctx, "jane@example.com")
	s.Require().NoError(err)
	s.Len(requests, 1)
}

func (s *ServiceSuite) TestResubmissionAllowedAfterTerminal() {
	s.seedJane()

	id, err := s.service.Submit(s.ctx, models.KindExport, "jane@example.com", "", "dpo@crm")
	s.Require().NoError(err)
	s.Require().NoError(s.service.Execute(s.ctx, id))

	_, err = s.service.Submit(s.ctx, models.KindExport, "jane@example.com", "", "dpo@crm")
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestFullDeletionScenario() {
	s.subjects.AddProfile(&subjectmodels.Profile{ID: "prof-1", Email: "bob@example.com"})
	s.subjects.AddLead(&subjectmodels.Lead{ID: "lead-1", Email: "bob@example.com"})
	s.subjects.AddLead(&subjectmodels.Lead{ID: "lead-2", Email: "bob@example.com"})
	for _, id := range []string{"task-1", "task-2", "task-3", "task-4"} {
		s.subjects.AddTask(&subjectmodels.Task{ID: id, LeadID: "lead-1"})
	}

	id, err := s.service.Submit(s.ctx, models.KindDeletion, "bob@example.com", models.StrategyFull, "dpo@crm")
	s.Require().NoError(err)
	s.Require().NoError(s.service.Execute(s.ctx, id))

	req, err := s.service.Status(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, req.Status)

	tasks, err := s.subjects.FindTasksByLeadIDs(s.ctx, []string{"lead-1", "lead-2"})
	s.Require().NoError(err)
	s.Empty(tasks)

	_, err = s.subjects.FindProfileByEmail(s.ctx, "bob@example.com")
	s.Require().Error(err)
}

func (s *ServiceSuite) TestRetainDeletionRecordsRetainUntil() {
	s.seedJane()

	id, err := s.service.Submit(s.ctx, models.KindDeletion, "jane@example.com", models.StrategyRetain, "dpo@crm")
	s.Require().NoError(err)
	s.Require().NoError(s.service.Execute(s.ctx, id))

	req, err := s.service.Status(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, req.Status)
	s.NotNil(req.RetainUntil)
}

func (s *ServiceSuite) TestFailedExecutionPersistsReason() {
	s.seedJane()

	id, err := s.service.Submit(s.ctx, models.KindExport, "jane@example.com", "", "dpo@crm")
	s.Require().NoError(err)

	// Swap in a collector that cannot read.
	s.service.collector = failingCollector{}

	err = s.service.Execute(s.ctx, id)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeCollectionFailure))

	req, err := s.service.Status(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, req.Status)
	s.Contains(req.FailureReason, "collection")
}

func (s *ServiceSuite) TestSchedulerRefusalFailsRequest() {
	s.seedJane()
	s.service.scheduler = refusingScheduler{}

	_, err := s.service.Submit(s.ctx, models.KindExport, "jane@example.com", "", "dpo@crm")
	s.Require().Error(err)

	requests, err := s.requests.ListBySubject(s.ctx, "jane@example.com")
	s.Require().NoError(err)
	s.Require().Len(requests, 1)
	s.Equal(models.StatusFailed, requests[0].Status)
}

func (s *ServiceSuite) TestDownloadRoundTrip() {
	s.seedJane()

	id, err := s.service.Submit(s.ctx, models.KindExport, "jane@example.com", "", "dpo@crm")
	s.Require().NoError(err)
	s.Require().NoError(s.service.Execute(s.ctx, id))

	req, err := s.service.Status(s.ctx, id)
	s.Require().NoError(err)

	stored, err := s.artifacts.Get(s.ctx, req.ArtifactKey)
	s.Require().NoError(err)
	link, err := s.signer.SignedURL(stored)
	s.Require().NoError(err)

	token := link[len("https://crm.example.com/v1/privacy/exports/download?token="):]
	a, err := s.service.Download(s.ctx, token)
	s.Require().NoError(err)
	s.Equal(req.ArtifactKey, a.ID)
	s.Equal("application/json", a.ContentType)
}

func TestExecuteUnknownRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockStore(ctrl)
	svc := NewService(mockStore, nil, nil, nil, nil, nil, time.Hour, slog.Default())

	mockStore.EXPECT().FindByID(gomock.Any(), "ghost").Return(nil, errors.New("connection refused"))

	err := svc.Execute(context.Background(), "ghost")
	if !dErrors.HasCode(err, dErrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestExecuteRejectsMidFlightRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockStore(ctrl)
	svc := NewService(mockStore, nil, nil, nil, nil, nil, time.Hour, slog.Default())

	mockStore.EXPECT().FindByID(gomock.Any(), "req-1").Return(&models.Request{
		ID: "req-1", Subject: "jane@example.com", Kind: models.KindExport, Status: models.StatusProcessing,
	}, nil)

	err := svc.Execute(context.Background(), "req-1")
	if !dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

type failingCollector struct{}

func (failingCollector) Collect(context.Context, string) (*collector.ExportDocument, error) {
	return nil, dErrors.New(dErrors.CodeCollectionFailure, "collection backend unavailable")
}

type refusingScheduler struct{}

func (refusingScheduler) Enqueue(string) error {
	return errors.New("queue full")
}
