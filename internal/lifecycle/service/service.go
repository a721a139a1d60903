// Package service implements the request lifecycle manager: it owns the
// export/deletion state machine, enforces the one-in-flight invariant at
// admission, and drives asynchronous execution to a terminal state.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"leadcrm/internal/artifact"
	"leadcrm/internal/audit"
	"leadcrm/internal/lifecycle/collector"
	"leadcrm/internal/lifecycle/deletion"
	"leadcrm/internal/lifecycle/metrics"
	"leadcrm/internal/lifecycle/models"
	"leadcrm/internal/lifecycle/store"
	"leadcrm/internal/lifecycle/tracer"
	dErrors "leadcrm/pkg/domain-errors"
	"leadcrm/pkg/platform/sentinel"
)

// Collector assembles export documents.
type Collector interface {
	Collect(ctx context.Context, subject string) (*collector.ExportDocument, error)
}

// Deleter executes a deletion strategy atomically.
type Deleter interface {
	Execute(ctx context.Context, subject string, strategy models.Strategy) (*deletion.Outcome, error)
}

// Scheduler hands an admitted request to the background worker pool. Enqueue
// returns an error when the work cannot be accepted, in which case the
// service fails the request immediately instead of leaving it stranded in
// pending.
type Scheduler interface {
	Enqueue(requestID string) error
}

// Option configures the Service.
type Option func(*Service)

// Service is the request lifecycle manager. It is the only writer of
// lifecycle request rows; collectors and coordinators never touch status.
type Service struct {
	store     store.Store
	collector Collector
	deleter   Deleter
	artifacts artifact.Store
	signer    *artifact.URLSigner
	scheduler Scheduler
	auditor   *audit.Publisher
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
	exportTTL time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(
	requests store.Store,
	coll Collector,
	deleter Deleter,
	artifacts artifact.Store,
	signer *artifact.URLSigner,
	auditor *audit.Publisher,
	exportTTL time.Duration,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	svc := &Service{
		store:     requests,
		collector: coll,
		deleter:   deleter,
		artifacts: artifacts,
		signer:    signer,
		auditor:   auditor,
		tracer:    tracer.NewNoop(),
		exportTTL: exportTTL,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithScheduler sets the background scheduler. Without one, Submit admits
// requests but leaves execution to an external caller of Execute.
func WithScheduler(s Scheduler) Option {
	return func(svc *Service) {
		svc.scheduler = s
	}
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(svc *Service) {
		svc.metrics = m
	}
}

// WithTracer sets the tracer used around execution.
func WithTracer(t tracer.Tracer) Option {
	return func(svc *Service) {
		svc.tracer = t
	}
}

// WithClock overrides the service clock. Test hook.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) {
		svc.now = now
	}
}

// Submit admits a new lifecycle request. Admission and the in-flight check
// are one critical section inside the store; a duplicate non-terminal
// (subject, kind) pair fails with CodeRequestConflict. On success the request
// is persisted pending, handed to the scheduler, and the id returned
// immediately.
func (s *Service) Submit(ctx context.Context, kind models.Kind, subject string, strategy models.Strategy, requester string) (string, error) {
	req, err := models.NewRequest(
		fmt.Sprintf("req_%s", uuid.New().String()),
		subject, kind, strategy, requester, s.now(),
	)
	if err != nil {
		return "", err
	}

	if err := s.store.Create(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			if s.metrics != nil {
				s.metrics.IncrementConflicts(string(kind))
			}
			return "", dErrors.New(dErrors.CodeRequestConflict,
				fmt.Sprintf("a %s request for this subject is already in flight", kind))
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "admit lifecycle request")
	}

	if s.metrics != nil {
		s.metrics.IncrementSubmitted(string(kind))
	}
	s.emitAudit(ctx, audit.Event{
		Subject:   subject,
		Actor:     requester,
		Action:    audit.ActionRequestSubmitted,
		RequestID: req.ID,
		Detail:    string(kind),
	})
	s.logger.Info("lifecycle request admitted",
		"request_id", req.ID, "kind", string(kind), "subject", subject)

	if s.scheduler != nil {
		if err := s.scheduler.Enqueue(req.ID); err != nil {
			// The queue refused the work; fail the request now rather than
			// strand it in pending forever.
			s.finishFailed(ctx, req, fmt.Errorf("schedule execution: %w", err), s.now())
			s.observeTerminal(req, "failed", 0)
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "schedule lifecycle request")
		}
	}
	return req.ID, nil
}

// Execute drives one request to a terminal state. It is idempotent on
// terminal requests: re-invocation after a worker restart is a no-op, so side
// effects never run twice. Exactly one of completed/failed is persisted for
// every request that enters processing.
func (s *Service) Execute(ctx context.Context, requestID string) error {
	req, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "unknown lifecycle request "+requestID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "load lifecycle request")
	}

	if req.Status.Terminal() {
		s.logger.Info("execute skipped, request already terminal",
			"request_id", req.ID, "status", string(req.Status))
		return nil
	}

	if err := req.Transition(models.StatusProcessing); err != nil {
		return err
	}
	if err := s.store.Update(ctx, req); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "mark request processing")
	}

	ctx, endSpan := s.tracer.Start(ctx, "lifecycle.execute",
		attribute.String("request.id", req.ID),
		attribute.String("request.kind", string(req.Kind)),
	)

	started := s.now()
	var execErr error
	switch req.Kind {
	case models.KindExport:
		execErr = s.runExport(ctx, req)
	case models.KindDeletion:
		execErr = s.runDeletion(ctx, req)
	default:
		execErr = dErrors.New(dErrors.CodeInternal, "unknown request kind "+string(req.Kind))
	}
	endSpan(execErr)

	finished := s.now()
	if execErr != nil {
		s.finishFailed(ctx, req, execErr, finished)
		s.observeTerminal(req, "failed", finished.Sub(started))
		return execErr
	}

	if err := req.Complete(finished); err != nil {
		return err
	}
	if err := s.store.Update(ctx, req); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persist completed request")
	}
	s.observeTerminal(req, "completed", finished.Sub(started))
	s.emitAudit(ctx, audit.Event{
		Subject:   req.Subject,
		Action:    audit.ActionRequestCompleted,
		RequestID: req.ID,
		Detail:    string(req.Kind),
	})
	s.logger.Info("lifecycle request completed",
		"request_id", req.ID, "kind", string(req.Kind), "subject", req.Subject)
	return nil
}

// Status returns the stored request.
func (s *Service) Status(ctx context.Context, requestID string) (*models.Request, error) {
	req, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown lifecycle request "+requestID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load lifecycle request")
	}

	if req.Kind == models.KindExport && req.Status == models.StatusCompleted && req.ArtifactKey != "" {
		if a, aErr := s.artifacts.Get(ctx, req.ArtifactKey); aErr == nil {
			if url, sErr := s.signer.SignedURL(a); sErr == nil {
				req.DownloadURL = url
			}
		}
		// An expired or swept artifact simply yields no link.
	}
	return req, nil
}

// Download validates a signed download token and returns the referenced
// artifact.
func (s *Service) Download(ctx context.Context, token string) (*artifact.Artifact, error) {
	claims, err := s.signer.Validate(token)
	if err != nil {
		return nil, err
	}
	a, err := s.artifacts.Get(ctx, claims.ArtifactID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "export artifact expired or removed")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load export artifact")
	}
	return a, nil
}

func (s *Service) runExport(ctx context.Context, req *models.Request) error {
	doc, err := s.collector.Collect(ctx, req.Subject)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeCollectionFailure, "serialize export document")
	}

	now := s.now()
	a := &artifact.Artifact{
		ID:          fmt.Sprintf("export_%s", uuid.New().String()),
		RequestID:   req.ID,
		Subject:     req.Subject,
		ContentType: "application/json",
		Payload:     payload,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.exportTTL),
	}
	if err := s.artifacts.Put(ctx, a); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store export artifact")
	}

	req.AttachArtifact(a.ID, a.ExpiresAt)
	s.emitAudit(ctx, audit.Event{
		Subject:   req.Subject,
		Action:    audit.ActionDataExported,
		RequestID: req.ID,
		Detail:    fmt.Sprintf("artifact %s expires %s", a.ID, a.ExpiresAt.Format(time.RFC3339)),
	})
	return nil
}

func (s *Service) runDeletion(ctx context.Context, req *models.Request) error {
	outcome, err := s.deleter.Execute(ctx, req.Subject, req.Strategy)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeDeletionFailure, "execute deletion strategy")
	}

	action := audit.ActionDataDeleted
	detail := fmt.Sprintf("strategy %s, %d rows deleted", outcome.Strategy, outcome.RowsDeleted)
	switch outcome.Strategy {
	case models.StrategyAnonymize:
		action = audit.ActionDataAnonymized
		detail = fmt.Sprintf("strategy %s, %d rows anonymized", outcome.Strategy, outcome.RowsAnonymized)
	case models.StrategyRetain:
		action = audit.ActionRetentionHoldSet
		detail = fmt.Sprintf("strategy %s, %d leads held", outcome.Strategy, outcome.LeadsHeld)
		req.RetainUntil = outcome.RetainUntil
	}
	s.emitAudit(ctx, audit.Event{
		Subject:   req.Subject,
		Action:    action,
		RequestID: req.ID,
		Detail:    detail,
	})
	return nil
}

func (s *Service) finishFailed(ctx context.Context, req *models.Request, cause error, now time.Time) {
	if req.Status == models.StatusPending {
		if err := req.Transition(models.StatusProcessing); err != nil {
			s.logger.Error("cannot move failed request to processing",
				"request_id", req.ID, "error", err)
			return
		}
	}
	if err := req.Fail(now, cause.Error()); err != nil {
		s.logger.Error("cannot mark request failed", "request_id", req.ID, "error", err)
		return
	}
	if err := s.store.Update(ctx, req); err != nil {
		s.logger.Error("cannot persist failed request", "request_id", req.ID, "error", err)
		return
	}
	s.emitAudit(ctx, audit.Event{
		Subject:   req.Subject,
		Action:    audit.ActionRequestFailed,
		RequestID: req.ID,
		Detail:    cause.Error(),
	})
	s.logger.Warn("lifecycle request failed",
		"request_id", req.ID, "kind", string(req.Kind), "subject", req.Subject, "error", cause)
}

func (s *Service) observeTerminal(req *models.Request, outcome string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveTerminal(string(req.Kind), outcome, elapsed.Seconds())
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}
