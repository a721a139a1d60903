package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"leadcrm/internal/audit"
	"leadcrm/internal/consent/metrics"
	"leadcrm/internal/consent/models"
	dErrors "leadcrm/pkg/domain-errors"
	"leadcrm/pkg/platform/sentinel"
)

// Store defines the persistence interface for consent records.
// Error Contract:
// - FindActiveBySubjectAndType and WithdrawBySubjectAndType return
//   sentinel.ErrNotFound when no active grant exists
// - Save returns sentinel.ErrConflict when an active grant already exists
// - Other methods return nil on success or wrapped errors on failure
type Store interface {
	Save(ctx context.Context, consent *models.Record) error
	FindActiveBySubjectAndType(ctx context.Context, subject string, consentType models.Type) (*models.Record, error)
	ListBySubject(ctx context.Context, subject string) ([]*models.Record, error)
	WithdrawBySubjectAndType(ctx context.Context, subject string, consentType models.Type, withdrawnAt time.Time, reason string) (*models.Record, error)
}

// Option configures the Service.
type Option func(*Service)

// Service is the consent ledger: it records grant and withdrawal events and
// answers current-effective-consent queries. Duplicate active grants for the
// same (subject, type) are rejected rather than superseded, so the effective
// grant stays unique and every re-confirmation is an explicit ledger event.
type Service struct {
	store   Store
	auditor *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(store Store, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		auditor: auditor,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Record appends a consent decision to the ledger.
// A grant (given=true) fails with CodeDuplicateConsent when an active grant
// for the same (subject, type) already exists.
func (s *Service) Record(ctx context.Context, subject string, consentType models.Type, given bool, method models.Method, consentContext string) (*models.Record, error) {
	record, err := models.NewRecord(
		fmt.Sprintf("consent_%s", uuid.New().String()),
		subject,
		consentType,
		given,
		method,
		consentContext,
		time.Now(),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid consent record")
	}

	if err := s.store.Save(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeDuplicateConsent, "an active grant already exists for this consent type")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save consent")
	}

	s.emitAudit(ctx, audit.Event{
		Subject:   subject,
		Action:    audit.ActionConsentRecorded,
		Detail:    fmt.Sprintf("type=%s given=%t method=%s", consentType, given, method),
		Timestamp: record.GrantedAt,
	})
	if s.metrics != nil {
		s.metrics.IncrementConsentsRecorded(string(consentType))
		if record.IsActive() {
			s.metrics.IncrementActiveConsents(1)
		}
	}
	return record, nil
}

// Withdraw marks the active grant for (subject, type) as withdrawn.
// Withdrawal is permanent; re-granting creates a new ledger record.
func (s *Service) Withdraw(ctx context.Context, subject string, consentType models.Type, reason string) error {
	if subject == "" {
		return dErrors.New(dErrors.CodeBadRequest, "subject required")
	}
	if !consentType.IsValid() {
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid consent type: %s", consentType))
	}

	now := time.Now()
	record, err := s.store.WithdrawBySubjectAndType(ctx, subject, consentType, now, reason)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNoActiveConsent, "no active consent to withdraw")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to withdraw consent")
	}

	s.emitAudit(ctx, audit.Event{
		Subject:   subject,
		Action:    audit.ActionConsentWithdrawn,
		Detail:    fmt.Sprintf("type=%s reason=%s", record.Type, reason),
		Timestamp: now,
	})
	if s.metrics != nil {
		s.metrics.IncrementConsentsWithdrawn(string(consentType))
		s.metrics.DecrementActiveConsents(1)
	}
	return nil
}

// HasConsent reports whether an effective grant exists for (subject, type).
// It is a pure existence check and never mutates the ledger.
func (s *Service) HasConsent(ctx context.Context, subject string, consentType models.Type) (bool, error) {
	if subject == "" {
		return false, dErrors.New(dErrors.CodeBadRequest, "subject required")
	}
	if !consentType.IsValid() {
		return false, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid consent type: %s", consentType))
	}

	_, err := s.store.FindActiveBySubjectAndType(ctx, subject, consentType)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			if s.metrics != nil {
				s.metrics.IncrementConsentCheckFailed(string(consentType))
			}
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
	}
	if s.metrics != nil {
		s.metrics.IncrementConsentCheckPassed(string(consentType))
	}
	return true, nil
}

// List returns the full ledger history for a subject, oldest first.
func (s *Service) List(ctx context.Context, subject string) ([]*models.Record, error) {
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "subject required")
	}
	records, err := s.store.ListBySubject(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consents")
	}
	return records, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}
