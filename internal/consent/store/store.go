package store

import (
	"context"
	"time"

	"leadcrm/internal/consent/models"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the requested entity does not exist
// - Return sentinel.ErrConflict when saving would violate the effective-grant invariant
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// Store defines the persistence interface for consent records.
type Store interface {
	Save(ctx context.Context, consent *models.Record) error
	FindActiveBySubjectAndType(ctx context.Context, subject string, consentType models.Type) (*models.Record, error)
	ListBySubject(ctx context.Context, subject string) ([]*models.Record, error)
	WithdrawBySubjectAndType(ctx context.Context, subject string, consentType models.Type, withdrawnAt time.Time, reason string) (*models.Record, error)
	DeleteBySubject(ctx context.Context, subject string) (int, error)
	ReassignSubject(ctx context.Context, subject, replacement string) (int, error)
}
