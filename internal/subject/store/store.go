package store

import (
	"context"
	"time"

	"leadcrm/internal/subject/models"
)

// Reader is the narrow read surface the collector and registry use.
// Error Contract:
// - FindProfileByEmail returns sentinel.ErrNotFound when no profile exists
// - List methods return empty slices, not errors, when nothing matches
type Reader interface {
	FindProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	FindLeadsByEmail(ctx context.Context, email string) ([]*models.Lead, error)
	FindTasksByLeadIDs(ctx context.Context, leadIDs []string) ([]*models.Task, error)
	FindActivitiesByLeadIDs(ctx context.Context, leadIDs []string) ([]*models.Activity, error)
	FindCommunicationsByLeadIDs(ctx context.Context, leadIDs []string) ([]*models.Communication, error)
}

// Mutator is the write surface the deletion coordinator uses. Every method is
// scoped by explicit record ids so strategies never re-derive joins.
type Mutator interface {
	DeleteActivities(ctx context.Context, ids []string) (int, error)
	DeleteTasks(ctx context.Context, ids []string) (int, error)
	DeleteCommunications(ctx context.Context, ids []string) (int, error)
	DeleteLeads(ctx context.Context, ids []string) (int, error)
	DeleteProfile(ctx context.Context, id string) error

	// ApplyFieldValues rewrites the given columns on the identified rows.
	// Implementations must reject columns outside models.MutableColumns.
	ApplyFieldValues(ctx context.Context, table models.Table, ids []string, values map[string]any) (int, error)

	// HoldLeads flags lead rows with a retention hold until the given date
	// and appends note to their notes field.
	HoldLeads(ctx context.Context, ids []string, until time.Time, note string) (int, error)

	// ReleaseExpiredHolds clears retention holds whose retain-until date has
	// passed. Returns the number of leads released.
	ReleaseExpiredHolds(ctx context.Context, now time.Time) (int, error)
}

// Store combines the read and write surfaces over the subject's CRM rows.
type Store interface {
	Reader
	Mutator
}
