// Package deletion executes the three disposal strategies for a subject's
// data as a single atomic unit of work.
package deletion

import (
	"context"
	"sync"
	"time"

	consentstore "leadcrm/internal/consent/store"
	"leadcrm/internal/subject/models"
	subjectstore "leadcrm/internal/subject/store"
)

// SubjectMutator is the subject-store surface a strategy mutates through.
type SubjectMutator interface {
	DeleteActivities(ctx context.Context, ids []string) (int, error)
	DeleteTasks(ctx context.Context, ids []string) (int, error)
	DeleteCommunications(ctx context.Context, ids []string) (int, error)
	DeleteLeads(ctx context.Context, ids []string) (int, error)
	DeleteProfile(ctx context.Context, id string) error
	ApplyFieldValues(ctx context.Context, table models.Table, ids []string, values map[string]any) (int, error)
	HoldLeads(ctx context.Context, ids []string, until time.Time, note string) (int, error)
}

// ConsentMutator is the consent-store surface a strategy mutates through.
// Deletion may remove or reassign consent rows but never alters consent
// semantics mid-flight.
type ConsentMutator interface {
	DeleteBySubject(ctx context.Context, subject string) (int, error)
	ReassignSubject(ctx context.Context, subject, replacement string) (int, error)
}

// TxStores bundles the transaction-bound stores a strategy runs against.
type TxStores struct {
	Subjects SubjectMutator
	Consents ConsentMutator
}

// UnitOfWork runs fn atomically: either every mutation fn performs is
// visible afterwards, or none is.
type UnitOfWork interface {
	RunInTx(ctx context.Context, subject string, fn func(ctx context.Context, stores TxStores) error) error
}

// MemoryUnitOfWork gives the in-memory stores transaction semantics by deep
// copying their contents up front and restoring on error. A single mutex
// serializes units of work, mirroring the row locking the SQL variant takes.
type MemoryUnitOfWork struct {
	mu       sync.Mutex
	subjects *subjectstore.InMemoryStore
	consents *consentstore.InMemoryStore
}

func NewMemoryUnitOfWork(subjects *subjectstore.InMemoryStore, consents *consentstore.InMemoryStore) *MemoryUnitOfWork {
	return &MemoryUnitOfWork{subjects: subjects, consents: consents}
}

func (u *MemoryUnitOfWork) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context, stores TxStores) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	subjectSnap := u.subjects.Snapshot()
	consentSnap := u.consents.Snapshot()

	err := fn(ctx, TxStores{Subjects: u.subjects, Consents: u.consents})
	if err != nil {
		u.subjects.Restore(subjectSnap)
		u.consents.Restore(consentSnap)
		return err
	}
	return nil
}
