package store

import (
	"context"
	"sync"
	"time"

	"leadcrm/internal/consent/models"
	"leadcrm/pkg/platform/sentinel"
)

// InMemoryStore stores consent records in memory for tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]*models.Record // keyed by subject
}

// New constructs an empty in-memory consent store.
func New() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]*models.Record)}
}

func (s *InMemoryStore) Save(_ context.Context, consent *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if consent.IsActive() {
		for _, existing := range s.records[consent.Subject] {
			if existing.Type == consent.Type && existing.IsActive() {
				return sentinel.ErrConflict
			}
		}
	}
	copyRecord := *consent
	s.records[consent.Subject] = append(s.records[consent.Subject], &copyRecord)
	return nil
}

func (s *InMemoryStore) FindActiveBySubjectAndType(_ context.Context, subject string, consentType models.Type) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records[subject] {
		if record.Type == consentType && record.IsActive() {
			copyRecord := *record
			return &copyRecord, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Return copies to prevent external modifications
	var out []*models.Record
	for _, record := range s.records[subject] {
		copyRecord := *record
		out = append(out, &copyRecord)
	}
	return out, nil
}

// WithdrawBySubjectAndType sets withdrawal fields on the active grant for the
// given type. Returns the updated record or ErrNotFound if no active grant exists.
func (s *InMemoryStore) WithdrawBySubjectAndType(_ context.Context, subject string, consentType models.Type, withdrawnAt time.Time, reason string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records[subject] {
		if record.Type == consentType && record.IsActive() {
			record.WithdrawnAt = &withdrawnAt
			record.WithdrawalReason = reason
			copyRecord := *record
			return &copyRecord, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) DeleteBySubject(_ context.Context, subject string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := len(s.records[subject])
	delete(s.records, subject)
	return count, nil
}

// ReassignSubject rewrites the subject key on all of a subject's records,
// used by the anonymize strategy to sever the link to the original email
// while preserving the historical record shape.
func (s *InMemoryStore) ReassignSubject(_ context.Context, subject, replacement string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.records[subject]
	if len(records) == 0 {
		return 0, nil
	}
	for _, record := range records {
		record.Subject = replacement
	}
	s.records[replacement] = append(s.records[replacement], records...)
	delete(s.records, subject)
	return len(records), nil
}

// Snapshot returns a deep copy of the store contents for transactional fakes.
func (s *InMemoryStore) Snapshot() map[string][]*models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[string][]*models.Record, len(s.records))
	for subject, records := range s.records {
		copies := make([]*models.Record, len(records))
		for i, record := range records {
			copyRecord := *record
			copies[i] = &copyRecord
		}
		snap[subject] = copies
	}
	return snap
}

// Restore replaces the store contents with a previously taken snapshot.
func (s *InMemoryStore) Restore(snap map[string][]*models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = snap
}
