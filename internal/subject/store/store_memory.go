package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"leadcrm/internal/subject/models"
	"leadcrm/pkg/platform/sentinel"
)

// InMemoryStore holds CRM rows in insertion order so reads are deterministic.
// It backs unit tests and local runs; Snapshot/Restore give the deletion unit
// of work rollback semantics without a real database.
type InMemoryStore struct {
	mu             sync.RWMutex
	profiles       []*models.Profile
	leads          []*models.Lead
	tasks          []*models.Task
	activities     []*models.Activity
	communications []*models.Communication
}

// New constructs an empty in-memory subject store.
func New() *InMemoryStore {
	return &InMemoryStore{}
}

// Seed helpers for tests and fixtures.

func (s *InMemoryStore) AddProfile(p *models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyRow := *p
	s.profiles = append(s.profiles, &copyRow)
}

func (s *InMemoryStore) AddLead(l *models.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyRow := *l
	s.leads = append(s.leads, &copyRow)
}

func (s *InMemoryStore) AddTask(t *models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyRow := *t
	s.tasks = append(s.tasks, &copyRow)
}

func (s *InMemoryStore) AddActivity(a *models.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyRow := *a
	s.activities = append(s.activities, &copyRow)
}

func (s *InMemoryStore) AddCommunication(c *models.Communication) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyRow := *c
	s.communications = append(s.communications, &copyRow)
}

// Reads

func (s *InMemoryStore) FindProfileByEmail(_ context.Context, email string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.Email == email {
			copyRow := *p
			return &copyRow, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindLeadsByEmail(_ context.Context, email string) ([]*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Lead
	for _, l := range s.leads {
		if l.Email == email {
			copyRow := *l
			out = append(out, &copyRow)
		}
	}
	return out, nil
}

func (s *InMemoryStore) FindTasksByLeadIDs(_ context.Context, leadIDs []string) ([]*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idSet := toSet(leadIDs)
	var out []*models.Task
	for _, t := range s.tasks {
		if idSet[t.LeadID] {
			copyRow := *t
			out = append(out, &copyRow)
		}
	}
	return out, nil
}

func (s *InMemoryStore) FindActivitiesByLeadIDs(_ context.Context, leadIDs []string) ([]*models.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idSet := toSet(leadIDs)
	var out []*models.Activity
	for _, a := range s.activities {
		if idSet[a.LeadID] {
			copyRow := *a
			out = append(out, &copyRow)
		}
	}
	return out, nil
}

func (s *InMemoryStore) FindCommunicationsByLeadIDs(_ context.Context, leadIDs []string) ([]*models.Communication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idSet := toSet(leadIDs)
	var out []*models.Communication
	for _, c := range s.communications {
		if idSet[c.LeadID] {
			copyRow := *c
			out = append(out, &copyRow)
		}
	}
	return out, nil
}

// Mutations

func (s *InMemoryStore) DeleteActivities(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idSet := toSet(ids)
	kept := s.activities[:0]
	deleted := 0
	for _, a := range s.activities {
		if idSet[a.ID] {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	s.activities = kept
	return deleted, nil
}

func (s *InMemoryStore) DeleteTasks(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idSet := toSet(ids)
	kept := s.tasks[:0]
	deleted := 0
	for _, t := range s.tasks {
		if idSet[t.ID] {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	s.tasks = kept
	return deleted, nil
}

func (s *InMemoryStore) DeleteCommunications(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idSet := toSet(ids)
	kept := s.communications[:0]
	deleted := 0
	for _, c := range s.communications {
		if idSet[c.ID] {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	s.communications = kept
	return deleted, nil
}

func (s *InMemoryStore) DeleteLeads(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idSet := toSet(ids)
	kept := s.leads[:0]
	deleted := 0
	for _, l := range s.leads {
		if idSet[l.ID] {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	s.leads = kept
	return deleted, nil
}

func (s *InMemoryStore) DeleteProfile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.profiles {
		if p.ID == id {
			s.profiles = append(s.profiles[:i], s.profiles[i+1:]...)
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *InMemoryStore) ApplyFieldValues(_ context.Context, table models.Table, ids []string, values map[string]any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for column := range values {
		if !models.IsMutableColumn(table, column) {
			return 0, fmt.Errorf("column %q is not mutable on table %q", column, table)
		}
	}
	idSet := toSet(ids)
	switch table {
	case models.TableProfiles:
		count := 0
		for _, p := range s.profiles {
			if !idSet[p.ID] {
				continue
			}
			applyString(values, "email", &p.Email)
			applyString(values, "first_name", &p.FirstName)
			applyString(values, "last_name", &p.LastName)
			applyString(values, "phone", &p.Phone)
			applyString(values, "company", &p.Company)
			count++
		}
		return count, nil
	case models.TableLeads:
		count := 0
		for _, l := range s.leads {
			if !idSet[l.ID] {
				continue
			}
			applyString(values, "email", &l.Email)
			applyString(values, "first_name", &l.FirstName)
			applyString(values, "last_name", &l.LastName)
			applyString(values, "phone", &l.Phone)
			applyString(values, "company", &l.Company)
			applyString(values, "notes", &l.Notes)
			count++
		}
		return count, nil
	case models.TableTasks:
		count := 0
		for _, t := range s.tasks {
			if !idSet[t.ID] {
				continue
			}
			applyString(values, "description", &t.Description)
			count++
		}
		return count, nil
	case models.TableActivities:
		count := 0
		for _, a := range s.activities {
			if !idSet[a.ID] {
				continue
			}
			applyString(values, "summary", &a.Summary)
			count++
		}
		return count, nil
	case models.TableCommunications:
		count := 0
		for _, c := range s.communications {
			if !idSet[c.ID] {
				continue
			}
			applyString(values, "subject", &c.Subject)
			applyString(values, "body", &c.Body)
			count++
		}
		return count, nil
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
}

func (s *InMemoryStore) HoldLeads(_ context.Context, ids []string, until time.Time, note string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idSet := toSet(ids)
	count := 0
	for _, l := range s.leads {
		if !idSet[l.ID] {
			continue
		}
		l.RetentionHold = true
		retainUntil := until
		l.RetainUntil = &retainUntil
		if note != "" {
			if l.Notes != "" && !strings.HasSuffix(l.Notes, "\n") {
				l.Notes += "\n"
			}
			l.Notes += note
		}
		count++
	}
	return count, nil
}

func (s *InMemoryStore) ReleaseExpiredHolds(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, l := range s.leads {
		if l.RetentionHold && l.RetainUntil != nil && l.RetainUntil.Before(now) {
			l.RetentionHold = false
			l.RetainUntil = nil
			count++
		}
	}
	return count, nil
}

// snapshot captures a deep copy of every table for transactional fakes.
type snapshot struct {
	profiles       []*models.Profile
	leads          []*models.Lead
	tasks          []*models.Task
	activities     []*models.Activity
	communications []*models.Communication
}

// Snapshot returns a deep copy of the store contents.
func (s *InMemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &snapshot{}
	for _, p := range s.profiles {
		copyRow := *p
		snap.profiles = append(snap.profiles, &copyRow)
	}
	for _, l := range s.leads {
		copyRow := *l
		snap.leads = append(snap.leads, &copyRow)
	}
	for _, t := range s.tasks {
		copyRow := *t
		snap.tasks = append(snap.tasks, &copyRow)
	}
	for _, a := range s.activities {
		copyRow := *a
		snap.activities = append(snap.activities, &copyRow)
	}
	for _, c := range s.communications {
		copyRow := *c
		snap.communications = append(snap.communications, &copyRow)
	}
	return snap
}

// Restore replaces the store contents with a previously taken snapshot.
func (s *InMemoryStore) Restore(v any) {
	snap, ok := v.(*snapshot)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = snap.profiles
	s.leads = snap.leads
	s.tasks = snap.tasks
	s.activities = snap.activities
	s.communications = snap.communications
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func applyString(values map[string]any, column string, target *string) {
	v, ok := values[column]
	if !ok {
		return
	}
	if str, ok := v.(string); ok {
		*target = str
	}
}
