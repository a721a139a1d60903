package artifact

import (
	"context"
	"sync"
	"time"

	"leadcrm/pkg/platform/sentinel"
)

// InMemoryStore keeps artifacts in a map and checks expiry lazily on read.
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
	now       func() time.Time
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		artifacts: make(map[string]*Artifact),
		now:       time.Now,
	}
}

// SetClock overrides the expiry clock. Test hook.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *InMemoryStore) Put(_ context.Context, a *Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyArtifact := *a
	copyArtifact.Payload = append([]byte(nil), a.Payload...)
	s.artifacts[a.ID] = &copyArtifact
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[id]
	if !ok || a.Expired(s.now()) {
		return nil, sentinel.ErrNotFound
	}
	copyArtifact := *a
	copyArtifact.Payload = append([]byte(nil), a.Payload...)
	return &copyArtifact, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.artifacts, id)
	return nil
}

func (s *InMemoryStore) DeleteBySubject(_ context.Context, subject string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, a := range s.artifacts {
		if a.Subject == subject {
			delete(s.artifacts, id)
			count++
		}
	}
	return count, nil
}

// Sweep removes expired artifacts and returns the number removed. The redis
// store gets this for free from key TTLs; the memory store needs the cleanup
// worker to call it.
func (s *InMemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	count := 0
	for id, a := range s.artifacts {
		if a.Expired(now) {
			delete(s.artifacts, id)
			count++
		}
	}
	return count, nil
}
