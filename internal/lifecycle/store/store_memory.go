package store

import (
	"context"
	"sync"

	"leadcrm/internal/lifecycle/models"
	"leadcrm/pkg/platform/sentinel"
)

// InMemoryStore keeps lifecycle requests in insertion order. One mutex covers
// the admission check-and-insert, so two concurrent Create calls for the same
// (subject, kind) can never both pass the in-flight check.
type InMemoryStore struct {
	mu       sync.Mutex
	requests []*models.Request
	byID     map[string]*models.Request
}

func New() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]*models.Request)}
}

func (s *InMemoryStore) Create(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.Subject == req.Subject && existing.Kind == req.Kind && existing.InFlight() {
			return sentinel.ErrConflict
		}
	}
	copyReq := *req
	s.requests = append(s.requests, &copyReq)
	s.byID[req.ID] = &copyReq
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyReq := *req
	return &copyReq, nil
}

func (s *InMemoryStore) Update(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[req.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	*stored = *req
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Request
	for _, req := range s.requests {
		if req.Subject == subject {
			copyReq := *req
			out = append(out, &copyReq)
		}
	}
	return out, nil
}
