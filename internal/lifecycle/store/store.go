// Package store persists data-subject lifecycle requests.
package store

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"

	"leadcrm/internal/lifecycle/models"
)

// Store persists lifecycle requests.
//
// Error contract:
//   - Create returns sentinel.ErrConflict when a non-terminal request with
//     the same (subject, kind) already exists. The check and the insert are
//     one critical section; callers never need their own lock.
//   - FindByID returns sentinel.ErrNotFound for unknown ids.
//   - Update replaces the stored row; sentinel.ErrNotFound for unknown ids.
type Store interface {
	Create(ctx context.Context, req *models.Request) error
	FindByID(ctx context.Context, id string) (*models.Request, error)
	Update(ctx context.Context, req *models.Request) error
	ListBySubject(ctx context.Context, subject string) ([]*models.Request, error)
}
