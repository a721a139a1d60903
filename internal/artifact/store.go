package artifact

import "context"

// Store persists export artifacts until they expire.
//
// Error contract:
//   - Get returns sentinel.ErrNotFound for missing or expired artifacts.
//   - DeleteBySubject is a no-op for unknown subjects and returns the count
//     of artifacts removed.
type Store interface {
	Put(ctx context.Context, a *Artifact) error
	Get(ctx context.Context, id string) (*Artifact, error)
	Delete(ctx context.Context, id string) error
	DeleteBySubject(ctx context.Context, subject string) (int, error)
}
